package catalogue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// archiveCache stores downloaded archives on disk, one file per request key.
type archiveCache struct {
	dir string
}

func newArchiveCache(dir string) (*archiveCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("catalogue: create cache dir: %w", err)
	}
	return &archiveCache{dir: dir}, nil
}

func (c *archiveCache) path(req Request) string {
	return filepath.Join(c.dir, req.Key()+".zip")
}

// get returns the cached archive and true, or nil and false on a miss.
func (c *archiveCache) get(req Request) ([]byte, bool, error) {
	b, err := os.ReadFile(c.path(req))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("catalogue: read cache: %w", err)
	}
	return b, true, nil
}

// put writes the archive via a temp file so readers never see a partial file.
func (c *archiveCache) put(req Request, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".partial-*")
	if err != nil {
		return fmt.Errorf("catalogue: write cache: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("catalogue: write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalogue: write cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(req)); err != nil {
		return fmt.Errorf("catalogue: write cache: %w", err)
	}
	return nil
}

// remove deletes the cached archive for req. A missing entry is not an error.
func (c *archiveCache) remove(req Request) error {
	if err := os.Remove(c.path(req)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("catalogue: remove cache entry: %w", err)
	}
	return nil
}

package catalogue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/climdiff/climdiff/internal/grid"
)

// Directory serves requests from archives stored under Root, named
// <model>_<variable>_<experiment>_<period>.zip (or .nc).
type Directory struct {
	Root     string
	Observer Observer
}

// NewDirectory returns a Directory catalogue rooted at root.
func NewDirectory(root string, obs Observer) *Directory {
	return &Directory{Root: root, Observer: obs}
}

// Retrieve implements Catalogue.
func (d *Directory) Retrieve(ctx context.Context, req Request) (*grid.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var data []byte
	var err error
	for _, ext := range []string{".zip", ".nc"} {
		data, err = os.ReadFile(filepath.Join(d.Root, req.FileStem()+ext))
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("catalogue: directory %s: %w", d.Root, err)
	}

	s, err := DecodeArchive(data, req)
	if err != nil {
		return nil, err
	}
	if d.Observer != nil {
		d.Observer(req, SourceDirectory)
	}
	return s, nil
}

// Store writes an encoded series into the directory layout Retrieve reads.
func (d *Directory) Store(req Request, s *grid.Series) error {
	b, err := EncodeSeries(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return fmt.Errorf("catalogue: directory %s: %w", d.Root, err)
	}
	return os.WriteFile(filepath.Join(d.Root, req.FileStem()+".nc"), b, 0o644)
}

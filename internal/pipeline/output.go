package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStem is the base name of the files written for r.
func (r *Result) FileStem() string {
	return fmt.Sprintf("%s_%s_diff", r.Selection.Model, r.Selection.Variable)
}

// WriteFiles writes the figure (.png) and data array (.nc) into dir and
// returns their paths.
func (r *Result) WriteFiles(dir string) (figure, data string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("pipeline: output dir: %w", err)
	}
	figure = filepath.Join(dir, r.FileStem()+".png")
	if err := os.WriteFile(figure, r.Figure, 0o644); err != nil {
		return "", "", fmt.Errorf("pipeline: write figure: %w", err)
	}
	data = filepath.Join(dir, r.FileStem()+".nc")
	if err := os.WriteFile(data, r.DataArray, 0o644); err != nil {
		return "", "", fmt.Errorf("pipeline: write data array: %w", err)
	}
	return figure, data, nil
}

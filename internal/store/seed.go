package store

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

//go:embed samples
var samples embed.FS

// Seed writes the bundled sample scripts that are not already present and
// returns how many were written. Existing files are never overwritten.
func (s *FS) Seed() (int, error) {
	written := 0

	err := fs.WalkDir(samples, "samples", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel("samples", filepath.FromSlash(path))
		if err != nil {
			return err
		}
		target := filepath.Join(s.root, rel)

		if _, err := os.Stat(target); err == nil {
			return nil
		}

		data, err := samples.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		return written, errors.Wrap(err, "failed to seed sample scripts")
	}
	return written, nil
}

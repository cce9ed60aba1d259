// Package checkpoint persists per-frame fit results so an interrupted series
// run can be resumed. Each frame's result is one YAML file in the output
// directory, named by frame index; restart works by presence check.
package checkpoint

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	apperrors "github.com/lumenlab/holofit/internal/errors"
	"github.com/lumenlab/holofit/internal/fit"
	"github.com/lumenlab/holofit/internal/fsutil"
)

// filePattern is the per-index checkpoint file name.
const filePattern = "fit_result_%d.yaml"

// Store writes and reads per-frame checkpoints under a single directory.
type Store struct {
	fs  fsutil.FileSystem
	dir string
}

// NewStore creates a Store rooted at dir on the real filesystem.
func NewStore(dir string) *Store {
	return &Store{fs: fsutil.OSFileSystem{}, dir: dir}
}

// NewStoreFS creates a Store rooted at dir on the given filesystem.
// Used by tests to avoid touching disk.
func NewStoreFS(fs fsutil.FileSystem, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string { return s.dir }

// EnsureDir creates the output directory, including intermediate directories.
// It is idempotent.
func (s *Store) EnsureDir() error {
	return apperrors.WrapError(s.fs.MkdirAll(s.dir, 0o755), "creating output directory %q", s.dir)
}

// Path returns the checkpoint file path for the given frame index.
func (s *Store) Path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf(filePattern, index))
}

// Exists reports whether a checkpoint for the given frame index is present.
func (s *Store) Exists(index int) bool {
	return s.fs.Exists(s.Path(index))
}

// Save serializes a fit result to the per-index checkpoint file.
func (s *Store) Save(index int, r *fit.Result) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return apperrors.WrapError(err, "serializing result for frame %d", index)
	}
	if err := s.fs.WriteFile(s.Path(index), data, 0o644); err != nil {
		return apperrors.WrapError(err, "writing checkpoint for frame %d", index)
	}
	return nil
}

// Load reads the checkpoint file for the given frame index back into a
// fit result.
func (s *Store) Load(index int) (*fit.Result, error) {
	data, err := s.fs.ReadFile(s.Path(index))
	if err != nil {
		return nil, apperrors.WrapError(err, "reading checkpoint for frame %d", index)
	}
	var r fit.Result
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, apperrors.WrapError(err, "parsing checkpoint for frame %d", index)
	}
	return &r, nil
}

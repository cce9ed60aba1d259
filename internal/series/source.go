// Package series implements the series fit driver: ordered, lazy access to a
// time series of holographic frames, pluggable preprocessing and update
// policies, and the sequential iterate-fit-update loop with checkpoint/restart
// support. The numerical fitting and the scattering forward model are
// external; this package is the control loop around them.
package series

import (
	"fmt"
	"strconv"

	apperrors "github.com/lumenlab/holofit/internal/errors"
	"github.com/lumenlab/holofit/internal/archive"
	"github.com/lumenlab/holofit/internal/image"
	"github.com/lumenlab/holofit/internal/logging"
)

// Input designates the frames of a series: either Paths (loose image files,
// or a single sqlite archive) or Frames already in memory. Exactly one of the
// two should be populated.
type Input struct {
	Paths  []string
	Frames []*image.Frame
}

// FrameSource is ordered, index-based, lazy access to the frames of a series.
type FrameSource interface {
	// Len returns the number of frames in the series.
	Len() int
	// Frame returns the frame at the given index as a fully-specified image.
	Frame(i int) (*image.Frame, error)
}

// Resolve turns an Input into a FrameSource. A single path is first probed as
// a sqlite frame archive; any open or structural failure falls back silently
// to per-file loading (logged at debug level only). In-memory frames are
// served as-is.
func Resolve(in Input, spacing float64, optics image.Optics, log logging.Logger) (FrameSource, error) {
	if log == nil {
		log = logging.NopLogger{}
	}

	switch {
	case len(in.Frames) > 0:
		return &MemSource{frames: in.Frames}, nil
	case len(in.Paths) == 1:
		ar, err := archive.Open(in.Paths[0])
		if err == nil {
			src, err := NewArchiveSource(ar, spacing, optics)
			if err == nil {
				log.Debug("resolved series as frame archive", logging.String("path", in.Paths[0]))
				return src, nil
			}
			ar.Close()
		}
		log.Debug("archive probe failed, falling back to file loading",
			logging.String("path", in.Paths[0]), logging.Err(err))
		return NewFileSource(in.Paths, spacing, optics), nil
	case len(in.Paths) > 0:
		return NewFileSource(in.Paths, spacing, optics), nil
	default:
		return nil, apperrors.ValidationError{Field: "data", Message: "no frames or paths given"}
	}
}

// FileSource serves frames from individually loadable image files. Every
// access loads the file fresh from disk; nothing is cached.
type FileSource struct {
	paths   []string
	spacing float64
	optics  image.Optics
}

// NewFileSource creates a FileSource over the given paths.
func NewFileSource(paths []string, spacing float64, optics image.Optics) *FileSource {
	return &FileSource{paths: paths, spacing: spacing, optics: optics}
}

// Len returns the number of frame files.
func (s *FileSource) Len() int { return len(s.paths) }

// Frame loads the i-th file from disk. Loader failures for unreadable or
// missing files propagate unchanged.
func (s *FileSource) Frame(i int) (*image.Frame, error) {
	if i < 0 || i >= len(s.paths) {
		return nil, fmt.Errorf("frame index %d out of range [0,%d)", i, len(s.paths))
	}
	return image.Load(s.paths[i], s.spacing, s.optics)
}

// MemSource serves frames that are already in memory.
type MemSource struct {
	frames []*image.Frame
}

// NewMemSource creates a MemSource over the given frames.
func NewMemSource(frames []*image.Frame) *MemSource {
	return &MemSource{frames: frames}
}

// Len returns the number of frames.
func (s *MemSource) Len() int { return len(s.frames) }

// Frame returns the i-th frame.
func (s *MemSource) Frame(i int) (*image.Frame, error) {
	if i < 0 || i >= len(s.frames) {
		return nil, fmt.Errorf("frame index %d out of range [0,%d)", i, len(s.frames))
	}
	return s.frames[i], nil
}

// ArchiveSource serves frames from a sqlite archive keyed by the stringified
// frame index. Spacing and optics metadata is attached at access time, not at
// construction, so archives without per-frame metadata work.
type ArchiveSource struct {
	ar      *archive.Archive
	n       int
	spacing float64
	optics  image.Optics
}

// NewArchiveSource wraps an open archive. The frame count is read once at
// construction.
func NewArchiveSource(ar *archive.Archive, spacing float64, optics image.Optics) (*ArchiveSource, error) {
	n, err := ar.Len()
	if err != nil {
		return nil, err
	}
	return &ArchiveSource{ar: ar, n: n, spacing: spacing, optics: optics}, nil
}

// Len returns the number of frames stored in the archive.
func (s *ArchiveSource) Len() int { return s.n }

// Frame retrieves the entry at the stringified integer key. Lookup failures
// for out-of-range keys propagate unchanged.
func (s *ArchiveSource) Frame(i int) (*image.Frame, error) {
	w, h, pix, err := s.ar.Frame(strconv.Itoa(i))
	if err != nil {
		return nil, err
	}
	f := &image.Frame{Pix: pix, Width: w, Height: h, Spacing: s.spacing, Optics: s.optics}
	return f, nil
}

// Close releases the underlying archive handle.
func (s *ArchiveSource) Close() error { return s.ar.Close() }

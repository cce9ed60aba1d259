// Package archive stores a frame series in a single sqlite file, keyed by
// the stringified frame index. It is the single-file alternative to a
// directory of per-frame images: one archive holds the whole series, and
// spacing/optics metadata is attached by the reader at access time so
// archives without per-frame metadata remain usable.
package archive

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	_ "modernc.org/sqlite"

	apperrors "github.com/lumenlab/holofit/internal/errors"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS frames (
		key TEXT PRIMARY KEY,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		pixels BLOB NOT NULL
	);
`

// Archive is a sqlite-backed, indexable frame container.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens an existing archive file. It fails if the file does not exist,
// cannot be read as a sqlite database, or lacks the frames table; callers use
// that failure to fall back to per-file frame loading.
func Open(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.WrapError(err, "opening archive %q", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.WrapError(err, "opening archive %q", path)
	}

	// Structural probe: a plain image file or foreign database will fail here.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n); err != nil {
		db.Close()
		return nil, apperrors.WrapError(err, "probing archive %q", path)
	}

	return &Archive{db: db, path: path}, nil
}

// Create creates a new (or opens an existing) archive file and ensures the
// schema exists.
func Create(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.WrapError(err, "creating archive %q", path)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, apperrors.WrapError(err, "initializing archive %q", path)
	}
	return &Archive{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Path returns the archive file path.
func (a *Archive) Path() string { return a.path }

// Len returns the number of frames stored in the archive.
func (a *Archive) Len() (int, error) {
	var n int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n); err != nil {
		return 0, apperrors.WrapError(err, "counting frames in %q", a.path)
	}
	return n, nil
}

// Frame retrieves the pixel grid stored under the given key. A missing key
// is an error; the series accessor propagates it as an out-of-range lookup.
func (a *Archive) Frame(key string) (width, height int, pix []float64, err error) {
	var blob []byte
	row := a.db.QueryRow(`SELECT width, height, pixels FROM frames WHERE key = ?`, key)
	if err := row.Scan(&width, &height, &blob); err != nil {
		return 0, 0, nil, apperrors.WrapError(err, "frame %q not found in %q", key, a.path)
	}

	if len(blob) != width*height*8 {
		return 0, 0, nil, fmt.Errorf("frame %q in %q: pixel blob is %d bytes, want %d",
			key, a.path, len(blob), width*height*8)
	}

	pix = decodePixels(blob)
	return width, height, pix, nil
}

// PutFrame stores a pixel grid under the given key, replacing any existing
// entry.
func (a *Archive) PutFrame(key string, width, height int, pix []float64) error {
	if len(pix) != width*height {
		return fmt.Errorf("frame %q: %d pixels for %dx%d grid", key, len(pix), width, height)
	}
	_, err := a.db.Exec(
		`INSERT OR REPLACE INTO frames (key, width, height, pixels) VALUES (?, ?, ?, ?)`,
		key, width, height, encodePixels(pix),
	)
	return apperrors.WrapError(err, "storing frame %q in %q", key, a.path)
}

// encodePixels packs float64 pixels as little-endian bytes.
func encodePixels(pix []float64) []byte {
	buf := make([]byte, len(pix)*8)
	for i, v := range pix {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodePixels unpacks little-endian bytes back into float64 pixels.
func decodePixels(buf []byte) []float64 {
	pix := make([]float64, len(buf)/8)
	for i := range pix {
		pix[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return pix
}

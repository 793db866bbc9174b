package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const partialPattern = "upload-*.part"

// DiskStore keeps blob bytes as plain files named by blob id.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the upload directory when missing and drops partial
// files left behind by an earlier process.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", dir, err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, partialPattern))
	for _, path := range leftovers {
		_ = os.Remove(path)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory blobs are written to.
func (d *DiskStore) Dir() string {
	return d.dir
}

// CreateTemp opens a new partial file. Partial files are never served.
func (d *DiskStore) CreateTemp() (*os.File, error) {
	return os.CreateTemp(d.dir, partialPattern)
}

// Commit moves a completed partial file to its final blob path.
func (d *DiskStore) Commit(partialPath, id string) error {
	return os.Rename(partialPath, d.path(id))
}

// Open opens a committed blob for reading.
func (d *DiskStore) Open(id string) (*os.File, error) {
	f, err := os.Open(d.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Remove deletes a committed blob. Missing files are not an error.
func (d *DiskStore) Remove(id string) error {
	err := os.Remove(d.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d *DiskStore) path(id string) string {
	return filepath.Join(d.dir, id)
}

package pagestore

import (
	"fmt"
	"os"
)

// DiskBackend implements PersistenceBackend over the local filesystem.
type DiskBackend struct{}

// NewDiskBackend returns the standard filesystem-backed PersistenceBackend.
func NewDiskBackend() *DiskBackend {
	return &DiskBackend{}
}

// FileExists reports whether a regular file exists at path.
func (DiskBackend) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("pagestore: stat %s: %w", path, err)
}

// CreateFile creates an empty file at path if one does not already exist.
func (DiskBackend) CreateFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("pagestore: create %s: %w", path, err)
	}
	return f.Close()
}

// Size returns the current length of the file at path.
func (DiskBackend) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("pagestore: stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// OpenForRead opens path for positional reads.
func (DiskBackend) OpenForRead(path string) (ReadHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s for read: %w", path, err)
	}
	return f, nil
}

// diskWriteHandle adapts *os.File to WriteHandle.
type diskWriteHandle struct {
	*os.File
}

// OpenForAppendOrOpen opens path for positional writes, creating it if
// it does not exist.
func (DiskBackend) OpenForAppendOrOpen(path string) (WriteHandle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s for write: %w", path, err)
	}
	return diskWriteHandle{f}, nil
}

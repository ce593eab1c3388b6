package localfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mobstore/compactor/internal/errors"
	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
)

var _ service.FileSystem = (*FS)(nil)

// FS is the reference, os-package-backed service.FileSystem. Production
// deployments swap in an HBase-backed (or equivalent) implementation of
// the same interface without touching any pipeline component.
type FS struct{}

// New creates an FS.
func New() *FS {
	return &FS{}
}

// IsFile reports whether path names a regular file.
func (f *FS) IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.InternalError("stat failed", err)
	}
	return info.Mode().IsRegular(), nil
}

// Stat returns the length and file/directory classification of path.
func (f *FS) Stat(path string) (model.FileStatus, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.FileStatus{}, errors.NotFound(path)
		}
		return model.FileStatus{}, errors.InternalError("stat failed", err)
	}
	return model.FileStatus{
		Path:   path,
		IsFile: info.Mode().IsRegular(),
		Length: info.Size(),
	}, nil
}

// Delete removes path. If recursive, it removes a directory and its
// contents; a non-recursive delete of a non-empty directory fails.
func (f *FS) Delete(path string, recursive bool) error {
	var err error
	if recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !os.IsNotExist(err) {
		return errors.InternalError(fmt.Sprintf("delete %s failed", path), err)
	}
	return nil
}

// Rename moves src to dst, the primitive underlying both commit
// ("temp → family directory") and archival ("family directory →
// archive directory") transitions.
func (f *FS) Rename(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.InternalError("failed to create destination directory", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return errors.InternalError(fmt.Sprintf("rename %s -> %s failed", src, dst), err)
	}
	return nil
}

// ListFiles lists the immediate contents of dir.
func (f *FS) ListFiles(dir string) ([]model.FileStatus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.InternalError(fmt.Sprintf("list %s failed", dir), err)
	}

	statuses := make([]model.FileStatus, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		statuses = append(statuses, model.FileStatus{
			Path:   filepath.Join(dir, e.Name()),
			IsFile: info.Mode().IsRegular(),
			Length: info.Size(),
		})
	}
	return statuses, nil
}

package vfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Local implements FS using the OS filesystem.
type Local struct{}

func (Local) Walk(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

func (Local) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (Local) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

func (Local) Remove(path string) error {
	return os.Remove(path)
}

func (Local) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Touch writes an empty file through a pending temp file, so a crash never
// leaves a half-created marker behind.
func (Local) Touch(path string) error {
	return renameio.WriteFile(path, nil, 0o644)
}

func (Local) CopyToLocal(remotePath, localPath string) error {
	if remotePath == localPath {
		return nil
	}
	return copyFile(remotePath, localPath)
}

func (Local) CopyFromLocal(localPath, remotePath string) error {
	if localPath == remotePath {
		return nil
	}
	return copyFile(localPath, remotePath)
}

func (Local) IsRemote() bool { return false }

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy %s -> %s: %w", from, to, err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

package vfs

import (
	"io"
	"io/fs"
	"os"
)

// FS abstracts filesystem operations so the scanner and the attempt runner
// work transparently over local paths or SSH/SFTP remote hosts.
type FS interface {
	Walk(root string, fn fs.WalkDirFunc) error
	Stat(path string) (fs.FileInfo, error)
	OpenFile(path string, flag int, perm os.FileMode) (File, error)
	Remove(path string) error
	Rename(oldpath, newpath string) error

	// Touch creates an empty file at path, replacing anything already there.
	Touch(path string) error

	// CopyToLocal downloads a file to a local path.
	// For the local backend this is a plain file copy.
	CopyToLocal(remotePath, localPath string) error

	// CopyFromLocal uploads a local file to path on this filesystem.
	// For the local backend this is a plain file copy.
	CopyFromLocal(localPath, remotePath string) error

	// IsRemote returns true when the FS operates over a network. The encoder
	// can only read local files, so remote sources are always staged.
	IsRemote() bool
}

// File is a minimal interface for files returned by OpenFile,
// supporting read, write, and close.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// Exists reports whether path can be stat'ed.
func Exists(fsys FS, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

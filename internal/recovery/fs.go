package recovery

import (
	"io"
	"os"
)

// FileSystem is the read-only capability the detector needs: stat a path,
// list a directory, and open a file for reading. Tests substitute an
// in-memory double; production code uses OSFileSystem.
type FileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.DirEntry, error)
	Open(path string) (io.ReadCloser, error)
}

// OSFileSystem reads the real filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (OSFileSystem) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (OSFileSystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

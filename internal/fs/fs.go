// Package fs abstracts the file system operations behind local snapshot
// writes so durability failures can be injected in tests. Reads bypass this
// abstraction; they are memory-mapped.
package fs

import (
	"io"
	"os"
)

// File is an open writable file.
type File interface {
	io.WriteCloser
	Sync() error
}

// FileSystem abstracts the write-side file system operations.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

// Compile time check to ensure LocalFS satisfies the FileSystem interface.
var _ FileSystem = LocalFS{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

func (LocalFS) Remove(name string) error                     { return os.Remove(name) }
func (LocalFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (LocalFS) ReadDir(name string) ([]os.DirEntry, error)   { return os.ReadDir(name) }

// Default is the default local file system.
var Default FileSystem = LocalFS{}

package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error surfaced by FaultyFS faults.
var ErrInjected = errors.New("fs: injected fault")

// Fault defines the failure behavior for matching files.
type Fault struct {
	// FailAfterBytes fails writes once this many bytes were written to the
	// file. -1 disables the limit.
	FailAfterBytes int64
	// FailOnSync fails the Sync call.
	FailOnSync bool
	// FailOnClose fails the Close call after closing the real file.
	FailOnClose bool
	// Err overrides ErrInjected as the surfaced error.
	Err error
}

// FaultyFS wraps a FileSystem and injects write-path errors for files whose
// name contains a registered pattern.
type FaultyFS struct {
	inner FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// Compile time check to ensure FaultyFS satisfies the FileSystem interface.
var _ FileSystem = (*FaultyFS)(nil)

// NewFaultyFS creates a FaultyFS wrapping inner, or Default if inner is nil.
func NewFaultyFS(inner FileSystem) *FaultyFS {
	if inner == nil {
		inner = Default
	}

	return &FaultyFS{
		inner: inner,
		rules: make(map[string]Fault),
	}
}

// AddRule injects the fault for every file whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules[pattern] = fault
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.inner.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	fault := Fault{FailAfterBytes: -1}

	f.mu.Lock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	f.mu.Unlock()

	if fault.Err == nil {
		fault.Err = ErrInjected
	}

	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error             { return f.inner.Remove(name) }
func (f *FaultyFS) Rename(oldpath, newpath string) error { return f.inner.Rename(oldpath, newpath) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.inner.MkdirAll(path, perm)
}
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) { return f.inner.ReadDir(name) }

type faultyFile struct {
	File
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailAfterBytes >= 0 && ff.written+int64(len(p)) > ff.fault.FailAfterBytes {
		return 0, ff.fault.Err
	}

	n, err := ff.File.Write(p)
	ff.written += int64(n)

	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.Err
	}

	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()

		return ff.fault.Err
	}

	return ff.File.Close()
}

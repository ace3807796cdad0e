package meshstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/recogo/internal/fs"
	"github.com/hupe1980/recogo/internal/mmap"
)

// LocalStoreOptions configures a LocalStore.
type LocalStoreOptions struct {
	// FileSystem handles the write-side operations. Defaults to the local
	// file system. Reads are always memory-mapped.
	FileSystem fs.FileSystem
}

// LocalStore implements Store on the local file system. Blobs are read
// through memory mappings; writes go to a temporary file that is synced and
// renamed into place, so readers never observe partial content.
type LocalStore struct {
	root   string
	fs     fs.FileSystem
	tmpSeq atomic.Uint64
}

// Compile time check to ensure LocalStore satisfies the Store interface.
var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(root string, optFns ...func(o *LocalStoreOptions)) *LocalStore {
	opts := LocalStoreOptions{
		FileSystem: fs.Default,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LocalStore{
		root: root,
		fs:   opts.FileSystem,
	}
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, err
	}

	// Snapshot blobs are decoded front to back.
	_ = m.Advise(mmap.AccessSequential)

	return &localBlob{m: m}, nil
}

// Put writes a blob atomically.
func (s *LocalStore) Put(_ context.Context, name string, data []byte) error {
	dst := filepath.Join(s.root, name)

	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.%d.tmp", dst, s.tmpSeq.Add(1))

	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if err := writeAndSync(f, data); err != nil {
		_ = s.fs.Remove(tmp)

		return err
	}

	if err := s.fs.Rename(tmp, dst); err != nil {
		_ = s.fs.Remove(tmp)

		return err
	}

	return nil
}

func writeAndSync(f fs.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()

		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := s.fs.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// List returns all blob names with the given prefix, sorted. A missing root
// directory lists as empty.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string

	var walk func(dir string) error

	walk = func(dir string) error {
		entries, err := s.fs.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			if dir == "" && errors.Is(err, os.ErrNotExist) {
				return nil
			}

			return err
		}

		for _, e := range entries {
			rel := path.Join(dir, e.Name())

			if e.IsDir() {
				if err := walk(rel); err != nil {
					return err
				}

				continue
			}

			// In-flight temporary files are not blobs.
			if strings.HasSuffix(e.Name(), ".tmp") {
				continue
			}

			if strings.HasPrefix(rel, prefix) {
				names = append(names, rel)
			}
		}

		return nil
	}

	if err := walk(""); err != nil {
		return nil, err
	}

	slices.Sort(names)

	return names, nil
}

// localBlob is a memory-mapped blob handle.
type localBlob struct {
	m *mmap.Mapping
}

// Compile time check to ensure localBlob satisfies the Mappable interface.
var _ Mappable = (*localBlob)(nil)

func (b *localBlob) ReadAt(p []byte, off int64) (int, error) {
	return b.m.ReadAt(p, off)
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

func (b *localBlob) Size() int64 {
	return int64(b.m.Size())
}

func (b *localBlob) Bytes() ([]byte, error) {
	return b.m.Bytes(), nil
}

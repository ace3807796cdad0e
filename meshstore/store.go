package meshstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// CurrentPointer is the blob name of the current-snapshot pointer. Its
// content is the name of the manifest blob of the most recent snapshot.
// Stores with commit coordination give this name atomic update semantics.
const CurrentPointer = "CURRENT"

// Store reads and writes named snapshot blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any existing content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a snapshot blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs whose content is addressable
// without copying. The returned slice is valid until the Blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// ReadAll reads the complete content of a blob. It uses the zero-copy path
// when the blob is Mappable, so callers must not mutate the result while the
// blob is open unless they copy it first.
func ReadAll(b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		return m.Bytes()
	}

	data := make([]byte, b.Size())

	if _, err := b.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}

	return data, nil
}

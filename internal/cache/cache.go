// Package cache provides a byte-oriented block cache used by the read-through
// mesh store. Keys identify a fixed-size block within a named blob.
package cache

// Key identifies a cached block. Keys must be stable across opens of the
// same blob.
type Key struct {
	// Name is the blob name within the store.
	Name string
	// Block is the block index within the blob.
	Block uint64
}

// BlockCache is a cache for immutable blob blocks. Returned slices must be
// treated as read-only, and stored slices must not be mutated by the caller
// afterwards.
type BlockCache interface {
	// Get returns a cached block. ok is false if the block is missing.
	Get(key Key) (b []byte, ok bool)
	// Set caches a block. Implementations may decline to cache.
	Set(key Key, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool)
	// Stats returns hit and miss counters.
	Stats() (hits, misses int64)
	// Close releases any resources held by the cache.
	Close() error
}

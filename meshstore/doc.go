// Package meshstore provides storage abstraction for model library snapshots.
//
// Store is the interface for reading and writing snapshot blobs (compressed
// model clouds, manifests, and the current-snapshot pointer). Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with memory-mapped reads
//   - MemoryStore: in-memory store for tests
//   - CachingStore: read-through block cache over another store
//   - s3.Store: Amazon S3, optionally with DynamoDB commit coordination
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
// Implement the Store and Blob interfaces to plug in other backends. Open
// must return ErrNotFound (or an error satisfying errors.Is against it) for
// missing blobs so loaders can distinguish absence from failure.
package meshstore

package meshstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/recogo/internal/cache"
)

// prefetchConcurrency bounds parallel backend reads when filling the cache.
const prefetchConcurrency = 8

// CachingStore wraps a Store and adds block-level read caching. It is meant
// for remote backends where repeated snapshot loads would otherwise re-fetch
// the same ranges.
type CachingStore struct {
	inner     Store
	cache     cache.BlockCache
	blockSize int64
}

// Compile time check to ensure CachingStore satisfies the Store interface.
var _ Store = (*CachingStore)(nil)

// NewCachingStore creates a CachingStore. blockSize defaults to 64KiB if not
// positive; snapshot blobs are read front to back, so larger blocks amortize
// backend round trips.
func NewCachingStore(inner Store, blockCache cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = 64 << 10
	}

	return &CachingStore{
		inner:     inner,
		cache:     blockCache,
		blockSize: blockSize,
	}
}

// Open opens a blob whose reads go through the block cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	return &CachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		size:      b.Size(),
		blockSize: s.blockSize,
	}, nil
}

// Put invalidates cached blocks for the blob and writes through.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Invalidate(func(key cache.Key) bool {
		return key.Name == name
	})

	return s.inner.Put(ctx, name, data)
}

// Delete invalidates cached blocks for the blob and deletes through.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Invalidate(func(key cache.Key) bool {
		return key.Name == name
	})

	return s.inner.Delete(ctx, name)
}

// List delegates to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// CachingBlob serves reads from the block cache, fetching missing blocks
// from the inner blob.
type CachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	size      int64
	blockSize int64
}

func (b *CachingBlob) Close() error {
	return b.inner.Close()
}

func (b *CachingBlob) Size() int64 {
	return b.size
}

func (b *CachingBlob) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if off < 0 || off >= b.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if avail := b.size - off; want > avail {
		want = avail
	}

	startBlock := off / b.blockSize
	endBlock := (off + want - 1) / b.blockSize

	if err := b.fillCache(startBlock, endBlock); err != nil {
		return 0, err
	}

	var total int64

	for blk := startBlock; blk <= endBlock; blk++ {
		data, err := b.block(blk)
		if err != nil {
			return int(total), err
		}

		blkStart := blk * b.blockSize

		srcFrom := max(off, blkStart) - blkStart
		srcTo := min(blkStart+b.blockSize, off+want) - blkStart

		if srcTo > int64(len(data)) {
			srcTo = int64(len(data))
		}

		if srcTo <= srcFrom {
			continue
		}

		dst := blkStart + srcFrom - off
		total += int64(copy(p[dst:dst+(srcTo-srcFrom)], data[srcFrom:srcTo]))
	}

	if total < int64(len(p)) {
		return int(total), io.EOF
	}

	return int(total), nil
}

// block returns one block, reading through the cache.
func (b *CachingBlob) block(blk int64) ([]byte, error) {
	key := cache.Key{Name: b.name, Block: uint64(blk)}

	if data, ok := b.cache.Get(key); ok {
		return data, nil
	}

	buf := make([]byte, b.blockSize)

	n, err := b.inner.ReadAt(buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	data := buf[:n]
	if n > 0 {
		b.cache.Set(key, data)
	}

	return data, nil
}

// fillCache fetches the missing blocks in [startBlock, endBlock], coalescing
// contiguous runs into single backend reads.
func (b *CachingBlob) fillCache(startBlock, endBlock int64) error {
	type run struct {
		start, count int64
	}

	var missing []run

	cur := run{start: -1}

	for blk := startBlock; blk <= endBlock; blk++ {
		if _, ok := b.cache.Get(cache.Key{Name: b.name, Block: uint64(blk)}); ok {
			if cur.start != -1 {
				missing = append(missing, cur)
				cur = run{start: -1}
			}

			continue
		}

		if cur.start == -1 {
			cur = run{start: blk, count: 1}
		} else {
			cur.count++
		}
	}

	if cur.start != -1 {
		missing = append(missing, cur)
	}

	if len(missing) == 0 {
		return nil
	}

	var g errgroup.Group

	g.SetLimit(prefetchConcurrency)

	for _, r := range missing {
		g.Go(func() error {
			byteStart := r.start * b.blockSize
			if byteStart >= b.size {
				return nil
			}

			byteLen := r.count * b.blockSize
			if byteStart+byteLen > b.size {
				byteLen = b.size - byteStart
			}

			buf := make([]byte, byteLen)

			n, err := b.inner.ReadAt(buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}

			valid := buf[:n]

			for i := int64(0); i < r.count; i++ {
				from := i * b.blockSize
				if from >= int64(len(valid)) {
					break
				}

				to := min(from+b.blockSize, int64(len(valid)))

				// Copy each block so the cache does not pin the whole
				// run buffer.
				b.cache.Set(
					cache.Key{Name: b.name, Block: uint64(r.start + i)},
					bytes.Clone(valid[from:to]),
				)
			}

			return nil
		})
	}

	return g.Wait()
}

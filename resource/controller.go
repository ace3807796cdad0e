// Package resource provides shared limits for fit concurrency, registry
// memory, and library IO.
package resource

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentFits bounds the number of fitting tasks running in
	// parallel during the dispatch phase. If 0, defaults to the number of
	// CPUs.
	MaxConcurrentFits int64

	// MemoryLimitBytes is the hard limit for tracked in-memory data, such
	// as registered model clouds and cached blob blocks. If 0, no hard
	// limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum throughput for library save/load
	// transfers. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages resources shared by a recognizer: fit-slot concurrency,
// model memory, and library IO bandwidth.
type Controller struct {
	cfg Config

	// Fit concurrency
	fitSem *semaphore.Weighted

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentFits <= 0 {
		cfg.MaxConcurrentFits = int64(runtime.NumCPU())
	}

	c := &Controller{
		cfg:    cfg,
		fitSem: semaphore.NewWeighted(cfg.MaxConcurrentFits),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// MaxConcurrentFits returns the effective fit-slot count.
func (c *Controller) MaxConcurrentFits() int64 {
	return c.cfg.MaxConcurrentFits
}

// AcquireFitSlot reserves one fitting slot, blocking until a slot frees up
// or ctx is canceled.
func (c *Controller) AcquireFitSlot(ctx context.Context) error {
	return c.fitSem.Acquire(ctx, 1)
}

// TryAcquireFitSlot reserves a fitting slot without blocking.
func (c *Controller) TryAcquireFitSlot() bool {
	return c.fitSem.TryAcquire(1)
}

// ReleaseFitSlot releases a fitting slot.
func (c *Controller) ReleaseFitSlot() {
	c.fitSem.Release(1)
}

// AcquireMemory attempts to reserve memory for model storage.
// If a hard limit is configured and usage would exceed it, this blocks until
// memory is released or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	// WaitN cannot exceed the limiter burst; split large transfers.
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

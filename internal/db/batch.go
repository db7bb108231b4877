package db

import (
	"context"

	"github.com/rotisserie/eris"
)

// FlushFunc writes one batch and returns the number of rows written.
type FlushFunc[T any] func(ctx context.Context, batch []T) (int64, error)

// Batcher buffers items up to a fixed capacity and hands each full buffer to
// its FlushFunc. Memory use is bounded by the capacity regardless of how many
// items are added. Not safe for concurrent use.
type Batcher[T any] struct {
	size    int
	buf     []T
	flush   FlushFunc[T]
	written int64
	batches int
}

// NewBatcher returns a Batcher that flushes every size items. size < 1 is
// treated as 1.
func NewBatcher[T any](size int, flush FlushFunc[T]) *Batcher[T] {
	if size < 1 {
		size = 1
	}
	return &Batcher[T]{
		size:  size,
		buf:   make([]T, 0, size),
		flush: flush,
	}
}

// Add appends an item, flushing when the buffer reaches capacity.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	b.buf = append(b.buf, item)
	if len(b.buf) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered items. Flushing an empty buffer is a no-op.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	n, err := b.flush(ctx, b.buf)
	if err != nil {
		return eris.Wrapf(err, "db: flush batch %d", b.batches+1)
	}
	b.written += n
	b.batches++
	b.buf = b.buf[:0]
	return nil
}

// Written returns the total rows reported written by completed flushes.
func (b *Batcher[T]) Written() int64 { return b.written }

// Batches returns the number of completed flushes.
func (b *Batcher[T]) Batches() int { return b.batches }

// Pending returns the number of buffered, unflushed items.
func (b *Batcher[T]) Pending() int { return len(b.buf) }

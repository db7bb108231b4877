package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatcher_FlushesOnFullAndAtEnd(t *testing.T) {
	var sizes []int
	b := NewBatcher(3, func(_ context.Context, batch []int) (int64, error) {
		sizes = append(sizes, len(batch))
		return int64(len(batch)), nil
	})

	ctx := context.Background()
	for i := range 7 {
		require.NoError(t, b.Add(ctx, i))
	}
	assert.Equal(t, []int{3, 3}, sizes)
	assert.Equal(t, 1, b.Pending())

	require.NoError(t, b.Flush(ctx))
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Equal(t, int64(7), b.Written())
	assert.Equal(t, 3, b.Batches())
	assert.Equal(t, 0, b.Pending())
}

func TestBatcher_FlushEmptyIsNoop(t *testing.T) {
	calls := 0
	b := NewBatcher(5, func(_ context.Context, batch []string) (int64, error) {
		calls++
		return 0, nil
	})
	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, 0, calls)
}

func TestBatcher_BufferNeverExceedsCapacity(t *testing.T) {
	maxSeen := 0
	b := NewBatcher(500, func(_ context.Context, batch []int) (int64, error) {
		if len(batch) > maxSeen {
			maxSeen = len(batch)
		}
		return int64(len(batch)), nil
	})
	ctx := context.Background()
	for i := range 1234 {
		require.NoError(t, b.Add(ctx, i))
		assert.LessOrEqual(t, b.Pending(), 500)
	}
	require.NoError(t, b.Flush(ctx))
	assert.Equal(t, 500, maxSeen)
	assert.Equal(t, int64(1234), b.Written())
}

func TestBatcher_FlushError(t *testing.T) {
	b := NewBatcher(1, func(_ context.Context, batch []int) (int64, error) {
		return 0, errors.New("connection lost")
	})
	err := b.Add(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush batch 1")
	assert.Equal(t, 1, b.Pending())
}

func TestNewBatcher_MinimumSize(t *testing.T) {
	calls := 0
	b := NewBatcher(0, func(_ context.Context, batch []int) (int64, error) {
		calls++
		return 1, nil
	})
	require.NoError(t, b.Add(context.Background(), 1))
	assert.Equal(t, 1, calls)
}

package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireBlocksAtCapacity(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	r1, err := l.Acquire(ctx)
	require.NoError(t, err)
	r2, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), l.InFlight())

	_, ok := l.TryAcquire()
	assert.False(t, ok)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r1()
	r1()
	assert.Equal(t, int64(1), l.InFlight(), "double release frees one slot")

	r3, ok := l.TryAcquire()
	assert.True(t, ok)
	r2()
	r3()
	assert.Zero(t, l.InFlight())
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, int64(DefaultMaxJobs), New(0).Capacity())
}

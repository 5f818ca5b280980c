package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pagerender/internal/document"
)

func tasks(n int) []document.PageTask {
	out := make([]document.PageTask, n)
	for i := range out {
		out[i] = document.PageTask{Index: i, SourcePageNumber: i + 1}
	}
	return out
}

func ok(_ context.Context, t document.PageTask) document.PageResult {
	return document.PageResult{Index: t.Index, SourcePageNumber: t.SourcePageNumber, Success: true, Image: "x"}
}

func TestChunkSize(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 2}, {1, 2}, {5, 2}, {8, 2}, {9, 3}, {12, 3}, {16, 4}, {17, 5}, {20, 5}, {200, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChunkSize(tt.n), "n=%d", tt.n)
	}
}

func TestChunks(t *testing.T) {
	chunks := Chunks(tasks(12), ChunkSize(12))
	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.Len(t, c, 3)
	}
	assert.Equal(t, 9, chunks[3][0].Index)

	tail := Chunks(tasks(7), 5)
	require.Len(t, tail, 2)
	assert.Len(t, tail[1], 2)
	assert.Empty(t, Chunks(nil, 3))
}

func TestRunReturnsEachTaskOnce(t *testing.T) {
	var reports []ChunkReport
	results := Run(context.Background(), tasks(12), Options{Workers: 3, OnChunk: func(r ChunkReport) { reports = append(reports, r) }}, ok)

	require.Len(t, results, 12)
	seen := map[int]bool{}
	for _, r := range results {
		assert.False(t, seen[r.Index], "duplicate index %d", r.Index)
		seen[r.Index] = true
		assert.True(t, r.Success)
	}
	require.Len(t, reports, 4)
	assert.Equal(t, ChunkReport{Chunk: 4, Chunks: 4, Tasks: 3, Succeeded: 3, Elapsed: reports[3].Elapsed}, reports[3])
}

func TestRunChunksAreSequentialAndBounded(t *testing.T) {
	const n = 10
	size := ChunkSize(n)
	var (
		mu         sync.Mutex
		finished   = map[int]bool{}
		violations int
		active     atomic.Int32
		peak       atomic.Int32
	)
	fn := func(ctx context.Context, task document.PageTask) document.PageResult {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		mu.Lock()
		for i := 0; i < (task.Index/size)*size; i++ {
			if !finished[i] {
				violations++
			}
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		finished[task.Index] = true
		mu.Unlock()
		active.Add(-1)
		return ok(ctx, task)
	}

	results := Run(context.Background(), tasks(n), Options{Workers: 2, ChunkPause: time.Millisecond}, fn)

	assert.Len(t, results, n)
	assert.Zero(t, violations, "a chunk started before the previous one finished")
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunTimeoutIsolatesSlowPage(t *testing.T) {
	var cancelled atomic.Bool
	fn := func(ctx context.Context, task document.PageTask) document.PageResult {
		if task.Index == 1 {
			<-ctx.Done()
			cancelled.Store(true)
			return document.Failed(task, ctx.Err(), 0)
		}
		return ok(ctx, task)
	}

	results := Run(context.Background(), tasks(4), Options{Workers: 4, TaskTimeout: 50 * time.Millisecond}, fn)

	require.Len(t, results, 4)
	var timedOut []document.PageResult
	for _, r := range results {
		if !r.Success {
			timedOut = append(timedOut, r)
		}
	}
	require.Len(t, timedOut, 1)
	assert.Equal(t, 1, timedOut[0].Index)
	assert.True(t, timedOut[0].TimedOut)
	assert.Contains(t, timedOut[0].Error, "timed out")
	assert.Eventually(t, cancelled.Load, time.Second, 5*time.Millisecond, "task context is cancelled on timeout")
}

func TestRunRecoversPanics(t *testing.T) {
	fn := func(ctx context.Context, task document.PageTask) document.PageResult {
		if task.Index == 0 {
			panic("nil image")
		}
		return ok(ctx, task)
	}

	results := Run(context.Background(), tasks(3), Options{Workers: 1}, fn)

	require.Len(t, results, 3)
	for _, r := range results {
		if r.Index == 0 {
			assert.False(t, r.Success)
			assert.Contains(t, r.Error, "nil image")
		} else {
			assert.True(t, r.Success)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	assert.Empty(t, Run(context.Background(), nil, Options{}, ok))
}

func TestRunTimedOutWorkKeepsItsSlot(t *testing.T) {
	var active, peak atomic.Int32
	fn := func(ctx context.Context, task document.PageTask) document.PageResult {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		// work that does not watch ctx, like an image resize
		time.Sleep(60 * time.Millisecond)
		active.Add(-1)
		return ok(ctx, task)
	}

	results := Run(context.Background(), tasks(5), Options{Workers: 1, TaskTimeout: 10 * time.Millisecond}, fn)

	require.Len(t, results, 5)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.True(t, r.TimedOut)
	}
	assert.Equal(t, int32(1), peak.Load(), "abandoned pages must not overlap")
	assert.Zero(t, active.Load())
}

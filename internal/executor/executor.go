// Package executor runs page tasks in sequential chunks, each chunk fanned
// out over a bounded worker pool with a per-task deadline.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"

	"github.com/local/pagerender/internal/document"
)

const (
	minChunk = 2
	maxChunk = 5

	DefaultTaskTimeout = 60 * time.Second
	DefaultChunkPause  = 100 * time.Millisecond
)

// PageFunc renders one task. It must honour ctx.
type PageFunc func(ctx context.Context, task document.PageTask) document.PageResult

// ChunkReport is emitted after every chunk.
type ChunkReport struct {
	Chunk     int
	Chunks    int
	Tasks     int
	Succeeded int
	Elapsed   time.Duration
}

// Options configure one Run.
type Options struct {
	Workers     int
	TaskTimeout time.Duration
	ChunkPause  time.Duration
	Logger      *zerolog.Logger
	OnChunk     func(ChunkReport)
}

// ChunkSize is ceil(n/4) clamped to [2, 5].
func ChunkSize(n int) int {
	return min(max((n+3)/4, minChunk), maxChunk)
}

// Chunks splits tasks into consecutive runs of size.
func Chunks(tasks []document.PageTask, size int) [][]document.PageTask {
	if size <= 0 {
		size = 1
	}
	var out [][]document.PageTask
	for start := 0; start < len(tasks); start += size {
		out = append(out, tasks[start:min(start+size, len(tasks))])
	}
	return out
}

// Run executes every task at most once and returns one result per task in
// completion order. Timed-out or panicking tasks come back as failures.
func Run(ctx context.Context, tasks []document.PageTask, opts Options, fn PageFunc) []document.PageResult {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	lg := log.Logger
	if opts.Logger != nil {
		lg = *opts.Logger
	}

	chunks := Chunks(tasks, ChunkSize(len(tasks)))
	results := make([]document.PageResult, 0, len(tasks))
	var mu sync.Mutex

	for ci, chunk := range chunks {
		start := time.Now()
		before := len(results)

		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for _, task := range chunk {
			g.Go(func() error {
				res := runOne(ctx, task, opts.TaskTimeout, fn, lg)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		report := ChunkReport{Chunk: ci + 1, Chunks: len(chunks), Tasks: len(chunk), Elapsed: time.Since(start)}
		for _, r := range results[before:] {
			if r.Success {
				report.Succeeded++
			}
		}
		logChunk(ctx, lg, report)
		if opts.OnChunk != nil {
			opts.OnChunk(report)
		}

		if ci < len(chunks)-1 && opts.ChunkPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.ChunkPause):
			}
		}
	}
	return results
}

// runOne awaits fn for at most timeout. On expiry the task context is
// cancelled, which kills any subprocess fn started, and the result is a
// timeout failure. The worker slot stays held until fn has returned, so an
// abandoned page never runs beside its replacement.
func runOne(ctx context.Context, task document.PageTask, timeout time.Duration, fn PageFunc, lg zerolog.Logger) document.PageResult {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan document.PageResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- document.Failed(task, document.PageProcessError(fmt.Sprintf("panic rendering page %d: %v", task.SourcePageNumber, p), nil), time.Since(start))
			}
		}()
		done <- fn(tctx, task)
	}()

	select {
	case res := <-done:
		res.Index, res.SourcePageNumber = task.Index, task.SourcePageNumber
		if res.Success || tctx.Err() == nil {
			return res
		}
		// fn gave up because its deadline passed; report it as abandoned.
	case <-tctx.Done():
		<-done
	}

	err := document.PageTimeoutError(fmt.Sprintf("page %d timed out after %v", task.SourcePageNumber, timeout), tctx.Err())
	if ctx.Err() != nil {
		err = document.PageProcessError(fmt.Sprintf("page %d cancelled", task.SourcePageNumber), ctx.Err())
	}
	lg.Error().Int("index", task.Index).Int("page", task.SourcePageNumber).Dur("duration", time.Since(start)).Err(err).Msg("page task abandoned")
	return document.Failed(task, err, time.Since(start))
}

func logChunk(ctx context.Context, lg zerolog.Logger, r ChunkReport) {
	ev := lg.Info().
		Int("chunk", r.Chunk).
		Int("chunks", r.Chunks).
		Int("tasks", r.Tasks).
		Int("succeeded", r.Succeeded).
		Dur("elapsed", r.Elapsed)
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		ev = ev.Uint64("avail_mem_mb", vm.Available>>20)
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	ev.Uint64("heap_mb", ms.HeapAlloc>>20).Msg("chunk complete")
}

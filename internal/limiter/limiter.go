package limiter

import (
    "context"
    "sync/atomic"

    "golang.org/x/sync/semaphore"

    "github.com/local/pagerender/internal/metrics"
)

// DefaultMaxJobs is the process-wide number of render jobs allowed at once.
const DefaultMaxJobs = 4

// JobLimiter is the global admission gate for render jobs. Callers past the
// limit block until a slot frees up or their context ends.
type JobLimiter struct {
    sem      *semaphore.Weighted
    max      int64
    inflight atomic.Int64
}

func New(maxJobs int) *JobLimiter {
    if maxJobs <= 0 { maxJobs = DefaultMaxJobs }
    return &JobLimiter{sem: semaphore.NewWeighted(int64(maxJobs)), max: int64(maxJobs)}
}

// Acquire reserves a slot and returns its release function. The release
// function is safe to call more than once.
func (l *JobLimiter) Acquire(ctx context.Context) (func(), error) {
    if err := l.sem.Acquire(ctx, 1); err != nil {
        return func() {}, err
    }
    metrics.SetInflight(l.inflight.Add(1))
    var once atomic.Bool
    return func() {
        if once.CompareAndSwap(false, true) {
            metrics.SetInflight(l.inflight.Add(-1))
            l.sem.Release(1)
        }
    }, nil
}

// TryAcquire is the non-blocking variant used by readiness checks.
func (l *JobLimiter) TryAcquire() (func(), bool) {
    if !l.sem.TryAcquire(1) {
        return func() {}, false
    }
    metrics.SetInflight(l.inflight.Add(1))
    var once atomic.Bool
    return func() {
        if once.CompareAndSwap(false, true) {
            metrics.SetInflight(l.inflight.Add(-1))
            l.sem.Release(1)
        }
    }, true
}

func (l *JobLimiter) InFlight() int64 { return l.inflight.Load() }
func (l *JobLimiter) Capacity() int64 { return l.max }

// Package planner sizes the per-job page worker pool from the host's current CPU and memory headroom.
package planner

import (
	"context"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	DefaultWorkerMemory uint64 = 500 << 20
	DefaultHardCap             = 8
)

// Options bound the worker count.
type Options struct {
	WorkerMemory uint64 // memory budget per rasterizer worker
	HardCap      int
}

// Host is a snapshot of the resources the planner considers.
// AvailableMemory == 0 means unknown and drops the memory term.
type Host struct {
	CPUs            int
	AvailableMemory uint64
}

// Workers returns min(cpu-1, avail/perWorker, hardCap) with every term floored at 1.
func Workers(h Host, opts Options) int {
	if opts.WorkerMemory == 0 {
		opts.WorkerMemory = DefaultWorkerMemory
	}
	if opts.HardCap <= 0 {
		opts.HardCap = DefaultHardCap
	}

	n := max(h.CPUs-1, 1)
	if h.AvailableMemory > 0 {
		n = min(n, max(int(h.AvailableMemory/opts.WorkerMemory), 1))
	}
	return min(n, opts.HardCap)
}

// Probe reads the host snapshot.
type Probe func(ctx context.Context) (Host, error)

// ReadHost samples logical CPUs and available memory via gopsutil.
func ReadHost(ctx context.Context) (Host, error) {
	var h Host
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	h.CPUs = n
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return h, err
	}
	h.AvailableMemory = vm.Available
	return h, nil
}

// Planner recomputes the worker count for every job.
type Planner struct {
	opts  Options
	probe Probe
}

func New(opts Options) *Planner {
	return &Planner{opts: opts, probe: ReadHost}
}

// WithProbe replaces the host sampler.
func (p *Planner) WithProbe(probe Probe) *Planner {
	p.probe = probe
	return p
}

// Workers never fails: an unreadable host falls back to CPU count alone.
func (p *Planner) Workers(ctx context.Context) int {
	h, err := p.probe(ctx)
	if err != nil {
		log.Warn().Err(err).Int("cpus", h.CPUs).Msg("host memory unavailable, sizing workers by cpu only")
		h.AvailableMemory = 0
	}
	if h.CPUs <= 0 {
		h.CPUs = runtime.NumCPU()
	}
	n := Workers(h, p.opts)
	log.Debug().
		Int("cpus", h.CPUs).
		Uint64("avail_mem_mb", h.AvailableMemory>>20).
		Int("workers", n).
		Msg("worker pool planned")
	return n
}

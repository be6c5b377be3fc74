package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// MemoryStats is a snapshot of process memory, in bytes.
type MemoryStats struct {
	RSS       uint64 `json:"rss"`
	HeapTotal uint64 `json:"heapTotal"`
	HeapUsed  uint64 `json:"heapUsed"`
	External  uint64 `json:"external"`
}

// CPUStats is the CPU time consumed by the process, in microseconds.
type CPUStats struct {
	User   int64 `json:"user"`
	System int64 `json:"system"`
}

// ProcessStats reports resource usage of the running process.
type ProcessStats interface {
	Uptime() time.Duration
	Memory(ctx context.Context) (MemoryStats, error)
	CPU(ctx context.Context) (CPUStats, error)
}

// ProcessSampler reads RSS and CPU times from the operating system and heap
// figures from the Go runtime.
type ProcessSampler struct {
	start time.Time
	proc  *process.Process
}

// NewProcessSampler samples the current process. Uptime is measured from the
// moment it is called.
func NewProcessSampler(ctx context.Context) (*ProcessSampler, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", os.Getpid(), err)
	}
	return &ProcessSampler{start: time.Now(), proc: p}, nil
}

func (s *ProcessSampler) Uptime() time.Duration {
	return time.Since(s.start)
}

// Memory returns the current memory snapshot. Heap figures are always filled
// in; if the OS query for RSS fails the error is returned alongside them.
func (s *ProcessSampler) Memory(ctx context.Context) (MemoryStats, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := MemoryStats{
		HeapTotal: ms.HeapSys,
		HeapUsed:  ms.HeapAlloc,
		External:  ms.Sys - ms.HeapSys,
	}
	info, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("read rss: %w", err)
	}
	stats.RSS = info.RSS
	return stats, nil
}

func (s *ProcessSampler) CPU(ctx context.Context) (CPUStats, error) {
	times, err := s.proc.TimesWithContext(ctx)
	if err != nil {
		return CPUStats{}, fmt.Errorf("read cpu times: %w", err)
	}
	return CPUStats{
		User:   int64(times.User * 1e6),
		System: int64(times.System * 1e6),
	}, nil
}

// UpdateMemoryUsage refreshes memory_usage_bytes from ps. The gauge is updated
// with whatever figures were read even when an error is returned.
func (m *AppMetrics) UpdateMemoryUsage(ctx context.Context, ps ProcessStats) error {
	stats, sampleErr := ps.Memory(ctx)
	errs := []error{sampleErr}
	if sampleErr == nil || stats.RSS > 0 {
		errs = append(errs, m.MemoryUsage.Set(float64(stats.RSS), MemoryRSS))
	}
	errs = append(errs,
		m.MemoryUsage.Set(float64(stats.HeapTotal), MemoryHeapTotal),
		m.MemoryUsage.Set(float64(stats.HeapUsed), MemoryHeapUsed),
		m.MemoryUsage.Set(float64(stats.External), MemoryExternal),
	)
	return errors.Join(errs...)
}

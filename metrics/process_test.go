package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	mem MemoryStats
	err error
}

func (f fakeProcess) Uptime() time.Duration { return time.Minute }

func (f fakeProcess) Memory(context.Context) (MemoryStats, error) { return f.mem, f.err }

func (f fakeProcess) CPU(context.Context) (CPUStats, error) { return CPUStats{}, nil }

func TestProcessSampler(t *testing.T) {
	ctx := context.Background()
	s, err := NewProcessSampler(ctx)
	require.NoError(t, err)

	mem, err := s.Memory(ctx)
	require.NoError(t, err)
	assert.Greater(t, mem.RSS, uint64(0))
	assert.Greater(t, mem.HeapTotal, uint64(0))
	assert.LessOrEqual(t, mem.HeapUsed, mem.HeapTotal)

	_, err = s.CPU(ctx)
	require.NoError(t, err)

	first := s.Uptime()
	time.Sleep(time.Millisecond)
	assert.Greater(t, s.Uptime(), first)
}

func TestUpdateMemoryUsage(t *testing.T) {
	m, err := NewAppMetrics(NewRegistry())
	require.NoError(t, err)

	ps := fakeProcess{mem: MemoryStats{RSS: 4096, HeapTotal: 2048, HeapUsed: 1024, External: 512}}
	require.NoError(t, m.UpdateMemoryUsage(context.Background(), ps))

	assert.Equal(t, 4096.0, m.MemoryUsage.Value(MemoryRSS))
	assert.Equal(t, 2048.0, m.MemoryUsage.Value(MemoryHeapTotal))
	assert.Equal(t, 1024.0, m.MemoryUsage.Value(MemoryHeapUsed))
	assert.Equal(t, 512.0, m.MemoryUsage.Value(MemoryExternal))
}

func TestUpdateMemoryUsageKeepsHeapOnSamplerError(t *testing.T) {
	m, err := NewAppMetrics(NewRegistry())
	require.NoError(t, err)

	boom := errors.New("proc unavailable")
	ps := fakeProcess{mem: MemoryStats{HeapTotal: 2048, HeapUsed: 1024}, err: boom}
	err = m.UpdateMemoryUsage(context.Background(), ps)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2048.0, m.MemoryUsage.Value(MemoryHeapTotal))
	_, seen := m.MemoryUsage.lookup([]string{MemoryRSS})
	assert.False(t, seen, "rss is not reported when it could not be read")
}

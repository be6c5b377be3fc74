package metrics

import (
	"bytes"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestCounter(t *testing.T) {
	c := NewCounter("todo_operations_total", "Total number of todo operations", "operation")

	require.NoError(t, c.Inc("create"))
	require.NoError(t, c.Add(2, "create"))
	require.NoError(t, c.Inc("delete"))

	assert.Equal(t, 3.0, c.Value("create"))
	assert.Equal(t, 1.0, c.Value("delete"))
	assert.Equal(t, 0.0, c.Value("update"))

	samples := c.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, []string{"create"}, samples[0].LabelValues)
	assert.Equal(t, []string{"delete"}, samples[1].LabelValues)
}

func TestCounterRejectsInvalidDelta(t *testing.T) {
	c := NewCounter("c_total", "help", "operation")
	require.NoError(t, c.Add(5, "x"))

	err := c.Add(-1, "x")
	assert.ErrorIs(t, err, ErrInvalidDelta)
	assert.ErrorIs(t, c.Add(math.NaN(), "x"), ErrInvalidDelta)
	assert.Equal(t, 5.0, c.Value("x"))
}

func TestLabelCardinality(t *testing.T) {
	c := NewCounter("c_total", "help", "operation")
	assert.ErrorIs(t, c.Inc(), ErrLabelCardinality)
	assert.ErrorIs(t, c.Inc("a", "b"), ErrLabelCardinality)

	g := NewGauge("g", "help")
	assert.ErrorIs(t, g.Set(1, "extra"), ErrLabelCardinality)

	h, err := NewHistogram("h", "help", nil, "method", "route")
	require.NoError(t, err)
	assert.ErrorIs(t, h.Observe(0.1, "GET"), ErrLabelCardinality)
	assert.Empty(t, h.Samples())
}

func TestGauge(t *testing.T) {
	g := NewGauge("active_requests", "Number of active requests")

	// label-less metrics expose a zero sample before the first update
	samples := g.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, 0.0, samples[0].Value)

	require.NoError(t, g.Inc())
	require.NoError(t, g.Inc())
	require.NoError(t, g.Dec())
	assert.Equal(t, 1.0, g.Value())

	require.NoError(t, g.Set(42.5))
	require.NoError(t, g.Sub(2.5))
	assert.Equal(t, 40.0, g.Value())

	require.NoError(t, g.Add(-50))
	assert.Equal(t, -10.0, g.Value())
}

func TestNewHistogramValidatesBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets []float64
		wantErr bool
	}{
		{"default", nil, false},
		{"ascending", []float64{0.1, 1, 10}, false},
		{"equal bounds", []float64{1, 1}, true},
		{"descending", []float64{2, 1}, true},
		{"infinite", []float64{1, math.Inf(1)}, true},
		{"nan", []float64{math.NaN()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHistogram("h", "help", tt.buckets)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBuckets)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}

	h, err := NewHistogram("h", "help", nil)
	require.NoError(t, err)
	assert.Equal(t, DefBuckets, h.Buckets())
}

func TestHistogramObserve(t *testing.T) {
	h, err := NewHistogram("http_request_duration_seconds", "Duration of HTTP requests in seconds",
		[]float64{0.1, 0.5, 1}, "method", "route", "status_code")
	require.NoError(t, err)

	for _, v := range []float64{0.05, 0.1, 0.3, 0.7, 3} {
		require.NoError(t, h.Observe(v, "GET", "/api/todos", "200"))
	}

	s, ok := h.Sample("GET", "/api/todos", "200")
	require.True(t, ok)
	assert.Equal(t, uint64(5), s.Count)
	assert.InDelta(t, 4.15, s.Sum, 1e-9)

	require.Len(t, s.Buckets, 4)
	assert.Equal(t, Bucket{UpperBound: 0.1, Count: 2}, s.Buckets[0])
	assert.Equal(t, Bucket{UpperBound: 0.5, Count: 3}, s.Buckets[1])
	assert.Equal(t, Bucket{UpperBound: 1, Count: 4}, s.Buckets[2])
	assert.True(t, math.IsInf(s.Buckets[3].UpperBound, 1))
	assert.Equal(t, s.Count, s.Buckets[3].Count)

	for i := 1; i < len(s.Buckets); i++ {
		assert.GreaterOrEqual(t, s.Buckets[i].Count, s.Buckets[i-1].Count)
	}

	_, ok = h.Sample("POST", "/api/todos", "201")
	assert.False(t, ok)
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	c := NewCounter("c_total", "help", "operation")
	g := NewGauge("g", "help")
	h, err := NewHistogram("h", "help", nil, "route")
	require.NoError(t, err)

	const workers, perWorker = 16, 500
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = c.Inc("create")
				_ = g.Inc()
				_ = g.Dec()
				_ = h.Observe(0.01, "/api/todos")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(workers*perWorker), c.Value("create"))
	assert.Equal(t, 0.0, g.Value())
	s, ok := h.Sample("/api/todos")
	require.True(t, ok)
	assert.Equal(t, uint64(workers*perWorker), s.Count)
	assert.Equal(t, s.Count, s.Buckets[len(s.Buckets)-1].Count)
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	first := NewCounter("todo_operations_total", "help", "operation")
	require.NoError(t, reg.Register(first))

	err := reg.Register(NewGauge("todo_operations_total", "other"))
	assert.ErrorIs(t, err, ErrDuplicateMetricName)

	m, ok := reg.Lookup("todo_operations_total")
	require.True(t, ok)
	assert.Same(t, first, m)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	assert.Panics(t, func() { reg.MustRegister(NewCounter("todo_operations_total", "help")) })
}

func TestRegistryRejectsInvalidNames(t *testing.T) {
	reg := NewRegistry()
	h, err := NewHistogram("latency_seconds", "help", nil, "le")
	require.NoError(t, err)

	for _, m := range []Metric{
		NewCounter("todo-operations", "help"),
		NewCounter("1st_total", "help"),
		NewGauge("memory_bytes", "help", "heap type"),
		NewGauge("memory_bytes", "help", "__type"),
		h,
	} {
		assert.ErrorIs(t, reg.Register(m), ErrInvalidName, m.Name())
	}
	assert.NoError(t, reg.Register(NewGauge("memory_bytes", "help", "type")))
}

func gatherFamilies(names ...string) prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		mfs := make([]*dto.MetricFamily, 0, len(names))
		for _, n := range names {
			mfs = append(mfs, &dto.MetricFamily{
				Name:   proto.String(n),
				Help:   proto.String("help"),
				Type:   dto.MetricType_GAUGE.Enum(),
				Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(1)}}},
			})
		}
		return mfs, nil
	})
}

func TestAttachGathererRejectsNameClash(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NewGauge("active_requests", "help"))

	err := reg.AttachGatherer(gatherFamilies("active_requests"))
	assert.ErrorIs(t, err, ErrDuplicateMetricName)

	require.NoError(t, reg.AttachGatherer(gatherFamilies("build_info")))
	assert.ErrorIs(t, reg.Register(NewGauge("build_info", "help")), ErrDuplicateMetricName)
	assert.ErrorIs(t, reg.AttachGatherer(gatherFamilies("build_info")), ErrDuplicateMetricName)

	var buf bytes.Buffer
	require.NoError(t, reg.Render(&buf))
	assert.Equal(t, 1, strings.Count(buf.String(), "# TYPE active_requests "))
	assert.Contains(t, buf.String(), "build_info 1\n")
}

func TestRenderRejectsLateNameClash(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NewGauge("active_requests", "help"))

	var calls int
	require.NoError(t, reg.AttachGatherer(prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		calls++
		if calls == 1 {
			return nil, nil
		}
		return gatherFamilies("active_requests").Gather()
	})))

	var buf bytes.Buffer
	assert.ErrorIs(t, reg.Render(&buf), ErrDuplicateMetricName)
}

func TestRegistryCollect(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(
		NewGauge("a", "help"),
		NewGauge("b", "help"),
		NewGauge("c", "help"),
	)

	var names []string
	for m, samples := range reg.Collect() {
		names = append(names, m.Name())
		assert.Len(t, samples, 1)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	names = names[:0]
	for m := range reg.Collect() {
		names = append(names, m.Name())
		if m.Name() == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestRenderEmptyRegistry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRegistry().Render(&buf))
	assert.Empty(t, buf.String())
}

func TestRenderMetricWithoutTuples(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NewCounter("todo_operations_total", "Total number of todo operations", "operation"))

	var buf bytes.Buffer
	require.NoError(t, reg.Render(&buf))
	assert.Equal(t,
		"# HELP todo_operations_total Total number of todo operations\n"+
			"# TYPE todo_operations_total counter\n",
		buf.String())
}

func TestRenderCounter(t *testing.T) {
	reg := NewRegistry()
	ops := NewCounter("todo_operations_total", "Total number of todo operations", "operation")
	reg.MustRegister(ops)
	require.NoError(t, ops.Inc("create"))
	require.NoError(t, ops.Inc("create"))

	var buf bytes.Buffer
	require.NoError(t, reg.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "# HELP todo_operations_total Total number of todo operations\n")
	assert.Contains(t, out, "# TYPE todo_operations_total counter\n")
	assert.Contains(t, out, "todo_operations_total{operation=\"create\"} 2\n")
}

func TestRenderParsesBack(t *testing.T) {
	reg := NewRegistry()
	active := NewGauge("active_requests", "Number of active requests")
	ops := NewCounter("todo_operations_total", "Total number of todo operations", "operation")
	dur, err := NewHistogram("http_request_duration_seconds", "Duration of HTTP requests in seconds",
		DefBuckets, "method", "route", "status_code")
	require.NoError(t, err)
	reg.MustRegister(active, ops, dur)

	require.NoError(t, active.Set(3))
	require.NoError(t, ops.Inc("update_error"))
	require.NoError(t, dur.Observe(0.02, "POST", "/api/todos", "201"))
	require.NoError(t, dur.Observe(7, "POST", "/api/todos", "201"))

	var buf bytes.Buffer
	require.NoError(t, reg.Render(&buf))

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(buf.String()))
	require.NoError(t, err)

	require.Contains(t, families, "active_requests")
	assert.Equal(t, 3.0, families["active_requests"].Metric[0].GetGauge().GetValue())

	require.Contains(t, families, "todo_operations_total")
	assert.Equal(t, 1.0, families["todo_operations_total"].Metric[0].GetCounter().GetValue())

	require.Contains(t, families, "http_request_duration_seconds")
	hist := families["http_request_duration_seconds"].Metric[0].GetHistogram()
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 7.02, hist.GetSampleSum(), 1e-9)

	labels := map[string]string{}
	for _, lp := range families["http_request_duration_seconds"].Metric[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	assert.Equal(t, map[string]string{"method": "POST", "route": "/api/todos", "status_code": "201"}, labels)
}

func TestRenderHistogramInfBucket(t *testing.T) {
	reg := NewRegistry()
	h, err := NewHistogram("h", "help", []float64{1})
	require.NoError(t, err)
	reg.MustRegister(h)
	require.NoError(t, h.Observe(0.5))
	require.NoError(t, h.Observe(2))

	var buf bytes.Buffer
	require.NoError(t, reg.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "h_bucket{le=\"1\"} 1\n")
	assert.Contains(t, out, "h_bucket{le=\"+Inf\"} 2\n")
	assert.Contains(t, out, "h_sum 2.5\n")
	assert.Contains(t, out, "h_count 2\n")
}

func TestRenderWhileUpdating(t *testing.T) {
	reg := NewRegistry()
	ops := NewCounter("todo_operations_total", "help", "operation")
	dur, err := NewHistogram("d", "help", nil, "route")
	require.NoError(t, err)
	reg.MustRegister(ops, dur)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = ops.Inc("read")
					_ = dur.Observe(0.2, "/api/todos")
				}
			}
		}()
	}

	var parser expfmt.TextParser
	for i := 0; i < 50; i++ {
		var buf bytes.Buffer
		require.NoError(t, reg.Render(&buf))
		families, err := parser.TextToMetricFamilies(strings.NewReader(buf.String()))
		require.NoError(t, err)
		if mf, ok := families["d"]; ok && len(mf.Metric) > 0 {
			hist := mf.Metric[0].GetHistogram()
			buckets := hist.GetBucket()
			for j := 1; j < len(buckets); j++ {
				assert.GreaterOrEqual(t, buckets[j].GetCumulativeCount(), buckets[j-1].GetCumulativeCount())
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestAttachDefaultCollectors(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NewGauge("active_requests", "Number of active requests"))
	require.NoError(t, reg.AttachDefaultCollectors(DefaultCollectorPrefix))

	var buf bytes.Buffer
	require.NoError(t, reg.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "active_requests 0\n")
	assert.Contains(t, out, "todo_app_go_goroutines")
	assert.NotContains(t, out, "\ngo_goroutines")
}

func TestNewAppMetrics(t *testing.T) {
	reg := NewRegistry()
	m, err := NewAppMetrics(reg)
	require.NoError(t, err)

	for _, name := range []string{NameRequestDuration, NameActiveRequests, NameTodoOperations, NameMemoryUsage, NameResponseTime} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, name)
	}
	assert.Equal(t, []string{"method", "route", "status_code"}, m.RequestDuration.LabelNames())
	assert.Equal(t, DefBuckets, m.RequestDuration.Buckets())

	_, err = NewAppMetrics(reg)
	assert.ErrorIs(t, err, ErrDuplicateMetricName)
}

func TestRenderAppMetricsBeforeTraffic(t *testing.T) {
	reg := NewRegistry()
	_, err := NewAppMetrics(reg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, reg.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "# TYPE http_request_duration_seconds histogram\n")
	assert.Contains(t, out, "active_requests 0\n")
	assert.Contains(t, out, "response_time_ms 0\n")
	assert.NotContains(t, out, "http_request_duration_seconds_count")
}

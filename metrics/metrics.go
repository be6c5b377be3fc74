// Package metrics provides a process-local metric registry for recording
// request-lifecycle measurements and exposing them to a Prometheus scraper.
//
// The registry owns a set of named metrics. Each metric is one of three
// kinds and carries an ordered list of label names that is fixed when the
// metric is constructed:
//   - Counter: a monotonically non-decreasing value per label tuple.
//   - Gauge: a value per label tuple that can be set, raised or lowered.
//   - Histogram: per label tuple, cumulative bucket counts plus a running
//     sum and count of observations.
//
// All update methods are safe for concurrent use. Updates to one label
// tuple never block on updates to another; the registry only takes a read
// lock to find a tuple that already exists.
//
// Usage Example:
//
//	reg := metrics.NewRegistry()
//	ops := metrics.NewCounter("todo_operations_total", "Total todo operations", "operation")
//	reg.MustRegister(ops)
//	_ = ops.Inc("create")
//
//	var buf bytes.Buffer
//	_ = reg.Render(&buf) // todo_operations_total{operation="create"} 1
package metrics

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
)

var (
	// ErrDuplicateMetricName is returned when a metric name is registered twice.
	ErrDuplicateMetricName = errors.New("duplicate metric name")

	// ErrInvalidDelta is returned when a counter is asked to move backwards.
	ErrInvalidDelta = errors.New("invalid delta")

	// ErrLabelCardinality is returned when the number of label values does not
	// match the label names the metric was constructed with.
	ErrLabelCardinality = errors.New("label cardinality mismatch")

	// ErrInvalidBuckets is returned for histogram bounds that are not strictly
	// ascending finite numbers.
	ErrInvalidBuckets = errors.New("invalid histogram buckets")

	// ErrInvalidName is returned for metric or label names the exposition
	// format cannot carry.
	ErrInvalidName = errors.New("invalid metric or label name")
)

// Kind identifies the type of a metric. Its string form is the value used on
// the exposition TYPE line.
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

// Metric is implemented by Counter, Gauge and Histogram.
type Metric interface {
	Name() string
	Help() string
	Kind() Kind
	LabelNames() []string

	// Samples returns a snapshot of every label tuple seen so far.
	Samples() []Sample
}

// Sample is the state of one label tuple.
// Value is set for counters and gauges; Buckets, Sum and Count for histograms.
type Sample struct {
	LabelValues []string
	Value       float64

	Buckets []Bucket
	Sum     float64
	Count   uint64
}

// Bucket is one cumulative histogram bucket. The last bucket of a histogram
// sample always has an UpperBound of +Inf and a Count equal to Sample.Count.
type Bucket struct {
	UpperBound float64
	Count      uint64
}

// Label returns the value of the named label in s, using names as the label
// order of the owning metric.
func (s Sample) Label(names []string, name string) (string, bool) {
	for i, n := range names {
		if n == name && i < len(s.LabelValues) {
			return s.LabelValues[i], true
		}
	}
	return "", false
}

// atomicFloat64 stores float64 bits for lock-free updates.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}

// Add applies delta with a compare-and-swap loop so concurrent adds are not lost.
func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// labelsKey joins label values with a separator that cannot appear in valid UTF-8 text.
func labelsKey(values []string) string {
	return strings.Join(values, "\xff")
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

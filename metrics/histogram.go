package metrics

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// DefBuckets are the request-duration buckets, in seconds, used by the todo service.
var DefBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5}

// Histogram counts observations into fixed buckets and keeps a running sum
// and count per label tuple.
type Histogram struct {
	family[histogramCell]
	bounds []float64 // finite upper bounds, strictly ascending
}

// histogramCell is guarded by its own mutex so that a snapshot never sees a
// bucket increment without the matching count and sum.
type histogramCell struct {
	mu     sync.Mutex
	counts []uint64 // non-cumulative; last slot is the +Inf bucket
	sum    float64
	count  uint64
}

// NewHistogram constructs an unregistered histogram. buckets must be strictly
// ascending and finite; the +Inf bucket is implicit. A nil or empty buckets
// slice uses DefBuckets.
func NewHistogram(name, help string, buckets []float64, labelNames ...string) (*Histogram, error) {
	if len(buckets) == 0 {
		buckets = DefBuckets
	}
	for i, b := range buckets {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("%w: histogram %s bound %v is not finite", ErrInvalidBuckets, name, b)
		}
		if i > 0 && b <= buckets[i-1] {
			return nil, fmt.Errorf("%w: histogram %s bounds must be strictly ascending", ErrInvalidBuckets, name)
		}
	}
	bounds := make([]float64, len(buckets))
	copy(bounds, buckets)

	h := &Histogram{bounds: bounds}
	h.init(name, help, labelNames, func() *histogramCell {
		return &histogramCell{counts: make([]uint64, len(bounds)+1)}
	})
	return h, nil
}

func (h *Histogram) Kind() Kind { return KindHistogram }

// Buckets returns a copy of the finite upper bounds.
func (h *Histogram) Buckets() []float64 {
	out := make([]float64, len(h.bounds))
	copy(out, h.bounds)
	return out
}

// Observe records value in the tuple identified by labelValues.
func (h *Histogram) Observe(value float64, labelValues ...string) error {
	cell, err := h.get(KindHistogram, labelValues)
	if err != nil {
		return err
	}
	i := sort.SearchFloat64s(h.bounds, value)

	cell.mu.Lock()
	cell.counts[i]++
	cell.sum += value
	cell.count++
	cell.mu.Unlock()
	return nil
}

func (h *Histogram) Samples() []Sample {
	tuples := h.snapshotTuples()
	out := make([]Sample, 0, len(tuples))
	for _, t := range tuples {
		out = append(out, h.sampleOf(t.labelValues, t.value))
	}
	return out
}

// Sample returns the snapshot of a single tuple.
func (h *Histogram) Sample(labelValues ...string) (Sample, bool) {
	cell, ok := h.lookup(labelValues)
	if !ok {
		return Sample{}, false
	}
	return h.sampleOf(labelValues, cell), true
}

func (h *Histogram) sampleOf(labelValues []string, cell *histogramCell) Sample {
	cell.mu.Lock()
	counts := make([]uint64, len(cell.counts))
	copy(counts, cell.counts)
	sum, count := cell.sum, cell.count
	cell.mu.Unlock()

	buckets := make([]Bucket, len(counts))
	var cumulative uint64
	for i, n := range counts {
		cumulative += n
		bound := math.Inf(1)
		if i < len(h.bounds) {
			bound = h.bounds[i]
		}
		buckets[i] = Bucket{UpperBound: bound, Count: cumulative}
	}
	return Sample{
		LabelValues: copyStrings(labelValues),
		Buckets:     buckets,
		Sum:         sum,
		Count:       count,
	}
}

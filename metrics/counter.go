package metrics

import (
	"fmt"
	"math"
)

// Counter is a monotonically non-decreasing metric.
type Counter struct {
	family[atomicFloat64]
}

// NewCounter constructs an unregistered counter with the given label names.
func NewCounter(name, help string, labelNames ...string) *Counter {
	m := &Counter{}
	m.init(name, help, labelNames, func() *atomicFloat64 { return &atomicFloat64{} })
	return m
}

func (c *Counter) Kind() Kind { return KindCounter }

// Inc adds 1 to the tuple identified by labelValues.
func (c *Counter) Inc(labelValues ...string) error {
	return c.Add(1, labelValues...)
}

// Add adds delta to the tuple identified by labelValues. The tuple is created
// at zero on first use. A negative or NaN delta fails with ErrInvalidDelta and
// leaves the counter unchanged.
func (c *Counter) Add(delta float64, labelValues ...string) error {
	if delta < 0 || math.IsNaN(delta) {
		return fmt.Errorf("%w: counter %s cannot add %v", ErrInvalidDelta, c.name, delta)
	}
	v, err := c.get(KindCounter, labelValues)
	if err != nil {
		return err
	}
	v.Add(delta)
	return nil
}

// Value returns the current value of a tuple, or 0 if it was never touched.
func (c *Counter) Value(labelValues ...string) float64 {
	v, ok := c.lookup(labelValues)
	if !ok {
		return 0
	}
	return v.Load()
}

func (c *Counter) Samples() []Sample {
	tuples := c.snapshotTuples()
	out := make([]Sample, 0, len(tuples))
	for _, t := range tuples {
		out = append(out, Sample{LabelValues: copyStrings(t.labelValues), Value: t.value.Load()})
	}
	return out
}

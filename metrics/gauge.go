package metrics

// Gauge is a metric whose value can go up and down, used for point-in-time
// readings such as in-flight requests or memory usage.
type Gauge struct {
	family[atomicFloat64]
}

// NewGauge constructs an unregistered gauge with the given label names.
func NewGauge(name, help string, labelNames ...string) *Gauge {
	m := &Gauge{}
	m.init(name, help, labelNames, func() *atomicFloat64 { return &atomicFloat64{} })
	return m
}

func (g *Gauge) Kind() Kind { return KindGauge }

// Set replaces the value of the tuple identified by labelValues.
func (g *Gauge) Set(value float64, labelValues ...string) error {
	v, err := g.get(KindGauge, labelValues)
	if err != nil {
		return err
	}
	v.Store(value)
	return nil
}

// Add adds delta (which may be negative) to the tuple.
func (g *Gauge) Add(delta float64, labelValues ...string) error {
	v, err := g.get(KindGauge, labelValues)
	if err != nil {
		return err
	}
	v.Add(delta)
	return nil
}

func (g *Gauge) Sub(delta float64, labelValues ...string) error {
	return g.Add(-delta, labelValues...)
}

func (g *Gauge) Inc(labelValues ...string) error {
	return g.Add(1, labelValues...)
}

func (g *Gauge) Dec(labelValues ...string) error {
	return g.Add(-1, labelValues...)
}

// Value returns the current value of a tuple, or 0 if it was never touched.
func (g *Gauge) Value(labelValues ...string) float64 {
	v, ok := g.lookup(labelValues)
	if !ok {
		return 0
	}
	return v.Load()
}

func (g *Gauge) Samples() []Sample {
	tuples := g.snapshotTuples()
	out := make([]Sample, 0, len(tuples))
	for _, t := range tuples {
		out = append(out, Sample{LabelValues: copyStrings(t.labelValues), Value: t.value.Load()})
	}
	return out
}

package metrics

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"
)

// Registry owns the metrics of a process. Metrics are appended and never
// removed, so a Metric obtained from the registry stays valid for the life of
// the process.
type Registry struct {
	mu        sync.RWMutex
	metrics   []Metric
	byName    map[string]Metric
	gatherers []prometheus.Gatherer
	gathered  map[string]struct{} // family names seen from gatherers at attach time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Metric),
		gathered: make(map[string]struct{}),
	}
}

// Register adds m to the registry. It fails with ErrInvalidName if the metric
// or one of its label names is not a valid Prometheus name, and with
// ErrDuplicateMetricName if the name is already taken by a registered metric
// or by a family of an attached gatherer.
func (r *Registry) Register(m Metric) error {
	if err := validateNames(m); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetricName, m.Name())
	}
	if _, exists := r.gathered[m.Name()]; exists {
		return fmt.Errorf("%w: %s is provided by an attached gatherer", ErrDuplicateMetricName, m.Name())
	}
	r.byName[m.Name()] = m
	r.metrics = append(r.metrics, m)
	return nil
}

// MustRegister registers every metric and panics on the first failure.
// It is meant for process startup, where a duplicate name is a programming error.
func (r *Registry) MustRegister(ms ...Metric) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the metric registered under name.
func (r *Registry) Lookup(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Collect yields every registered metric, in registration order, together
// with a snapshot of its samples. Samples are taken lazily as the sequence is
// consumed; each metric's snapshot is consistent per label tuple.
func (r *Registry) Collect() iter.Seq2[Metric, []Sample] {
	return func(yield func(Metric, []Sample) bool) {
		r.mu.RLock()
		ms := slices.Clone(r.metrics)
		r.mu.RUnlock()

		for _, m := range ms {
			if !yield(m, m.Samples()) {
				return
			}
		}
	}
}

// AttachGatherer adds a source of externally collected metric families that
// Render appends after the registry's own metrics. g is gathered once here;
// a family whose name is already taken fails with ErrDuplicateMetricName and
// g is not attached.
func (r *Registry) AttachGatherer(g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		name := mf.GetName()
		_, registered := r.byName[name]
		_, gathered := r.gathered[name]
		if registered || gathered || slices.Contains(names, name) {
			return fmt.Errorf("%w: %s", ErrDuplicateMetricName, name)
		}
		names = append(names, name)
	}
	for _, name := range names {
		r.gathered[name] = struct{}{}
	}
	r.gatherers = append(r.gatherers, g)
	return nil
}

func validateNames(m Metric) error {
	if !model.IsValidMetricName(model.LabelValue(m.Name())) {
		return fmt.Errorf("%w: metric %q", ErrInvalidName, m.Name())
	}
	for _, n := range m.LabelNames() {
		if !model.LabelName(n).IsValid() || strings.HasPrefix(n, model.ReservedLabelPrefix) {
			return fmt.Errorf("%w: label %q of %s", ErrInvalidName, n, m.Name())
		}
		if m.Kind() == KindHistogram && n == model.BucketLabel {
			return fmt.Errorf("%w: label %q is reserved in histogram %s", ErrInvalidName, n, m.Name())
		}
	}
	return nil
}

func (r *Registry) attachedGatherers() []prometheus.Gatherer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.gatherers)
}

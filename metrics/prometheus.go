package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// DefaultCollectorPrefix is prepended to the names of the Go runtime and
// process metrics produced by the default collectors.
const DefaultCollectorPrefix = "todo_app_"

// NewDefaultCollectors builds a private Prometheus registry holding the Go
// runtime and process collectors, with every metric name prefixed by prefix.
// The result is meant to be passed to Registry.AttachGatherer.
func NewDefaultCollectors(prefix string) (*prometheus.Registry, error) {
	pr := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWithPrefix(prefix, pr)

	if err := wrapped.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := wrapped.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return pr, nil
}

// AttachDefaultCollectors registers the default collectors under prefix and
// attaches them to r.
func (r *Registry) AttachDefaultCollectors(prefix string) error {
	pr, err := NewDefaultCollectors(prefix)
	if err != nil {
		return err
	}
	return r.AttachGatherer(pr)
}

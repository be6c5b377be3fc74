package metrics

import (
	"fmt"
	"sync"
)

// family holds the identity of a metric and its label tuples. V is the
// per-tuple value type (counter/gauge cell or histogram cell).
type family[V any] struct {
	name       string
	help       string
	labelNames []string
	newValue   func() *V

	mu     sync.RWMutex
	tuples map[string]*tuple[V]
	order  []*tuple[V] // first-seen order, append only
}

type tuple[V any] struct {
	labelValues []string
	value       *V
}

// init prepares an empty family. A metric without labels has exactly one
// tuple, so it is created up front and exposes a zero sample from the start.
func (f *family[V]) init(name, help string, labelNames []string, newValue func() *V) {
	f.name = name
	f.help = help
	f.labelNames = copyStrings(labelNames)
	f.newValue = newValue
	f.tuples = make(map[string]*tuple[V])
	if len(labelNames) == 0 {
		t := &tuple[V]{labelValues: []string{}, value: newValue()}
		f.tuples[labelsKey(nil)] = t
		f.order = append(f.order, t)
	}
}

func (f *family[V]) Name() string { return f.name }

func (f *family[V]) Help() string { return f.help }

func (f *family[V]) LabelNames() []string { return copyStrings(f.labelNames) }

// get returns the cell for the given label values, creating it on first use.
// A new cell is fully initialized before it becomes visible to readers.
func (f *family[V]) get(kind Kind, values []string) (*V, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s %s expects %d label values, got %d",
			ErrLabelCardinality, kind, f.name, len(f.labelNames), len(values))
	}

	key := labelsKey(values)
	f.mu.RLock()
	t, ok := f.tuples[key]
	f.mu.RUnlock()
	if ok {
		return t.value, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok = f.tuples[key]; ok {
		return t.value, nil
	}
	t = &tuple[V]{labelValues: copyStrings(values), value: f.newValue()}
	f.tuples[key] = t
	f.order = append(f.order, t)
	return t.value, nil
}

// lookup returns the cell for values without creating it.
func (f *family[V]) lookup(values []string) (*V, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tuples[labelsKey(values)]
	if !ok {
		return nil, false
	}
	return t.value, true
}

// snapshotTuples copies the tuple list so values can be read without holding the lock.
func (f *family[V]) snapshotTuples() []*tuple[V] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*tuple[V], len(f.order))
	copy(out, f.order)
	return out
}

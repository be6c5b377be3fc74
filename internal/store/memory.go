package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps todos in a map. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	todos map[string]*memoryEntry
	seq   uint64
	now   func() time.Time
}

type memoryEntry struct {
	todo Todo
	seq  uint64 // insertion order, breaks ties between equal CreatedAt values
}

func NewMemory() *Memory {
	return &Memory{
		todos: make(map[string]*memoryEntry),
		now:   time.Now,
	}
}

func (m *Memory) List(ctx context.Context) ([]Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.todos))
	for _, e := range m.todos {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *memoryEntry) int {
		if c := b.todo.CreatedAt.Compare(a.todo.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		}
		return 0
	})

	out := make([]Todo, len(entries))
	for i, e := range entries {
		out[i] = e.todo
	}
	return out, nil
}

func (m *Memory) Create(ctx context.Context, text string) (Todo, error) {
	if err := ctx.Err(); err != nil {
		return Todo{}, err
	}
	now := m.now().UTC()
	t := Todo{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.todos[t.ID] = &memoryEntry{todo: t, seq: m.seq}
	return t, nil
}

func (m *Memory) Update(ctx context.Context, id string, patch Patch) (Todo, error) {
	if err := ctx.Err(); err != nil {
		return Todo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.todos[id]
	if !ok {
		return Todo{}, ErrNotFound
	}
	patch.apply(&e.todo, m.now().UTC())
	return e.todo, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.todos[id]; !ok {
		return ErrNotFound
	}
	delete(m.todos, id)
	return nil
}

func (m *Memory) Close() error { return nil }

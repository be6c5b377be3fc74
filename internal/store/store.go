// Package store persists todo items. Two backends are provided: an in-process
// map for development and tests, and Redis for shared deployments.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no todo has the requested id.
var ErrNotFound = errors.New("todo not found")

// Todo is a single todo item as stored and as returned over HTTP.
type Todo struct {
	ID        string    `json:"_id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

func (p Patch) apply(t *Todo, now time.Time) {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	t.UpdatedAt = now
}

// Store is the persistence layer behind the todo handlers.
type Store interface {
	// List returns every todo, newest first.
	List(ctx context.Context) ([]Todo, error)
	Create(ctx context.Context, text string) (Todo, error)
	// Update applies patch to the todo with id and returns the result.
	Update(ctx context.Context, id string, patch Patch) (Todo, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// WithTimeout bounds every call to s by d. A non-positive d returns s unchanged.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: d}
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (t *timeoutStore) List(ctx context.Context) ([]Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.List(ctx)
}

func (t *timeoutStore) Create(ctx context.Context, text string) (Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Create(ctx, text)
}

func (t *timeoutStore) Update(ctx context.Context, id string, patch Patch) (Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Update(ctx, id, patch)
}

func (t *timeoutStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Delete(ctx, id)
}

func (t *timeoutStore) Close() error {
	return t.next.Close()
}

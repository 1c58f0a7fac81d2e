// Package lazy defers the construction of a value until it is first used.
package lazy

import (
	"context"
	"sync"
	"sync/atomic"

	"go.llib.dev/frameless/pkg/errorkit"
)

const ErrConstructionFailure errorkit.Error = "lazy: construction failed"

// Make allows a value to be lazy evaluated when it is actually used.
func Make[T any](init func() T) func() T {
	h := Of(init)
	return func() T {
		v, _ := h.Get(context.Background())
		return v
	}
}

// Handle holds either a construction recipe or the value the recipe built.
// The recipe runs at most once successfully, and every Get after that shares the same value.
// A failed construction leaves the Handle unconstructed, so the next Get retries it.
//
// Handle is safe for concurrent use.
type Handle[T any] struct {
	recipe func(context.Context) (T, error)

	done  atomic.Bool
	m     sync.Mutex
	value T
}

func New[T any](recipe func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{recipe: recipe}
}

// Of creates a Handle from a recipe that can't fail.
func Of[T any](recipe func() T) *Handle[T] {
	return New(func(context.Context) (T, error) { return recipe(), nil })
}

// Get returns the value, building it first if this is the first successful call.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	if h.done.Load() {
		return h.value, nil
	}
	return h.init(ctx)
}

// Peek returns the value only when it is already constructed.
// It never triggers the construction.
func (h *Handle[T]) Peek() (T, bool) {
	if h.done.Load() {
		return h.value, true
	}
	var zero T
	return zero, false
}

func (h *Handle[T]) Constructed() bool {
	return h.done.Load()
}

func (h *Handle[T]) init(ctx context.Context) (T, error) {
	h.m.Lock()
	defer h.m.Unlock()
	if h.done.Load() {
		return h.value, nil
	}
	var zero T
	if h.recipe == nil {
		return zero, ErrConstructionFailure.F("missing recipe")
	}
	v, err := h.recipe(ctx)
	if err != nil {
		return zero, ErrConstructionFailure.Wrap(err)
	}
	h.value = v
	h.recipe = nil
	h.done.Store(true)
	return v, nil
}

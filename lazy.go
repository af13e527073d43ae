package strata

import (
	"context"
	"slices"
	"sync"
)

// Lazy is a deferred value. The bound loader runs at most once, on the first
// call to Force, and its result is cached. A failed load caches nothing, so a
// later Force runs the loader again; the core itself never retries.
//
// The loader runs while the value's lock is held. It must not access the
// same Lazy.
type Lazy[T any] struct {
	mu     sync.Mutex
	name   string
	load   func(context.Context) (T, error)
	value  T
	loaded bool
}

// NewLazy returns a Lazy bound to the given loader.
func NewLazy[T any](name string, load func(context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{name: name, load: load}
}

// Force loads the value if needed and returns it.
func (l *Lazy[T]) Force(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.forceLocked(ctx); err != nil {
		var zero T
		return zero, err
	}
	return l.value, nil
}

func (l *Lazy[T]) forceLocked(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	if l.load == nil {
		return NewNotLoadedError(l.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := l.load(ctx)
	if err != nil {
		return err
	}
	l.value, l.loaded, l.load = v, true, nil
	return nil
}

// Get returns the cached value without loading it.
func (l *Lazy[T]) Get() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.loaded
}

// Loaded reports whether the value was loaded.
func (l *Lazy[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Reset drops the cached value and binds a new loader.
func (l *Lazy[T]) Reset(name string, load func(context.Context) (T, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	l.name, l.load, l.value, l.loaded = name, load, zero, false
}

// List is a deferred collection used for to-many relationships. Nothing is
// queried until the first access; after that the list is an ordinary
// mutable collection over the cached elements.
//
// The zero value has no loader; accessing it returns a NotLoadedError until
// Reset binds one.
type List[T any] struct {
	lazy Lazy[[]T]
}

// NewList returns a List bound to the given loader.
func NewList[T any](name string, load func(context.Context) ([]T, error)) *List[T] {
	l := &List[T]{}
	l.Reset(name, load)
	return l
}

// ListOf returns an already loaded List holding the given items.
func ListOf[T any](items ...T) *List[T] {
	l := &List[T]{}
	l.lazy.value, l.lazy.loaded = items, true
	return l
}

// Reset re-initializes the list with a new loader. The next access runs it.
func (l *List[T]) Reset(name string, load func(context.Context) ([]T, error)) {
	l.lazy.Reset(name, load)
}

// Load runs the bound loader unless the list is already loaded.
func (l *List[T]) Load(ctx context.Context) error {
	_, err := l.lazy.Force(ctx)
	return err
}

// Loaded reports whether the elements are in memory.
func (l *List[T]) Loaded() bool {
	return l.lazy.Loaded()
}

// All returns a copy of the elements.
func (l *List[T]) All(ctx context.Context) ([]T, error) {
	items, err := l.lazy.Force(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// Len returns the number of elements.
func (l *List[T]) Len(ctx context.Context) (int, error) {
	items, err := l.lazy.Force(ctx)
	return len(items), err
}

// At returns the i-th element. It panics if i is out of range, like a slice.
func (l *List[T]) At(ctx context.Context, i int) (T, error) {
	items, err := l.lazy.Force(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return items[i], nil
}

// Contains reports whether any element satisfies the predicate.
func (l *List[T]) Contains(ctx context.Context, f func(T) bool) (bool, error) {
	items, err := l.lazy.Force(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(items, f), nil
}

// Append loads the list if needed and appends the given items.
func (l *List[T]) Append(ctx context.Context, items ...T) error {
	l.lazy.mu.Lock()
	defer l.lazy.mu.Unlock()
	if err := l.lazy.forceLocked(ctx); err != nil {
		return err
	}
	l.lazy.value = append(l.lazy.value, items...)
	return nil
}

// RemoveFunc loads the list if needed and removes every element satisfying
// the predicate. It returns the number of removed elements.
func (l *List[T]) RemoveFunc(ctx context.Context, f func(T) bool) (int, error) {
	l.lazy.mu.Lock()
	defer l.lazy.mu.Unlock()
	if err := l.lazy.forceLocked(ctx); err != nil {
		return 0, err
	}
	n := len(l.lazy.value)
	l.lazy.value = slices.DeleteFunc(l.lazy.value, f)
	return n - len(l.lazy.value), nil
}

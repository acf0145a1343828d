// Package fetch holds the state machines that sit between the request client
// and presentation code: a generic single-value fetcher with stale-response
// protection, a paginated accumulator with duplicate filtering, an
// infinite-scroll trigger, a manual retry helper and an error notification
// debouncer.
package fetch

import (
	"context"
	"sync"
)

// FetchFunc produces the value for the fetcher's current dependency key. The
// key is empty until SetKey is called.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// State is a snapshot of a fetcher. After an attempt settles either Data is
// set and Err is nil, or Data is nil and Err is set. While Loading is true
// the previous Data remains visible so callers can render stale content
// during a revalidation.
type State[T any] struct {
	Data    *T
	Loading bool
	Err     error
}

// Fetcher drives one value through idle, loading and settled states. Every
// Load bumps a generation counter; an attempt that settles after a newer one
// started leaves the shared state untouched, so out-of-order completions
// cannot clobber fresher data.
type Fetcher[T any] struct {
	fn FetchFunc[T]

	mu         sync.Mutex
	key        string
	generation uint64
	state      State[T]
	onChange   func(State[T])
}

// NewFetcher wraps fn. Nothing is fetched until Load or SetKey is called.
func NewFetcher[T any](fn FetchFunc[T]) *Fetcher[T] {
	return &Fetcher[T]{fn: fn}
}

// State returns the current snapshot.
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Key returns the current dependency key.
func (f *Fetcher[T]) Key() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

// OnChange registers a subscriber called after every state transition. The
// callback runs outside the fetcher's lock; calling back into the fetcher is
// allowed. A nil callback removes the subscriber.
func (f *Fetcher[T]) OnChange(cb func(State[T])) {
	f.mu.Lock()
	f.onChange = cb
	f.mu.Unlock()
}

// Load starts a new attempt for the current key and blocks until it settles.
// The returned error is this attempt's own outcome; shared state is only
// updated when no newer attempt has started in the meantime.
func (f *Fetcher[T]) Load(ctx context.Context) error {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	key := f.key
	f.state.Loading = true
	f.state.Err = nil
	f.notifyAndUnlock()

	data, err := f.fn(ctx, key)

	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		return err
	}
	f.state.Loading = false
	if err != nil {
		f.state.Data = nil
		f.state.Err = err
	} else {
		f.state.Data = &data
		f.state.Err = nil
	}
	f.notifyAndUnlock()
	return err
}

// Refetch is Load under its conventional name for refresh buttons.
func (f *Fetcher[T]) Refetch(ctx context.Context) error {
	return f.Load(ctx)
}

// SetKey changes the dependency key and reloads. Setting the already current
// key is a no-op.
func (f *Fetcher[T]) SetKey(ctx context.Context, key string) error {
	f.mu.Lock()
	if key == f.key {
		f.mu.Unlock()
		return nil
	}
	f.key = key
	f.mu.Unlock()
	return f.Load(ctx)
}

// ClearError drops the error field without touching Data or Loading.
func (f *Fetcher[T]) ClearError() {
	f.mu.Lock()
	if f.state.Err == nil {
		f.mu.Unlock()
		return
	}
	f.state.Err = nil
	f.notifyAndUnlock()
}

// notifyAndUnlock snapshots state, releases the lock and invokes the
// subscriber. Callers must hold f.mu and must not use it afterwards.
func (f *Fetcher[T]) notifyAndUnlock() {
	st := f.state
	cb := f.onChange
	f.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// Package preload runs background asset fetches with a bounded number of
// concurrent workers. Keys are drained from a FIFO queue, each key is fetched
// at most once, and every outcome is recorded instead of raised.
package preload

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// FetchFunc loads one asset. The priority is a hint for the underlying
// loader; it does not change queue order or the concurrency bound. Errors are
// recorded against the key, never propagated to the scheduler.
type FetchFunc func(ctx context.Context, key string, priority Priority) error

// Priority hints how eagerly the underlying fetch should treat an asset.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// Status is the lifecycle stage of a scheduled key.
type Status int

const (
	StatusQueued Status = iota
	StatusActive
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusActive:
		return "active"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger matches the client package's logger so the same implementation can
// serve both without importing either from the other.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Preloader. The zero value runs three concurrent
// fetches at low priority with no logging or metrics.
type Options struct {
	// MaxConcurrent bounds the number of in-flight fetches. Defaults to 3.
	MaxConcurrent int
	// Priority is passed to every fetch.
	Priority Priority
	Logger   Logger
	Metrics  Metrics
}

// Preloader drains a FIFO queue of asset keys through a fixed number of
// worker slots. Scheduling an already tracked key is a no-op, so a key is
// fetched at most once for the preloader's lifetime.
type Preloader struct {
	fetch    FetchFunc
	priority Priority
	logger   Logger
	metrics  Metrics

	mu      sync.Mutex
	queue   []string
	state   map[string]Status
	errs    map[string]error
	active  int
	closed  bool
	drained chan struct{}

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	closeOnce sync.Once
}

// New starts a preloader dispatching to fetch. Close releases it.
func New(fetch FetchFunc, opts Options) *Preloader {
	if fetch == nil {
		fetch = func(ctx context.Context, key string, priority Priority) error {
			return fmt.Errorf("no fetch function configured")
		}
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Preloader{
		fetch:    fetch,
		priority: opts.Priority,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		state:    make(map[string]Status),
		errs:     make(map[string]error),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
	go p.dispatch()
	return p
}

// Schedule enqueues every key that is not already tracked. Keys that are
// queued, active, or settled are skipped. Empty keys are ignored.
func (p *Preloader) Schedule(keys ...string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	added := 0
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, tracked := p.state[key]; tracked {
			continue
		}
		p.state[key] = StatusQueued
		p.queue = append(p.queue, key)
		added++
		p.metrics.RecordPreloadScheduled()
	}
	if added > 0 {
		if p.drained == nil {
			p.drained = make(chan struct{})
		}
		p.metrics.RecordPreloadQueueDepth(len(p.queue))
	}
	p.mu.Unlock()

	if added > 0 {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Status reports the lifecycle stage of key. The second return is false for
// keys never scheduled.
func (p *Preloader) Status(key string) (Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.state[key]
	return s, ok
}

// Err returns the recorded fetch error for key, or nil if the key is absent,
// still pending, or loaded successfully.
func (p *Preloader) Err(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs[key]
}

// IsLoading reports whether any key is queued or being fetched.
func (p *Preloader) IsLoading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) > 0 || p.active > 0
}

// Wait blocks until the queue is empty and no fetch is in flight, or until
// ctx is done.
func (p *Preloader) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 && p.active == 0 {
			p.mu.Unlock()
			return nil
		}
		drained := p.drained
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-drained:
		}
	}
}

// Close stops the dispatcher, cancels in-flight fetches and marks still
// queued keys as failed. Safe to call more than once.
func (p *Preloader) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.cancel()
		<-p.done
		p.wg.Wait()

		p.mu.Lock()
		for _, key := range p.queue {
			p.state[key] = StatusError
			p.errs[key] = context.Canceled
		}
		p.queue = nil
		p.metrics.RecordPreloadQueueDepth(0)
		p.signalDrainedLocked()
		p.mu.Unlock()
	})
}

// dispatch pops queued keys whenever a worker slot is free. It holds at most
// one unused slot at a time, released again when the queue turns out empty.
func (p *Preloader) dispatch() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
		}

		for {
			if err := p.sem.Acquire(p.ctx, 1); err != nil {
				return
			}
			key, ok := p.pop()
			if !ok {
				p.sem.Release(1)
				break
			}
			p.wg.Add(1)
			go p.run(key)
		}
	}
}

func (p *Preloader) pop() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return "", false
	}
	key := p.queue[0]
	p.queue = p.queue[1:]
	p.state[key] = StatusActive
	p.active++
	p.metrics.RecordPreloadQueueDepth(len(p.queue))
	p.metrics.RecordPreloadActive(p.active)
	return key, true
}

func (p *Preloader) run(key string) {
	defer p.wg.Done()
	defer p.sem.Release(1)
	p.settle(key, p.safeFetch(key))
}

// safeFetch converts a panicking fetch into a recorded error so one bad
// asset cannot take down the dispatcher.
func (p *Preloader) safeFetch(key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preload fetch panicked: %v", r)
		}
	}()
	return p.fetch(p.ctx, key, p.priority)
}

func (p *Preloader) settle(key string, err error) {
	p.mu.Lock()
	p.active--
	if err != nil {
		p.state[key] = StatusError
		p.errs[key] = err
		p.metrics.RecordPreloadSettled("error")
		if p.logger != nil {
			p.logger.Warn("Preload fetch failed", "key", key, "error", err.Error())
		}
	} else {
		p.state[key] = StatusDone
		p.metrics.RecordPreloadSettled("done")
		if p.logger != nil {
			p.logger.Debug("Preload fetch finished", "key", key)
		}
	}
	p.metrics.RecordPreloadActive(p.active)
	p.signalDrainedLocked()
	p.mu.Unlock()
}

func (p *Preloader) signalDrainedLocked() {
	if len(p.queue) == 0 && p.active == 0 && p.drained != nil {
		close(p.drained)
		p.drained = nil
	}
}

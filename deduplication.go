package photocluster

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"time"
)

// DeduplicationEntry represents an in-flight call shared between callers.
// Responses are materialized before completion, so handing the same *Response
// to every waiter is safe.
type DeduplicationEntry struct {
	response *Response
	err      error
	done     chan struct{}
	mu       sync.Mutex
	waiters  int
}

// DeduplicationTracker coalesces concurrent identical calls: the first caller
// becomes the owner and executes, later callers wait for its result.
type DeduplicationTracker struct {
	mu      sync.RWMutex
	entries map[string]*DeduplicationEntry
}

// NewDeduplicationTracker returns an in-memory de-duplication tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{
		entries: make(map[string]*DeduplicationEntry),
	}
}

// GetOrCreateEntry returns an existing entry (not owner) or creates a new one
// (owner=true).
func (dt *DeduplicationTracker) GetOrCreateEntry(key string) (*DeduplicationEntry, bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if entry, exists := dt.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &DeduplicationEntry{
		done:    make(chan struct{}),
		waiters: 1,
	}
	dt.entries[key] = entry
	return entry, true
}

// Complete finalizes an entry and releases waiters. The entry lingers briefly
// so near-simultaneous callers still coalesce, then expires.
func (dt *DeduplicationTracker) Complete(key string, resp *Response, err error) {
	dt.mu.Lock()
	entry, exists := dt.entries[key]
	dt.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.response = resp
	entry.err = err
	close(entry.done)
	entry.mu.Unlock()

	time.AfterFunc(100*time.Millisecond, func() {
		dt.mu.Lock()
		delete(dt.entries, key)
		dt.mu.Unlock()
	})
}

// Wait blocks until the owning call completes or the context cancels.
func (entry *DeduplicationEntry) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-entry.done:
		entry.mu.Lock()
		resp := entry.response
		err := entry.err
		entry.mu.Unlock()
		return resp, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeduplicationKeyFunc builds a key identifying identical in-flight calls.
type DeduplicationKeyFunc func(method, url string, body []byte) string

// DefaultDeduplicationKeyFunc keys on method + URL, mixing in a body hash for
// mutating verbs.
func DefaultDeduplicationKeyFunc(method, url string, body []byte) string {
	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte(url))

	if len(body) > 0 && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch) {
		sum := sha256.Sum256(body)
		h.Write(sum[:])
	}

	return fmt.Sprintf("%x", h.Sum64())
}

// DeduplicationCondition decides whether a call is eligible for deduplication.
type DeduplicationCondition func(method string) bool

// DefaultDeduplicationCondition enables deduplication for safe idempotent
// methods only.
func DefaultDeduplicationCondition(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

package fetch

import (
	"context"
	"sync"
)

// ScrollTrigger converts sentinel visibility changes into load-more calls.
// Only a false to true transition fires, and only when hasMore reports
// another page and no previous call is still settling, so a slow fetch
// cannot be stacked by repeated scroll events.
type ScrollTrigger struct {
	loadMore func(ctx context.Context) error
	hasMore  func() bool

	mu       sync.Mutex
	visible  bool
	inFlight bool
}

// NewScrollTrigger wires the trigger to loadMore, typically Pager.LoadMore.
// hasMore gates firing; nil means always eligible.
func NewScrollTrigger(loadMore func(ctx context.Context) error, hasMore func() bool) *ScrollTrigger {
	return &ScrollTrigger{loadMore: loadMore, hasMore: hasMore}
}

// SetVisible records the sentinel's visibility. On a rising edge it invokes
// loadMore once in a new goroutine; the trigger stays armed-off until that
// call settles, then the next rising edge may fire again. The load's error
// is left to the loadMore callee to record.
func (s *ScrollTrigger) SetVisible(ctx context.Context, visible bool) {
	s.mu.Lock()
	rising := visible && !s.visible
	s.visible = visible
	fire := rising && !s.inFlight && (s.hasMore == nil || s.hasMore())
	if fire {
		s.inFlight = true
	}
	s.mu.Unlock()

	if !fire {
		return
	}
	go func() {
		_ = s.loadMore(ctx)
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()
}

// InFlight reports whether a triggered load has not yet settled.
func (s *ScrollTrigger) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

package fetch

import (
	"fmt"
	"sync"
	"time"

	"github.com/Sargam-11/photocluster"
)

// Debouncer suppresses repeated error notifications so a retry storm does
// not flood the user with identical alerts. Errors are keyed by their
// user-facing message and status code; a key is allowed once per window.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewDebouncer returns a Debouncer with the given suppression window. A
// non-positive window disables suppression.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether err should be shown to the user. Nil errors are
// never shown. The first occurrence of a (message, code) pair passes;
// repeats inside the window are suppressed.
func (d *Debouncer) Allow(err error) bool {
	if err == nil {
		return false
	}
	if d.window <= 0 {
		return true
	}

	key := fmt.Sprintf("%s|%d", photocluster.UserMessage(err), photocluster.StatusCodeOf(err))

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[key] = now
	d.prune(now)
	return true
}

// prune drops entries older than the window so the map cannot grow without
// bound across long sessions. Called with d.mu held.
func (d *Debouncer) prune(now time.Time) {
	if len(d.seen) < 64 {
		return
	}
	for key, last := range d.seen {
		if now.Sub(last) >= d.window {
			delete(d.seen, key)
		}
	}
}

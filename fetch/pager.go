package fetch

import (
	"context"
	"fmt"
	"sync"
)

// Page is one page of a listing endpoint.
type Page[T any] struct {
	Items   []T
	Total   int
	HasNext bool
}

// PageFunc fetches one page, numbered from 1.
type PageFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// Pager accumulates pages into a single ordered, duplicate-free item list.
// Items are considered duplicates when keyFn returns the same value; existing
// items keep their position and incoming duplicates are dropped.
type Pager[T any] struct {
	fetch PageFunc[T]
	keyFn func(T) string

	mu      sync.Mutex
	items   []T
	seen    map[string]struct{}
	page    int
	total   int
	hasNext bool
	loading bool
	err     error
}

// NewPager wraps fetch. keyFn extracts the identity used for duplicate
// filtering; when nil the item's formatted value is used.
func NewPager[T any](fetch PageFunc[T], keyFn func(T) string) *Pager[T] {
	if keyFn == nil {
		keyFn = func(v T) string { return fmt.Sprint(v) }
	}
	return &Pager[T]{
		fetch: fetch,
		keyFn: keyFn,
		seen:  make(map[string]struct{}),
	}
}

// LoadPage fetches one page. With appendItems false the accumulated list is
// replaced wholesale; with true novel items are appended in page order. A
// call while another load is in flight is dropped. A fetch error keeps the
// accumulated items and only sets Err, so the caller can retry without
// losing what is already shown.
func (p *Pager[T]) LoadPage(ctx context.Context, page int, appendItems bool) error {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	p.err = nil
	p.mu.Unlock()

	res, err := p.fetch(ctx, page)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if err != nil {
		p.err = err
		return err
	}

	if !appendItems {
		p.items = nil
		p.seen = make(map[string]struct{})
	}
	for _, item := range res.Items {
		key := p.keyFn(item)
		if _, dup := p.seen[key]; dup {
			continue
		}
		p.seen[key] = struct{}{}
		p.items = append(p.items, item)
	}
	p.page = page
	p.total = res.Total
	p.hasNext = res.HasNext
	return nil
}

// LoadMore appends the next page. It is a no-op when there is no next page
// or a load is already in flight; suppressed calls are not queued.
func (p *Pager[T]) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.loading || !p.hasNext {
		p.mu.Unlock()
		return nil
	}
	next := p.page + 1
	p.mu.Unlock()
	return p.LoadPage(ctx, next, true)
}

// Refresh discards the accumulator and reloads from page one.
func (p *Pager[T]) Refresh(ctx context.Context) error {
	return p.LoadPage(ctx, 1, false)
}

// Items returns a copy of the accumulated list.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// Len returns the number of accumulated items.
func (p *Pager[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Total returns the server-reported total across all pages.
func (p *Pager[T]) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// CurrentPage returns the last successfully loaded page, 0 before any load.
func (p *Pager[T]) CurrentPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// HasNext reports whether the server indicated another page.
func (p *Pager[T]) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasNext
}

// Loading reports whether a page fetch is in flight.
func (p *Pager[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Err returns the error of the most recent failed load, cleared by the next
// load attempt.
func (p *Pager[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

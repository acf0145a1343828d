// Package cache provides the expiring cache layer of the photocluster data
// layer: a size-bounded volatile backend, a SQLite-backed durable backend and
// an unbounded session backend, with lazy expiry on read and a periodic
// sweep. Writes to the durable backend that fail fall back to the volatile
// backend silently; cache failures never surface to callers.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Backend selects which store a key lives in. The three backends are
// independent key spaces.
type Backend int

const (
	// Volatile is the in-memory backend bounded by MaxSize; the entry with
	// the oldest creation time is evicted when the ceiling is exceeded.
	Volatile Backend = iota
	// Durable persists entries in SQLite so they survive process restarts.
	Durable
	// Session is an unbounded in-memory backend cleared on Close.
	Session
)

func (b Backend) String() string {
	switch b {
	case Volatile:
		return "volatile"
	case Durable:
		return "durable"
	case Session:
		return "session"
	default:
		return "unknown"
	}
}

// Entry is the stored representation of one cached value.
type Entry struct {
	Key       string
	Data      []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the entry's lifetime has elapsed at now.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Logger is the minimal logging interface the store uses. The photocluster
// loggers satisfy it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Store. The zero value is usable: one-hour default
// TTL, 512-entry volatile ceiling, no durable backend, one-minute sweep.
type Options struct {
	// DefaultTTL applies when SetOptions.TTL is not positive.
	DefaultTTL time.Duration
	// MaxSize bounds the volatile backend entry count.
	MaxSize int
	// Path locates the durable SQLite database. Empty disables the durable
	// backend; durable reads and writes then use the volatile backend.
	Path string
	// KeyPrefix namespaces every stored key.
	KeyPrefix string
	// SweepInterval spaces the periodic expiry sweeps. Negative disables
	// sweeping; lazy expiry on read still applies.
	SweepInterval time.Duration
	Logger        Logger
	Metrics       Metrics
	// Now is the clock used for expiry decisions; tests inject a fake.
	Now func() time.Time
}

// SetOptions carries per-write settings.
type SetOptions struct {
	TTL     time.Duration
	Backend Backend
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	VolatileSize  int
	DurableSize   int
	SessionSize   int
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Expirations   uint64
	WriteFailures uint64
}

// Store is the multi-backend cache. Safe for concurrent use.
type Store struct {
	opts     Options
	volatile *memoryStore
	session  *memoryStore
	durable  *sqliteStore

	group singleflight.Group
	now   func() time.Time

	hits          atomic.Uint64
	misses        atomic.Uint64
	evictions     atomic.Uint64
	expirations   atomic.Uint64
	writeFailures atomic.Uint64

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	closeOnce   sync.Once
	closeErr    error
}

// New creates a Store and starts its sweep goroutine. A durable backend that
// cannot be opened is logged and disabled; the store still works with the
// volatile backend standing in.
func New(opts Options) (*Store, error) {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 512
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "photocluster:"
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		opts: opts,
		now:  opts.Now,
	}
	s.volatile = newMemoryStore(opts.MaxSize, func(key string) {
		s.evictions.Add(1)
		opts.Metrics.RecordCacheEviction(Volatile.String(), "capacity")
	})
	s.session = newMemoryStore(0, nil)

	if opts.Path != "" {
		durable, err := openSQLiteStore(opts.Path)
		if err != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("Durable cache unavailable, falling back to memory", "path", opts.Path, "error", err.Error())
			}
		} else {
			s.durable = durable
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})
	if opts.SweepInterval > 0 {
		go s.sweepLoop(ctx, opts.SweepInterval)
	} else {
		close(s.sweepDone)
	}

	return s, nil
}

// Set stores a value. The value is serialized to JSON unless it is already
// []byte or json.RawMessage. Write failures never surface: a failed durable
// write lands in the volatile backend instead and is logged.
func (s *Store) Set(key string, v any, opts SetOptions) {
	data, err := marshalValue(v)
	if err != nil {
		s.writeFailures.Add(1)
		if s.opts.Logger != nil {
			s.opts.Logger.Warn("Dropping uncacheable value", "key", key, "error", err.Error())
		}
		return
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}
	entry := Entry{
		Key:       s.prefixed(key),
		Data:      data,
		CreatedAt: s.now(),
		TTL:       ttl,
	}

	switch opts.Backend {
	case Durable:
		if s.durable != nil {
			err := s.durable.set(entry)
			if err == nil {
				s.recordSizes()
				return
			}
			s.writeFailures.Add(1)
			if s.opts.Logger != nil {
				s.opts.Logger.Warn("Durable cache write failed, using volatile backend", "key", key, "error", err.Error())
			}
		}
		s.volatile.set(entry)
	case Session:
		s.session.set(entry)
	default:
		s.volatile.set(entry)
	}
	s.recordSizes()
}

// Get returns the raw stored bytes for key. Expired entries are removed on
// access and reported as misses regardless of sweep timing.
func (s *Store) Get(key string, backend Backend) ([]byte, bool) {
	entry, ok := s.lookup(s.prefixed(key), backend)
	if !ok {
		s.misses.Add(1)
		s.opts.Metrics.RecordCacheMiss(backend.String())
		return nil, false
	}

	if entry.Expired(s.now()) {
		s.removeEverywhere(entry.Key, backend)
		s.expirations.Add(1)
		s.misses.Add(1)
		s.opts.Metrics.RecordCacheEviction(backend.String(), "expired")
		s.opts.Metrics.RecordCacheMiss(backend.String())
		return nil, false
	}

	s.hits.Add(1)
	s.opts.Metrics.RecordCacheHit(backend.String())
	return entry.Data, true
}

// GetAs decodes the cached value for key into T. Entries that fail to decode
// are treated as corrupt: purged and reported as a miss.
func GetAs[T any](s *Store, key string, backend Backend) (T, bool) {
	var v T
	data, ok := s.Get(key, backend)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		s.removeEverywhere(s.prefixed(key), backend)
		s.evictions.Add(1)
		s.opts.Metrics.RecordCacheEviction(backend.String(), "corrupt")
		if s.opts.Logger != nil {
			s.opts.Logger.Warn("Purging corrupt cache entry", "key", key, "error", err.Error())
		}
		var zero T
		return zero, false
	}
	return v, true
}

// GetOrFetch returns the cached bytes for key, or runs fetch to produce the
// value, caches it with ttl and returns its serialized form. Concurrent
// misses for the same key share one fetch.
func (s *Store) GetOrFetch(ctx context.Context, key string, backend Backend, ttl time.Duration, fetch func(ctx context.Context) (any, error)) ([]byte, error) {
	if data, ok := s.Get(key, backend); ok {
		return data, nil
	}

	v, err, _ := s.group.Do(backend.String()+"\x00"+key, func() (any, error) {
		// A racing caller may have populated the key while we queued.
		if data, ok := s.Get(key, backend); ok {
			return data, nil
		}
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		data, err := marshalValue(value)
		if err != nil {
			return nil, err
		}
		s.Set(key, data, SetOptions{TTL: ttl, Backend: backend})
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Delete removes key from the given backend.
func (s *Store) Delete(key string, backend Backend) {
	s.removeEverywhere(s.prefixed(key), backend)
	s.recordSizes()
}

// DeletePrefix removes every entry whose key starts with prefix, returning
// the number removed. Durable deletions also cover the volatile fallback.
func (s *Store) DeletePrefix(prefix string, backend Backend) int {
	full := s.prefixed(prefix)
	removed := 0
	switch backend {
	case Durable:
		if s.durable != nil {
			n, err := s.durable.deletePrefix(full)
			if err != nil && s.opts.Logger != nil {
				s.opts.Logger.Warn("Durable cache prefix delete failed", "prefix", prefix, "error", err.Error())
			}
			removed += n
		}
		removed += s.volatile.deletePrefix(full)
	case Session:
		removed += s.session.deletePrefix(full)
	default:
		removed += s.volatile.deletePrefix(full)
	}
	s.recordSizes()
	return removed
}

// Clear empties the given backends, or all of them when none are named.
func (s *Store) Clear(backends ...Backend) {
	if len(backends) == 0 {
		backends = []Backend{Volatile, Durable, Session}
	}
	for _, b := range backends {
		switch b {
		case Durable:
			if s.durable != nil {
				if err := s.durable.clear(); err != nil && s.opts.Logger != nil {
					s.opts.Logger.Warn("Durable cache clear failed", "error", err.Error())
				}
			}
			s.volatile.clear()
		case Session:
			s.session.clear()
		default:
			s.volatile.clear()
		}
	}
	s.recordSizes()
}

// Size returns the entry count of a backend.
func (s *Store) Size(backend Backend) int {
	switch backend {
	case Durable:
		if s.durable != nil {
			return s.durable.size()
		}
		return 0
	case Session:
		return s.session.size()
	default:
		return s.volatile.size()
	}
}

// Stats returns a snapshot of cache activity.
func (s *Store) Stats() Stats {
	return Stats{
		VolatileSize:  s.volatile.size(),
		DurableSize:   s.Size(Durable),
		SessionSize:   s.session.size(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Evictions:     s.evictions.Load(),
		Expirations:   s.expirations.Load(),
		WriteFailures: s.writeFailures.Load(),
	}
}

// Close stops the sweep goroutine, clears every backend and releases the
// durable database. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.sweepCancel()
		<-s.sweepDone

		s.volatile.clear()
		s.session.clear()
		if s.durable != nil {
			s.closeErr = s.durable.close()
		}
	})
	return s.closeErr
}

// sweepLoop periodically removes expired and corrupt entries from all
// backends until the store closes.
func (s *Store) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(s.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce runs one sweep pass. Exposed to tests through Sweep.
func (s *Store) sweepOnce() {
	now := s.now()

	expired := s.volatile.sweep(now)
	expired += s.session.sweep(now)
	if s.durable != nil {
		removed, corrupt, err := s.durable.sweep(now)
		if err != nil && s.opts.Logger != nil {
			s.opts.Logger.Warn("Durable cache sweep failed", "error", err.Error())
		}
		expired += removed
		if corrupt > 0 {
			s.evictions.Add(uint64(corrupt))
			for i := 0; i < corrupt; i++ {
				s.opts.Metrics.RecordCacheEviction(Durable.String(), "corrupt")
			}
		}
	}

	if expired > 0 {
		s.expirations.Add(uint64(expired))
		if s.opts.Logger != nil {
			s.opts.Logger.Debug("Cache sweep removed expired entries", "count", expired)
		}
	}
	s.recordSizes()
}

// Sweep triggers one immediate sweep pass.
func (s *Store) Sweep() {
	s.sweepOnce()
}

// lookup reads from the backend's primary store, falling through to the
// volatile backend for durable reads so entries that landed there via write
// fallback stay reachable.
func (s *Store) lookup(prefixedKey string, backend Backend) (Entry, bool) {
	switch backend {
	case Durable:
		if s.durable != nil {
			if entry, ok := s.durable.get(prefixedKey); ok {
				return entry, true
			}
		}
		return s.volatile.get(prefixedKey)
	case Session:
		return s.session.get(prefixedKey)
	default:
		return s.volatile.get(prefixedKey)
	}
}

func (s *Store) removeEverywhere(prefixedKey string, backend Backend) {
	switch backend {
	case Durable:
		if s.durable != nil {
			if err := s.durable.delete(prefixedKey); err != nil && s.opts.Logger != nil {
				s.opts.Logger.Warn("Durable cache delete failed", "key", prefixedKey, "error", err.Error())
			}
		}
		s.volatile.delete(prefixedKey)
	case Session:
		s.session.delete(prefixedKey)
	default:
		s.volatile.delete(prefixedKey)
	}
}

func (s *Store) prefixed(key string) string {
	return s.opts.KeyPrefix + key
}

func (s *Store) recordSizes() {
	s.opts.Metrics.RecordCacheSize(Volatile.String(), s.volatile.size())
	s.opts.Metrics.RecordCacheSize(Session.String(), s.session.size())
	if s.durable != nil {
		s.opts.Metrics.RecordCacheSize(Durable.String(), s.durable.size())
	}
}

func marshalValue(v any) ([]byte, error) {
	switch data := v.(type) {
	case []byte:
		return data, nil
	case json.RawMessage:
		return data, nil
	default:
		return json.Marshal(v)
	}
}

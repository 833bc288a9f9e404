// Package cache provides a keyed result store that de-duplicates concurrent
// fetches and keeps successful results for a bounded time window.
//
// An entry is Pending while its fetch is in flight and Ready once the fetch
// succeeds. Every caller that asks for a Pending key waits on the same
// underlying fetch and receives its outcome. Failed fetches are never stored:
// the Pending entry is removed so the next request starts over. Expired
// entries are dropped lazily when they are next accessed, or in bulk by Purge.
// A Store is safe for concurrent use.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

var log = logging.Logger("cache")

// Status is the lifecycle state of a cache entry.
type Status int

const (
	Pending Status = iota + 1 // Fetch in flight, result not yet known.
	Ready                     // Fetch succeeded; Value and ExpiresAt are set.
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Entry is a point-in-time view of a cache entry.
type Entry[V any] struct {
	Key       string
	Status    Status
	Value     V         // Set only when Status is Ready.
	FetchedAt time.Time // Completion time of the fetch that produced Value.
	ExpiresAt time.Time // Entry is absent once now >= ExpiresAt.
}

// FetchFunc produces the value for a key on a cache miss.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Store maps cache keys to in-flight or completed fetches.
type Store[V any] struct {
	clock clockwork.Clock
	ctx   context.Context
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry[V]
	seq     uint64
}

// entry holds writable entry state. All fields are guarded by Store.mu.
type entry[V any] struct {
	id        uint64
	status    Status
	value     V
	fetchedAt time.Time
	expiresAt time.Time
	done      bool
	err       error
}

// New creates an empty Store.
func New[V any](options ...Option) *Store[V] {
	opts := getOpts(options)
	return &Store[V]{
		clock:   opts.clock,
		ctx:     opts.ctx,
		entries: make(map[string]*entry[V]),
	}
}

// Key composes a cache key from a resource name and its parameters,
// e.g. Key("dashboard", 24) == "dashboard:24".
func Key(resource string, params ...any) string {
	if len(params) == 0 {
		return resource
	}
	var b strings.Builder
	b.WriteString(resource)
	for _, p := range params {
		b.WriteByte(':')
		switch v := p.(type) {
		case string:
			b.WriteString(v)
		case int:
			b.WriteString(strconv.Itoa(v))
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// Get returns the live entry for key. Expired entries are removed and
// reported as absent.
func (s *Store[V]) Get(key string) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return Entry[V]{}, false
	}
	return e.view(key), true
}

// GetOrStart returns the Ready entry for key, or waits for the fetch that
// produces it. If no live entry exists, a Pending entry is registered and
// fetch is invoked exactly once; concurrent callers for the same key share
// that fetch. On success the entry becomes Ready and expires ttl after the
// fetch completes. On failure the entry is removed and the error is returned
// to every waiting caller.
//
// The fetch keeps the values of the starting caller's context but not its
// cancellation; it is cancelled only when the store's context ends. A caller
// whose own context ends stops waiting and gets ctx.Err() while the fetch
// carries on for the others.
func (s *Store[V]) GetOrStart(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[V]) (Entry[V], error) {
	s.mu.Lock()
	e, ok := s.live(key)
	if ok && e.status == Ready {
		view := e.view(key)
		s.mu.Unlock()
		return view, nil
	}
	if !ok {
		s.seq++
		e = &entry[V]{id: s.seq, status: Pending}
		s.entries[key] = e
		log.Debugw("Cache miss, starting fetch", "key", key, "call", e.id)
	}
	s.mu.Unlock()

	// Each Pending entry has its own call id, so a caller can only ever
	// join the fetch that belongs to the entry it observed.
	callKey := key + "#" + strconv.FormatUint(e.id, 10)
	ch := s.group.DoChan(callKey, func() (any, error) {
		fctx, cancel := s.detach(ctx)
		defer cancel()
		return s.run(fctx, key, ttl, e, fetch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Entry[V]{}, res.Err
		}
		return res.Val.(Entry[V]), nil
	case <-ctx.Done():
		return Entry[V]{}, ctx.Err()
	}
}

// detach returns a context carrying ctx's values that ends with the store.
func (s *Store[V]) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// run performs the fetch for a Pending entry and records its outcome.
func (s *Store[V]) run(ctx context.Context, key string, ttl time.Duration, e *entry[V], fetch FetchFunc[V]) (Entry[V], error) {
	s.mu.Lock()
	if e.done {
		// Joined after the original call finished and left the group.
		defer s.mu.Unlock()
		if e.err != nil {
			return Entry[V]{}, e.err
		}
		return e.view(key), nil
	}
	s.mu.Unlock()

	value, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	e.done = true
	current := s.entries[key] == e
	if err != nil {
		e.err = err
		if current {
			delete(s.entries, key)
		}
		return Entry[V]{}, err
	}

	now := s.clock.Now()
	e.status = Ready
	e.value = value
	e.fetchedAt = now
	e.expiresAt = now.Add(ttl)
	if !current {
		log.Debugw("Fetch completed for invalidated entry, result not cached", "key", key, "call", e.id)
	}
	return e.view(key), nil
}

// Invalidate removes the entries for the given keys, or every entry when no
// key is given. A fetch in flight for a removed entry still delivers its
// result to the callers already waiting on it, but the result is not cached.
func (s *Store[V]) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		n := len(s.entries)
		clear(s.entries)
		log.Debugw("Cache cleared", "entries", n)
		return
	}
	for _, key := range keys {
		delete(s.entries, key)
	}
}

// Purge removes all expired entries and returns how many were removed.
func (s *Store[V]) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var n int
	for key, e := range s.entries {
		if e.status == Ready && !now.Before(e.expiresAt) {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of entries, including Pending and not yet purged
// expired entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// live returns the entry for key if present and not expired, removing it if
// expired. Caller must hold s.mu.
func (s *Store[V]) live(key string) (*entry[V], bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.status == Ready && !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

func (e *entry[V]) view(key string) Entry[V] {
	return Entry[V]{
		Key:       key,
		Status:    e.status,
		Value:     e.value,
		FetchedAt: e.fetchedAt,
		ExpiresAt: e.expiresAt,
	}
}

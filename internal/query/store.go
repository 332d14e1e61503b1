package query

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store is the process-wide query cache, passed explicitly to every binding
// rather than hidden behind a singleton. Entries carry a staleness window;
// invalidation marks them stale and triggers a background refetch for every
// subscribed consumer.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	watchers map[string]map[int64]func()
	nextID   int64

	// group collapses concurrent identical reads to one network call.
	group singleflight.Group

	now func() time.Time

	sweepStop chan struct{}
	sweepDone chan struct{}
}

type entry struct {
	data      any
	expiresAt time.Time
	stale     bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[string]*entry),
		watchers: make(map[string]map[int64]func()),
		now:      time.Now,
	}
}

// lookup returns the cached value when present and fresh.
func (s *Store) lookup(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok || e.stale || s.now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// peek returns the cached value even when stale, for display while a
// background refetch runs.
func (s *Store) peek(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return nil, false
	}
	return e.data, true
}

func (s *Store) set(key Key, data any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key.String()] = &entry{
		data:      data,
		expiresAt: s.now().Add(ttl),
	}
}

// Invalidate marks every entry derived from any of the given key prefixes as
// stale and schedules a refetch for each subscribed consumer under those
// prefixes. Cached data stays readable via peek until replaced.
func (s *Store) Invalidate(prefixes ...Key) {
	s.mu.Lock()
	var refetches []func()
	for stored, e := range s.entries {
		if matchesAny(NewKey(splitKey(stored)...), prefixes) {
			e.stale = true
		}
	}
	for stored, subs := range s.watchers {
		if !matchesAny(NewKey(splitKey(stored)...), prefixes) {
			continue
		}
		for _, refetch := range subs {
			refetches = append(refetches, refetch)
		}
	}
	s.mu.Unlock()

	for _, refetch := range refetches {
		go refetch()
	}
}

// Reset drops every cached entry. Used on sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Size returns the current number of cached entries.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// register subscribes a refetch callback under a key and returns its handle.
func (s *Store) register(key Key, refetch func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	stored := key.String()
	if s.watchers[stored] == nil {
		s.watchers[stored] = make(map[int64]func())
	}
	s.watchers[stored][id] = refetch
	return id
}

func (s *Store) unregister(key Key, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := key.String()
	delete(s.watchers[stored], id)
	if len(s.watchers[stored]) == 0 {
		delete(s.watchers, stored)
	}
}

// StartSweeper begins periodic removal of expired entries.
func (s *Store) StartSweeper(interval time.Duration) {
	s.mu.Lock()
	if s.sweepStop != nil {
		s.mu.Unlock()
		return
	}
	s.sweepStop = make(chan struct{})
	s.sweepDone = make(chan struct{})
	stop, done := s.sweepStop, s.sweepDone
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweepExpired()
			case <-stop:
				return
			}
		}
	}()
}

// Close stops the sweeper if it is running.
func (s *Store) Close() {
	s.mu.Lock()
	stop, done := s.sweepStop, s.sweepDone
	s.sweepStop, s.sweepDone = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// sweepExpired removes entries past their staleness window and returns the
// count of removed items.
func (s *Store) sweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for stored, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, stored)
			removed++
		}
	}
	return removed
}

func matchesAny(key Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if key.HasPrefix(p) {
			return true
		}
	}
	return false
}

func splitKey(stored string) []string {
	return strings.Split(stored, "/")
}

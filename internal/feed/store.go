package feed

import (
	"sort"
	"sync"
	"time"

	"pinit/internal/domain"
)

// subscriberBuffer is the number of updates a slow subscriber may lag behind before updates are dropped.
const subscriberBuffer = 8

// Store keeps one Feed per viewer. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	feeds  map[string]Feed
	subs   map[string]map[int]chan domain.FeedUpdate
	nextID int
	now    func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		feeds: make(map[string]Feed),
		subs:  make(map[string]map[int]chan domain.FeedUpdate),
		now:   time.Now,
	}
}

// Begin starts a new refresh generation for viewer and returns it. Results of earlier
// generations are ignored from now on.
func (s *Store) Begin(viewer string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[viewer]
	if !ok {
		f = Feed{Viewer: viewer, AccessedAt: s.now()}
	}
	gen := f.Generation + 1
	next, _ := Reduce(f, RefreshStarted{Generation: gen, At: s.now()})
	s.feeds[viewer] = next
	return gen
}

// Dispatch applies msg to viewer's feed and reports whether it changed.
// Messages for a viewer without a feed are dropped.
func (s *Store) Dispatch(viewer string, msg Message) bool {
	_, changed := s.Apply(viewer, msg)
	return changed
}

// Apply is Dispatch that also returns the feed msg replaced. Concurrent callers each see a
// different predecessor.
func (s *Store) Apply(viewer string, msg Message) (Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[viewer]
	if !ok {
		return Feed{}, false
	}
	next, changed := Reduce(f, msg)
	if !changed {
		return f, false
	}
	s.feeds[viewer] = next
	s.notify(domain.FeedUpdate{Viewer: viewer, Generation: next.Generation})
	return f, true
}

// Touch marks viewer's feed as used at at.
func (s *Store) Touch(viewer string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.feeds[viewer]; ok && at.After(f.AccessedAt) {
		f.AccessedAt = at
		s.feeds[viewer] = f
	}
}

// Get returns a copy of viewer's feed.
func (s *Store) Get(viewer string) (Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[viewer]
	return f, ok
}

// Viewers returns every viewer with a feed, sorted.
func (s *Store) Viewers() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.feeds))
	for v := range s.feeds {
		out = append(out, v)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Evict drops feeds last accessed before cutoff and returns their viewers, sorted.
// Viewers with an open subscription are kept.
func (s *Store) Evict(cutoff time.Time) []string {
	s.mu.Lock()
	var out []string
	for v, f := range s.feeds {
		if len(s.subs[v]) > 0 || !f.AccessedAt.Before(cutoff) {
			continue
		}
		delete(s.feeds, v)
		out = append(out, v)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Subscribe returns a channel of updates for viewer and a function that ends the subscription.
// Updates are dropped for a subscriber whose buffer is full.
func (s *Store) Subscribe(viewer string) (<-chan domain.FeedUpdate, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan domain.FeedUpdate, subscriberBuffer)
	id := s.nextID
	s.nextID++
	if s.subs[viewer] == nil {
		s.subs[viewer] = make(map[int]chan domain.FeedUpdate)
	}
	s.subs[viewer][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs[viewer], id)
			if len(s.subs[viewer]) == 0 {
				delete(s.subs, viewer)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// notify must be called with s.mu held.
func (s *Store) notify(u domain.FeedUpdate) {
	for _, ch := range s.subs[u.Viewer] {
		select {
		case ch <- u:
		default:
		}
	}
}

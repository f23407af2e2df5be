package feed

import (
	"errors"
	"sync"
	"testing"
	"time"

	"pinit/internal/domain"
	"pinit/internal/matching"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestReduce(t *testing.T) {
	events := []*domain.Event{{ID: "e1"}}
	reg := matching.NewRegistry()
	reg.Register("e1")

	tests := []struct {
		name        string
		start       Feed
		msg         Message
		wantChanged bool
		check       func(t *testing.T, f Feed)
	}{
		{
			name:        "refresh started advances generation",
			start:       Feed{Generation: 1},
			msg:         RefreshStarted{Generation: 2, At: t0},
			wantChanged: true,
			check: func(t *testing.T, f Feed) {
				assert.Equal(t, uint64(2), f.Generation)
			},
		},
		{
			name:        "older refresh start is ignored",
			start:       Feed{Generation: 3},
			msg:         RefreshStarted{Generation: 3},
			wantChanged: false,
		},
		{
			name:        "events of current generation replace list",
			start:       Feed{Generation: 2, Events: []*domain.Event{{ID: "old"}}, LastError: "boom", ErrorGeneration: 1},
			msg:         EventsFetched{Generation: 2, Events: events, At: t0},
			wantChanged: true,
			check: func(t *testing.T, f Feed) {
				assert.Equal(t, events, f.Events)
				assert.True(t, f.EventsLoaded)
				assert.Empty(t, f.LastError)
				assert.Equal(t, t0, f.UpdatedAt)
			},
		},
		{
			name:        "stale events are dropped",
			start:       Feed{Generation: 3, Events: []*domain.Event{{ID: "current"}}},
			msg:         EventsFetched{Generation: 2, Events: events},
			wantChanged: false,
			check: func(t *testing.T, f Feed) {
				assert.Equal(t, "current", f.Events[0].ID)
			},
		},
		{
			name:        "nil events become empty list",
			start:       Feed{Generation: 1},
			msg:         EventsFetched{Generation: 1},
			wantChanged: true,
			check: func(t *testing.T, f Feed) {
				assert.NotNil(t, f.Events)
				assert.Empty(t, f.Events)
			},
		},
		{
			name:        "matches scanned sets registry",
			start:       Feed{Generation: 1},
			msg:         MatchesScanned{Generation: 1, Registry: reg},
			wantChanged: true,
			check: func(t *testing.T, f Feed) {
				assert.True(t, f.MatchesLoaded)
				assert.True(t, f.Matches.IsMatch("e1"))
			},
		},
		{
			name:        "stale scan dropped",
			start:       Feed{Generation: 4},
			msg:         MatchesScanned{Generation: 3, Registry: reg},
			wantChanged: false,
		},
		{
			name:        "failure keeps last known events",
			start:       Feed{Generation: 2, Events: events, EventsLoaded: true},
			msg:         RefreshFailed{Generation: 2, Err: errors.New("network down")},
			wantChanged: true,
			check: func(t *testing.T, f Feed) {
				assert.Equal(t, events, f.Events)
				assert.Equal(t, "network down", f.LastError)
			},
		},
		{
			name:        "error of the same generation survives event fetch",
			start:       Feed{Generation: 2, LastError: "invitations failed", ErrorGeneration: 2},
			msg:         EventsFetched{Generation: 2, Events: events},
			wantChanged: true,
			check: func(t *testing.T, f Feed) {
				assert.Equal(t, "invitations failed", f.LastError)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Reduce(tt.start, tt.msg)
			assert.Equal(t, tt.wantChanged, changed)
			if !changed {
				assert.Equal(t, tt.start, got)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestStore_SupersededRefreshIsDropped(t *testing.T) {
	s := NewStore()
	first := s.Begin("alice")
	second := s.Begin("alice")
	require.Greater(t, second, first)

	applied := s.Dispatch("alice", EventsFetched{Generation: second, Events: []*domain.Event{{ID: "new"}}})
	require.True(t, applied)

	// the first refresh resolves late
	applied = s.Dispatch("alice", EventsFetched{Generation: first, Events: []*domain.Event{{ID: "old"}}})
	assert.False(t, applied)

	f, ok := s.Get("alice")
	require.True(t, ok)
	require.Len(t, f.Events, 1)
	assert.Equal(t, "new", f.Events[0].ID)
}

func TestStore_UnknownViewer(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Dispatch("ghost", EventsFetched{Generation: 1}))
	_, ok := s.Get("ghost")
	assert.False(t, ok)
}

func TestStore_Viewers(t *testing.T) {
	s := NewStore()
	s.Begin("carol")
	s.Begin("alice")
	assert.Equal(t, []string{"alice", "carol"}, s.Viewers())
}

func TestStore_Evict(t *testing.T) {
	s := NewStore()
	s.now = func() time.Time { return t0 }
	for _, v := range []string{"alice", "bob", "carol", "dave"} {
		s.Begin(v)
	}
	s.Touch("bob", t0.Add(time.Hour))
	s.Touch("carol", t0.Add(-time.Hour)) // older than the current stamp, ignored
	s.Touch("ghost", t0.Add(time.Hour))
	_, cancel := s.Subscribe("dave")
	defer cancel()

	evicted := s.Evict(t0.Add(30 * time.Minute))

	assert.Equal(t, []string{"alice", "carol"}, evicted)
	assert.Equal(t, []string{"bob", "dave"}, s.Viewers())
	f, ok := s.Get("bob")
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), f.AccessedAt)

	cancel()
	assert.Equal(t, []string{"dave"}, s.Evict(t0.Add(30*time.Minute)))
	assert.Equal(t, []string{"bob"}, s.Evict(t0.Add(2*time.Hour)))
}

func TestStore_ApplyReturnsReplacedFeed(t *testing.T) {
	s := NewStore()
	first := matching.NewRegistry()
	first.Register("e1")
	second := matching.NewRegistry()
	second.Register("e2")

	gen := s.Begin("alice")
	before, ok := s.Apply("alice", MatchesScanned{Generation: gen, Registry: first})
	require.True(t, ok)
	assert.False(t, before.MatchesLoaded)

	before, ok = s.Apply("alice", MatchesScanned{Generation: gen, Registry: second})
	require.True(t, ok)
	assert.True(t, before.MatchesLoaded)
	assert.Same(t, first, before.Matches)

	_, ok = s.Apply("alice", MatchesScanned{Generation: gen - 1, Registry: first})
	assert.False(t, ok)
	_, ok = s.Apply("ghost", MatchesScanned{Generation: 1, Registry: first})
	assert.False(t, ok)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	updates, cancel := s.Subscribe("alice")
	other, cancelOther := s.Subscribe("bob")
	defer cancelOther()

	gen := s.Begin("alice")
	require.True(t, s.Dispatch("alice", EventsFetched{Generation: gen}))

	select {
	case u := <-updates:
		assert.Equal(t, domain.FeedUpdate{Viewer: "alice", Generation: gen}, u)
	case <-time.After(time.Second):
		t.Fatal("expected update")
	}

	select {
	case u := <-other:
		t.Fatalf("unexpected update for bob: %+v", u)
	default:
	}

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen := s.Begin("alice")
			s.Dispatch("alice", EventsFetched{Generation: gen, Events: []*domain.Event{{ID: "e"}}})
		}()
	}
	wg.Wait()
	f, ok := s.Get("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(20), f.Generation)
}

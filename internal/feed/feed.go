// Package feed holds each viewer's last fetched map data. State changes only through
// messages applied by Reduce, and every message carries the refresh generation it belongs
// to so that a late response from a superseded refresh is dropped.
package feed

import (
	"time"

	"pinit/internal/domain"
	"pinit/internal/matching"
)

// Feed is the map state of one viewer.
type Feed struct {
	Viewer        string
	Generation    uint64
	Events        []*domain.Event
	Matches       *matching.Registry
	EventsLoaded  bool
	MatchesLoaded bool
	LastError     string
	// ErrorGeneration is the generation LastError was recorded in.
	ErrorGeneration uint64
	UpdatedAt       time.Time
	// AccessedAt is the last time the viewer asked for the feed. Idle feeds are evicted.
	AccessedAt time.Time
}

// Loaded reports whether at least one event fetch has completed.
func (f Feed) Loaded() bool {
	return f.EventsLoaded
}

// Message is a state transition for a Feed.
type Message interface {
	generation() uint64
}

// RefreshStarted opens a new generation.
type RefreshStarted struct {
	Generation uint64
	At         time.Time
}

// EventsFetched replaces the event list.
type EventsFetched struct {
	Generation uint64
	Events     []*domain.Event
	At         time.Time
}

// MatchesScanned replaces the potential match registry.
type MatchesScanned struct {
	Generation uint64
	Registry   *matching.Registry
	At         time.Time
}

// RefreshFailed records a fetch error. The last known events are kept.
type RefreshFailed struct {
	Generation uint64
	Err        error
	At         time.Time
}

func (m RefreshStarted) generation() uint64 { return m.Generation }
func (m EventsFetched) generation() uint64  { return m.Generation }
func (m MatchesScanned) generation() uint64 { return m.Generation }
func (m RefreshFailed) generation() uint64  { return m.Generation }

// Reduce applies msg to f and returns the new state and whether anything changed.
// RefreshStarted must move the generation forward; every other message must carry the
// current generation or it is ignored.
func Reduce(f Feed, msg Message) (Feed, bool) {
	if start, ok := msg.(RefreshStarted); ok {
		if start.Generation <= f.Generation {
			return f, false
		}
		f.Generation = start.Generation
		return f, true
	}
	if msg.generation() != f.Generation {
		return f, false
	}

	switch m := msg.(type) {
	case EventsFetched:
		events := m.Events
		if events == nil {
			events = []*domain.Event{}
		}
		f.Events = events
		f.EventsLoaded = true
		if f.ErrorGeneration != f.Generation {
			f.LastError = ""
		}
		f.UpdatedAt = m.At
	case MatchesScanned:
		f.Matches = m.Registry
		f.MatchesLoaded = true
		f.UpdatedAt = m.At
	case RefreshFailed:
		if m.Err != nil {
			f.LastError = m.Err.Error()
			f.ErrorGeneration = f.Generation
		}
		f.UpdatedAt = m.At
	default:
		return f, false
	}
	return f, true
}

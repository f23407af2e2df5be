// Package matching decides which events a viewer may see on the map and tracks the
// events suggested to them by auto-matching.
package matching

import "pinit/internal/domain"

// IsAutoMatched reports whether e counts as auto-matched, either from the event payload
// or from the viewer's match registry.
func IsAutoMatched(e *domain.Event, matches MatchLookup) bool {
	if e.IsAutoMatched {
		return true
	}
	return matches != nil && matches.IsMatch(e.ID)
}

// Visible applies the display rules in order, first match wins:
// the host always sees their event; an auto-matched event is shown only to its invitees;
// otherwise a public event is shown to everyone; anything else is hidden.
func Visible(e *domain.Event, viewer string, matches MatchLookup) bool {
	if e == nil {
		return false
	}
	if e.Host == viewer {
		return true
	}
	if IsAutoMatched(e, matches) {
		return e.IsInvited(viewer)
	}
	return e.IsPublic
}

// IsPotentialMatch reports whether e is auto-matched and viewer is one of its invitees.
func IsPotentialMatch(e *domain.Event, viewer string, matches MatchLookup) bool {
	return IsAutoMatched(e, matches) && e.IsInvited(viewer)
}

// Filter returns the events of events that viewer may see under settings, in input order.
// matches may be nil. Filtering an already filtered list with the same arguments returns it unchanged.
func Filter(events []*domain.Event, viewer string, settings domain.FilterSettings, matches MatchLookup) []*domain.Event {
	out := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		if !Visible(e, viewer, matches) {
			continue
		}
		if settings.ShowOnlyMatched && !IsPotentialMatch(e, viewer, matches) {
			continue
		}
		if !settings.TypeEnabled(e.EventType) {
			continue
		}
		out = append(out, e)
	}
	return out
}

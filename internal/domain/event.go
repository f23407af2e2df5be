package domain

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrInvalidInput is returned for malformed requests.
var ErrInvalidInput = errors.New("invalid input")

// EventType classifies an event on the map. The empty value means the type is unknown.
type EventType string

const (
	EventTypeStudy            EventType = "study"
	EventTypeParty            EventType = "party"
	EventTypeBusiness         EventType = "business"
	EventTypeCultural         EventType = "cultural"
	EventTypeAcademic         EventType = "academic"
	EventTypeNetworking       EventType = "networking"
	EventTypeSocial           EventType = "social"
	EventTypeLanguageExchange EventType = "language_exchange"
	EventTypeOther            EventType = "other"
)

// EventTypes lists every known event type in display order.
var EventTypes = []EventType{
	EventTypeStudy,
	EventTypeParty,
	EventTypeBusiness,
	EventTypeCultural,
	EventTypeAcademic,
	EventTypeNetworking,
	EventTypeSocial,
	EventTypeLanguageExchange,
	EventTypeOther,
}

// ParseEventType returns the EventType for s, or ErrInvalidInput when s is not a known type.
func ParseEventType(s string) (EventType, error) {
	for _, t := range EventTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrInvalidInput
}

// Coordinate is a WGS84 position.
// swagger:model Coordinate
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is finite and within lat/lon bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) || math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Event is a campus event as fetched for one viewer. A fetched list is never patched in place;
// the next fetch replaces it.
// swagger:model Event
type Event struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Host            string      `json:"host"`
	IsPublic        bool        `json:"is_public"`
	InvitedFriends  []string    `json:"invited_friends"`
	EventType       EventType   `json:"event_type,omitempty"`
	Coordinate      *Coordinate `json:"coordinate,omitempty"`
	IsAutoMatched   bool        `json:"is_auto_matched"`
	IsUserAttending bool        `json:"is_user_attending"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
}

// IsInvited reports whether username is in the event's invited friends.
func (e *Event) IsInvited(username string) bool {
	for _, f := range e.InvitedFriends {
		if f == username {
			return true
		}
	}
	return false
}

// HasValidCoordinate reports whether the event can be placed on the map.
func (e *Event) HasValidCoordinate() bool {
	return e.Coordinate != nil && e.Coordinate.Valid()
}

// EventRepository defines read access to events for the map feed.
type EventRepository interface {
	// ListActive returns events that have not ended at now, with IsUserAttending computed for viewer.
	ListActive(ctx context.Context, viewer string, now time.Time) ([]*Event, error)
}

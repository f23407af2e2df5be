package domain

import (
	"context"
	"time"
)

// FilterSettings are the viewer's map filter toggles.
type FilterSettings struct {
	ShowOnlyMatched bool
	// EnabledTypes switches event types on or off. Types absent from the map are enabled.
	EnabledTypes map[EventType]bool
}

// TypeEnabled reports whether events of type t pass the type filter. Unknown types always pass.
func (s FilterSettings) TypeEnabled(t EventType) bool {
	if t == "" || s.EnabledTypes == nil {
		return true
	}
	enabled, ok := s.EnabledTypes[t]
	if !ok {
		return true
	}
	return enabled
}

// Bounds is a lat/lon bounding box. It does not handle boxes crossing the antimeridian.
type Bounds struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// Contains reports whether c lies inside the box, edges included.
func (b Bounds) Contains(c Coordinate) bool {
	return c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat &&
		c.Longitude >= b.MinLng && c.Longitude <= b.MaxLng
}

// Cluster groups events whose markers would overlap at the current zoom.
// A cluster of one renders as a normal marker, larger clusters as a count badge.
// swagger:model Cluster
type Cluster struct {
	ID         string     `json:"id"`
	Coordinate Coordinate `json:"coordinate"`
	Count      int        `json:"count"`
	Events     []*Event   `json:"events"`
}

// IsSingle reports whether the cluster holds exactly one event.
func (c *Cluster) IsSingle() bool {
	return len(c.Events) == 1
}

// MapQuery describes one map render request.
type MapQuery struct {
	Zoom     float64
	Width    int
	Height   int
	Settings FilterSettings
	// Bounds restricts the result to the visible region when set.
	Bounds *Bounds
}

// MapView is the clustered, filtered map feed for one viewer.
// swagger:model MapView
type MapView struct {
	Generation          uint64     `json:"generation"`
	Clusters            []*Cluster `json:"clusters"`
	VisibleCount        int        `json:"visible_count"`
	PotentialMatchCount int        `json:"potential_match_count"`
	LastError           string     `json:"last_error,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// FeedUpdate announces that a viewer's feed changed.
type FeedUpdate struct {
	Viewer     string `json:"viewer"`
	Generation uint64 `json:"generation"`
}

// MapService builds map feeds for viewers.
type MapService interface {
	// Refresh fetches the viewer's events and invitations and returns the generation it started.
	Refresh(ctx context.Context, viewer string) (uint64, error)
	GetMap(ctx context.Context, viewer string, q MapQuery) (*MapView, error)
	ListVisible(ctx context.Context, viewer string, settings FilterSettings, params PaginationParams) ([]*Event, int, error)
	ListPotentialMatches(ctx context.Context, viewer string) ([]*Event, error)
	// RefreshAll refreshes every viewer with a feed.
	RefreshAll(ctx context.Context) error
	Subscribe(viewer string) (<-chan FeedUpdate, func())
}

// Package cluster groups nearby map markers so they do not overlap at the current zoom.
package cluster

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"pinit/internal/domain"
)

const (
	tileSize = 256.0
	// Web Mercator is undefined at the poles; latitudes are clamped to the square world.
	maxLatitude = 85.05112878
)

// Options tune the pixel threshold used to merge markers.
type Options struct {
	// RadiusPx is the merge distance in screen pixels on the reference viewport.
	RadiusPx float64
	// ReferenceViewportPx is the shorter viewport side RadiusPx was tuned for.
	ReferenceViewportPx float64
	// FullRadiusZoom is the highest zoom that still uses the full radius.
	FullRadiusZoom float64
	// MaxZoom disables clustering at and above this zoom. The radius shrinks linearly
	// between FullRadiusZoom and MaxZoom.
	MaxZoom float64
}

// DefaultOptions returns the options used by the map feed.
func DefaultOptions() Options {
	return Options{
		RadiusPx:            50,
		ReferenceViewportPx: 1080,
		FullRadiusZoom:      16,
		MaxZoom:             21,
	}
}

// Clusterer groups events into clusters. It holds no per-call state and is safe for concurrent use.
type Clusterer struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Clusterer. Zero option fields take their DefaultOptions value.
func New(opts Options, logger *slog.Logger) *Clusterer {
	def := DefaultOptions()
	if opts.RadiusPx <= 0 {
		opts.RadiusPx = def.RadiusPx
	}
	if opts.ReferenceViewportPx <= 0 {
		opts.ReferenceViewportPx = def.ReferenceViewportPx
	}
	if opts.FullRadiusZoom <= 0 {
		opts.FullRadiusZoom = def.FullRadiusZoom
	}
	if opts.MaxZoom <= opts.FullRadiusZoom {
		opts.MaxZoom = opts.FullRadiusZoom + 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clusterer{opts: opts, logger: logger}
}

// Project converts c to Web Mercator world pixel coordinates at zoom.
func Project(c domain.Coordinate, zoom float64) (x, y float64) {
	lng := math.Max(-180, math.Min(180, c.Longitude))
	lat := math.Max(-maxLatitude, math.Min(maxLatitude, c.Latitude))
	latRad := lat * math.Pi / 180

	scale := tileSize * math.Exp2(zoom)
	x = (lng + 180) / 360 * scale
	y = (0.5 - math.Log(math.Tan(math.Pi/4+latRad/2))/(2*math.Pi)) * scale
	return x, y
}

// Radius returns the merge distance in world pixels for the given zoom and viewport size.
// A non-positive width or height uses the reference viewport.
func (c *Clusterer) Radius(zoom float64, width, height int) float64 {
	if zoom >= c.opts.MaxZoom {
		return 0
	}
	factor := 1.0
	if zoom > c.opts.FullRadiusZoom {
		factor = (c.opts.MaxZoom - zoom) / (c.opts.MaxZoom - c.opts.FullRadiusZoom)
	}
	scale := 1.0
	if width > 0 && height > 0 {
		scale = float64(min(width, height)) / c.opts.ReferenceViewportPx
		scale = math.Max(0.5, math.Min(2, scale))
	}
	return c.opts.RadiusPx * scale * factor
}

type point struct {
	event *domain.Event
	x, y  float64
}

type cell struct {
	x, y int64
}

// Cluster groups events whose projected positions lie within the merge radius of each other,
// transitively. Events without a valid coordinate are skipped and logged. The result does not
// depend on the order of events: members are sorted by event ID and clusters by their first member.
func (c *Clusterer) Cluster(events []*domain.Event, zoom float64, width, height int) []*domain.Cluster {
	points := c.collect(events, zoom)
	if len(points) == 0 {
		return []*domain.Cluster{}
	}

	radius := c.Radius(zoom, width, height)
	parent := make([]int, len(points))
	for i := range parent {
		parent[i] = i
	}

	if radius > 0 {
		r2 := radius * radius
		grid := make(map[cell][]int)
		for i, p := range points {
			home := cell{x: int64(math.Floor(p.x / radius)), y: int64(math.Floor(p.y / radius))}
			for dx := int64(-1); dx <= 1; dx++ {
				for dy := int64(-1); dy <= 1; dy++ {
					for _, j := range grid[cell{x: home.x + dx, y: home.y + dy}] {
						ddx := p.x - points[j].x
						ddy := p.y - points[j].y
						if ddx*ddx+ddy*ddy <= r2 {
							union(parent, i, j)
						}
					}
				}
			}
			grid[home] = append(grid[home], i)
		}
	}

	var order []int
	groups := make(map[int][]int)
	for i := range points {
		root := find(parent, i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], i)
	}

	clusters := make([]*domain.Cluster, 0, len(order))
	for _, root := range order {
		clusters = append(clusters, build(points, groups[root]))
	}
	return clusters
}

// collect drops invalid events and returns the rest projected and sorted by ID.
// Of several valid events sharing an ID the one with the smallest (lat, lng) is kept.
func (c *Clusterer) collect(events []*domain.Event, zoom float64) []point {
	kept := make(map[string]*domain.Event, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		if e.Coordinate == nil {
			c.logger.Warn("event excluded from clustering", "event_id", e.ID, "reason", "missing coordinate")
			continue
		}
		if !e.Coordinate.Valid() {
			c.logger.Warn("event excluded from clustering", "event_id", e.ID, "reason", "invalid coordinate",
				"lat", e.Coordinate.Latitude, "lng", e.Coordinate.Longitude)
			continue
		}
		prev, dup := kept[e.ID]
		if !dup {
			kept[e.ID] = e
			continue
		}
		c.logger.Warn("duplicate event in clustering", "event_id", e.ID)
		if coordinateLess(*e.Coordinate, *prev.Coordinate) {
			kept[e.ID] = e
		}
	}

	points := make([]point, 0, len(kept))
	for _, e := range kept {
		x, y := Project(*e.Coordinate, zoom)
		points = append(points, point{event: e, x: x, y: y})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].event.ID < points[j].event.ID })
	return points
}

func coordinateLess(a, b domain.Coordinate) bool {
	if a.Latitude != b.Latitude {
		return a.Latitude < b.Latitude
	}
	return a.Longitude < b.Longitude
}

func build(points []point, members []int) *domain.Cluster {
	events := make([]*domain.Event, 0, len(members))
	var sumLat, sumLng float64
	for _, i := range members {
		e := points[i].event
		events = append(events, e)
		sumLat += e.Coordinate.Latitude
		sumLng += e.Coordinate.Longitude
	}
	n := float64(len(events))
	id := events[0].ID
	if len(events) > 1 {
		id = fmt.Sprintf("cluster:%s:%d", events[0].ID, len(events))
	}
	return &domain.Cluster{
		ID:         id,
		Coordinate: domain.Coordinate{Latitude: sumLat / n, Longitude: sumLng / n},
		Count:      len(events),
		Events:     events,
	}
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}

// union keeps the smaller index as root.
func union(parent []int, a, b int) {
	ra, rb := find(parent, a), find(parent, b)
	if ra == rb {
		return
	}
	if ra < rb {
		parent[rb] = ra
	} else {
		parent[ra] = rb
	}
}

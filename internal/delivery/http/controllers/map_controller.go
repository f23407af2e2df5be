package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pinit/internal/delivery/http/helpers"
	"pinit/internal/delivery/http/middleware"
	"pinit/internal/domain"
)

// defaultViewportPx is used when the client omits width or height.
const defaultViewportPx = 1080

// MapController serves the clustered map feed.
type MapController struct {
	Logger  *slog.Logger
	Service domain.MapService
}

// NewMapController builds a MapController.
func NewMapController(logger *slog.Logger, svc domain.MapService) *MapController {
	return &MapController{Logger: logger, Service: svc}
}

// ClustersQuery is the validated query string of GET /map/clusters.
type ClustersQuery struct {
	Zoom   float64 `validate:"gte=0,lte=22"`
	Width  int     `validate:"gte=1,lte=10000"`
	Height int     `validate:"gte=1,lte=10000"`
	MinLat float64 `validate:"latitude"`
	MinLng float64 `validate:"longitude"`
	MaxLat float64 `validate:"latitude,gtefield=MinLat"`
	MaxLng float64 `validate:"longitude,gtefield=MinLng"`
}

// ClustersSuccessResponse is the success envelope for GET /map/clusters (200).
type ClustersSuccessResponse struct {
	Data  domain.MapView    `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// GetClusters godoc
// @Summary Get the clustered map
// @Description Returns the viewer's visible events grouped into clusters for the given zoom and viewport. The feed is fetched on first use.
// @Tags map
// @Produce json
// @Security BearerAuth
// @Param zoom query number true "Map zoom level (0-22)"
// @Param width query int false "Viewport width in px (default 1080)"
// @Param height query int false "Viewport height in px (default 1080)"
// @Param show_only_matched query bool false "Only show auto-matched events"
// @Param types query string false "Comma separated event types to show; others are hidden"
// @Param min_lat query number false "Bounding box south edge"
// @Param min_lng query number false "Bounding box west edge"
// @Param max_lat query number false "Bounding box north edge"
// @Param max_lng query number false "Bounding box east edge"
// @Success 200 {object} controllers.ClustersSuccessResponse "data contains clusters and counts"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /map/clusters [get]
func (c *MapController) GetClusters(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	q := r.URL.Query()
	if q.Get("zoom") == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "zoom is required")
		return
	}
	var query ClustersQuery
	var err error
	if query.Zoom, err = parseFloat(q, "zoom", 0); err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	if query.Width, err = parseInt(q, "width", defaultViewportPx); err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	if query.Height, err = parseInt(q, "height", defaultViewportPx); err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	bounds, err := parseBounds(q, &query)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	if !helpers.ValidateAndRespond(w, query) {
		return
	}
	settings, err := parseSettings(q)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}

	view, err := c.Service.GetMap(r.Context(), viewer, domain.MapQuery{
		Zoom:     query.Zoom,
		Width:    query.Width,
		Height:   query.Height,
		Settings: settings,
		Bounds:   bounds,
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, view)
}

// ListEventsResponse is the paginated list of visible events.
type ListEventsResponse struct {
	Items      []*domain.Event        `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListEventsSuccessResponse is the success envelope for GET /map/events (200).
type ListEventsSuccessResponse struct {
	Data  ListEventsResponse `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// ListEvents godoc
// @Summary List visible events
// @Description Returns the events the viewer may see on the map, after filters, without clustering.
// @Tags map
// @Produce json
// @Security BearerAuth
// @Param show_only_matched query bool false "Only show auto-matched events"
// @Param types query string false "Comma separated event types to show"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 50, max 200)"
// @Success 200 {object} controllers.ListEventsSuccessResponse "data contains items and pagination"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /map/events [get]
func (c *MapController) ListEvents(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	settings, err := parseSettings(r.URL.Query())
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	params := helpers.ParsePagination(r)
	events, total, err := c.Service.ListVisible(r.Context(), viewer, settings, params)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ListEventsResponse{
		Items:      events,
		Pagination: helpers.NewPaginationMeta(params, total),
	})
}

// MatchesResponse lists the viewer's potential matches.
type MatchesResponse struct {
	Items []*domain.Event `json:"items"`
	Count int             `json:"count"`
}

// MatchesSuccessResponse is the success envelope for GET /map/matches (200).
type MatchesSuccessResponse struct {
	Data  MatchesResponse   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ListMatches godoc
// @Summary List potential matches
// @Description Returns auto-matched events the viewer was invited to and is not attending yet.
// @Tags map
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.MatchesSuccessResponse "data contains items and count"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /map/matches [get]
func (c *MapController) ListMatches(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	events, err := c.Service.ListPotentialMatches(r.Context(), viewer)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, MatchesResponse{Items: events, Count: len(events)})
}

// RefreshResponse carries the generation a refresh produced.
type RefreshResponse struct {
	Generation uint64 `json:"generation"`
}

// RefreshSuccessResponse is the success envelope for POST /map/refresh (200).
type RefreshSuccessResponse struct {
	Data  RefreshResponse   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// Refresh godoc
// @Summary Refresh the map feed
// @Description Re-fetches the viewer's events and invitations. Responses from older refreshes are discarded.
// @Tags map
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.RefreshSuccessResponse "data contains the new generation"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /map/refresh [post]
func (c *MapController) Refresh(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	gen, err := c.Service.Refresh(r.Context(), viewer)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, RefreshResponse{Generation: gen})
}

func (c *MapController) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalidInput) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "internal error")
}

// parseSettings reads show_only_matched and types. When types is given, only the listed types are shown.
func parseSettings(q url.Values) (domain.FilterSettings, error) {
	var settings domain.FilterSettings
	if s := q.Get("show_only_matched"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return settings, fmt.Errorf("show_only_matched must be a boolean")
		}
		settings.ShowOnlyMatched = v
	}
	if !q.Has("types") {
		return settings, nil
	}
	settings.EnabledTypes = make(map[domain.EventType]bool, len(domain.EventTypes))
	for _, t := range domain.EventTypes {
		settings.EnabledTypes[t] = false
	}
	for _, raw := range strings.Split(q.Get("types"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, err := domain.ParseEventType(raw)
		if err != nil {
			return settings, fmt.Errorf("unknown event type %q", raw)
		}
		settings.EnabledTypes[t] = true
	}
	return settings, nil
}

// parseBounds fills the bbox fields of query. All four edges must be given together.
func parseBounds(q url.Values, query *ClustersQuery) (*domain.Bounds, error) {
	keys := []string{"min_lat", "min_lng", "max_lat", "max_lng"}
	present := 0
	for _, k := range keys {
		if q.Get(k) != "" {
			present++
		}
	}
	if present == 0 {
		// Keep the zero box valid for the validator.
		return nil, nil
	}
	if present != len(keys) {
		return nil, fmt.Errorf("min_lat, min_lng, max_lat and max_lng must be given together")
	}
	dst := []*float64{&query.MinLat, &query.MinLng, &query.MaxLat, &query.MaxLng}
	for i, k := range keys {
		v, err := parseFloat(q, k, 0)
		if err != nil {
			return nil, err
		}
		*dst[i] = v
	}
	return &domain.Bounds{MinLat: query.MinLat, MinLng: query.MinLng, MaxLat: query.MaxLat, MaxLng: query.MaxLng}, nil
}

func parseFloat(q url.Values, key string, def float64) (float64, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

func parseInt(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

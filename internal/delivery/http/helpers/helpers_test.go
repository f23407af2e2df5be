package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinit/internal/domain"
)

type pinRequest struct {
	Title string  `validate:"required"`
	Lat   float64 `validate:"latitude"`
	Lng   float64 `validate:"longitude"`
	Zoom  int     `validate:"gte=0,lte=22"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name string
		in   pinRequest
		want []string
	}{
		{"valid", pinRequest{Title: "x", Lat: 45, Lng: -120, Zoom: 10}, nil},
		{"missing title", pinRequest{Lat: 1, Lng: 1}, []string{"title is required"}},
		{"latitude", pinRequest{Title: "x", Lat: 90.5}, []string{"lat must be between -90 and 90"}},
		{"longitude", pinRequest{Title: "x", Lng: -180.1}, []string{"lng must be between -180 and 180"}},
		{"zoom bounds", pinRequest{Title: "x", Zoom: 30}, []string{"zoom must be at most 22"}},
		{"several", pinRequest{Lat: 100, Zoom: -1}, []string{"title is required", "lat must be between -90 and 90", "zoom must be at least 0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateStruct(tt.in))
		})
	}
}

func TestValidateAndRespond(t *testing.T) {
	rr := httptest.NewRecorder()
	ok := ValidateAndRespond(rr, pinRequest{Lat: 100})
	require.False(t, ok)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var env APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeBadRequest, env.Error.Code)
	assert.Equal(t, "title is required; lat must be between -90 and 90", env.Error.Message)

	assert.True(t, ValidateAndRespond(httptest.NewRecorder(), pinRequest{Title: "ok"}))
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query string
		want  domain.PaginationParams
	}{
		{"", domain.PaginationParams{Page: 1, PageSize: DefaultPageSize}},
		{"?page=3&page_size=10", domain.PaginationParams{Page: 3, PageSize: 10}},
		{"?page=0&page_size=-5", domain.PaginationParams{Page: 1, PageSize: DefaultPageSize}},
		{"?page=abc&page_size=xyz", domain.PaginationParams{Page: 1, PageSize: DefaultPageSize}},
		{"?page_size=5000", domain.PaginationParams{Page: 1, PageSize: MaxPageSize}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/map/events"+tt.query, nil)
			assert.Equal(t, tt.want, ParsePagination(r))
		})
	}
}

func TestNewPaginationMeta(t *testing.T) {
	assert.Equal(t, PaginationMeta{Page: 1, PageSize: 20, Total: 41, TotalPages: 3},
		NewPaginationMeta(domain.PaginationParams{Page: 1, PageSize: 20}, 41))
	assert.Equal(t, PaginationMeta{Page: 1, PageSize: 0, Total: 7, TotalPages: 0},
		NewPaginationMeta(domain.PaginationParams{Page: 1}, 7))
}

func TestWriteJSONSuccess(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSONSuccess(rr, http.StatusOK, map[string]int{"count": 2})
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"count":2},"error":null}`, rr.Body.String())
}

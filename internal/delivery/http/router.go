package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"pinit/internal/delivery/http/controllers"
	"pinit/internal/delivery/http/middleware"
	"pinit/internal/domain"
)

// RouterConfig carries what NewRouter needs besides controllers.
type RouterConfig struct {
	Verifier       domain.TokenVerifier
	Logger         *slog.Logger
	AllowedOrigins []string
}

// NewRouter initializes the HTTP router with all application routes and wraps it in the middleware chain.
func NewRouter(mapController *controllers.MapController, healthController *controllers.HealthController, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(cfg.Verifier, cfg.Logger)

	// Map
	mux.HandleFunc("GET /map/clusters", auth(mapController.GetClusters))
	mux.HandleFunc("GET /map/events", auth(mapController.ListEvents))
	mux.HandleFunc("GET /map/matches", auth(mapController.ListMatches))
	mux.HandleFunc("POST /map/refresh", auth(mapController.Refresh))
	mux.HandleFunc("GET /map/live", auth(mapController.Live))

	mux.HandleFunc("GET /healthz", healthController.Healthz)

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.AllowedOrigins, handler)
	handler = middleware.LoggingMiddleware(cfg.Logger, handler)
	handler = middleware.RequestID(handler)
	return handler
}

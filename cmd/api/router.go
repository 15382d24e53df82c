package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/aqarbay-api/pkg/httpx"
	"github.com/FACorreiaa/aqarbay-api/pkg/interceptors"
	"github.com/FACorreiaa/aqarbay-api/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP handler
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	jwtSecret := []byte(deps.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		deps.Logger.Warn("JWT secret is empty; admin routes will reject requests")
	}

	tracer := otel.GetTracerProvider().Tracer("aqarbay/api")

	var globalLimiter *rate.Limiter
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		globalLimiter = rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
	}
	var windowLimiter interceptors.WindowLimiter
	if deps.Redis != nil {
		windowLimiter = interceptors.NewRedisWindowLimiter(deps.Redis)
	}

	registerPublicRoutes(mux, deps)
	registerAdminRoutes(mux, deps)
	registerUtilityRoutes(mux, deps)

	// Metrics must sit next to the mux to see the matched pattern.
	handler := interceptors.Chain(mux,
		interceptors.NewRequestIDMiddleware("X-Request-ID"),
		interceptors.NewTracingMiddleware(tracer),
		interceptors.NewRecoveryMiddleware(deps.Logger),
		interceptors.NewLoggingMiddleware(deps.Logger),
		interceptors.NewRateLimitMiddleware(globalLimiter, windowLimiter, deps.Logger),
		interceptors.NewAuthMiddleware(jwtSecret, "/api/admin/"),
		observability.NewMetricsMiddleware(),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	})

	return corsHandler.Handler(handler)
}

// registerPublicRoutes registers the unauthenticated listing routes
func registerPublicRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /api/public/properties", deps.PropertyHandler.ListPublic)
	mux.HandleFunc("GET /api/public/properties/{slug}", deps.PropertyHandler.GetPublic)
	mux.HandleFunc("GET /api/public/properties/{slug}/nearby-pois", deps.POIHandler.NearbyPOIs)
	deps.Logger.Info("public routes configured")
}

// registerAdminRoutes registers routes guarded by the auth middleware
func registerAdminRoutes(mux *http.ServeMux, deps *Dependencies) {
	h := deps.PropertyHandler
	mux.HandleFunc("GET /api/admin/properties", h.List)
	mux.HandleFunc("POST /api/admin/properties", h.Create)
	mux.HandleFunc("POST /api/admin/properties/bulk", h.Bulk)
	mux.HandleFunc("GET /api/admin/properties/export/csv", h.ExportCSV)
	mux.HandleFunc("GET /api/admin/properties/{id}", h.Get)
	mux.HandleFunc("PUT /api/admin/properties/{id}", h.Update)
	mux.HandleFunc("PATCH /api/admin/properties/{id}", h.Update)
	mux.HandleFunc("DELETE /api/admin/properties/{id}", h.Delete)
	mux.HandleFunc("POST /api/admin/properties/{id}/publish", h.Publish)
	mux.HandleFunc("POST /api/admin/properties/{id}/unpublish", h.Unpublish)
	mux.HandleFunc("POST /api/admin/properties/{id}/duplicate", h.Duplicate)
	mux.HandleFunc("GET /api/admin/properties/{id}/pois", h.POIs)
	mux.HandleFunc("POST /api/admin/properties/{id}/pois/refresh", h.RefreshPOIs)
	mux.HandleFunc("GET /api/admin/pois/preview", deps.POIHandler.Preview)

	if deps.EnrichmentHandler != nil {
		mux.HandleFunc("GET /api/admin/enrichment/jobs/{id}", deps.EnrichmentHandler.GetJob)
		mux.HandleFunc("DELETE /api/admin/enrichment/jobs/{id}", deps.EnrichmentHandler.CancelJob)
	}
	deps.Logger.Info("admin routes configured")
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"name": "aqarbay-api", "status": "ok"})
	})

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	deps.Logger.Info("registered health check", "path", "/health")

	// Readiness check endpoint
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	// Metrics endpoint (Prometheus)
	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}

package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/loci-places-engine/pkg/middleware"
)

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	registerPlaceRoutes(mux, deps)
	registerUtilityRoutes(mux, deps)

	mws := []func(http.Handler) http.Handler{
		middleware.NewRequestID("X-Request-ID"),
		middleware.NewRecovery(deps.Logger),
		middleware.NewLogging(deps.Logger),
		middleware.NewMetrics(),
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		mws = append(mws, middleware.NewRateLimit(limiter))
	}

	handler := middleware.Chain(mux, mws...)

	// Enable CORS for browser clients (local frontend)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept-Encoding",
			"Content-Type",
			"X-Request-ID",
		},
		AllowCredentials: true,
	})

	return corsHandler.Handler(handler)
}

// registerPlaceRoutes registers the place lookup, batch resolve, and nearby
// discovery endpoints
func registerPlaceRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /places/{id}", deps.PlacesHandler.GetPlace)
	mux.HandleFunc("POST /places:resolve", deps.PlacesHandler.ResolveBatch)
	mux.HandleFunc("POST /nearby-places", deps.PlacesHandler.NearbyPlaces)

	deps.Logger.Info("place routes configured")
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	deps.Logger.Info("registered health check", "path", "/health")

	// Readiness check endpoint
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	// Metrics endpoint (Prometheus)
	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/Project-Sylos/IndexTree/internal/api/handlers"
	"github.com/Project-Sylos/IndexTree/internal/metrics"
	"github.com/Project-Sylos/IndexTree/sdk"
)

// requestSlack is added on top of the walker timeout for the response write
const requestSlack = 30 * time.Second

// Router represents the HTTP API router
type Router struct {
	client *sdk.Client
}

// NewRouter creates a new API router
func NewRouter(client *sdk.Client) *Router {
	return &Router{client: client}
}

// SetupRoutes configures all API routes using modular handlers
func (r *Router) SetupRoutes() (*chi.Mux, error) {
	cfg := r.client.GetConfig()
	router := chi.NewRouter()

	// Standard middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Timeout(cfg.Walker.Timeout.Std() + requestSlack))

	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.API.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}).Handler)

	buildLimit, err := r.buildLimiter(cfg.API.BuildRateLimit)
	if err != nil {
		return nil, err
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(r.client)
	treeHandler := handlers.NewTreeHandler(r.client)
	systemHandler := handlers.NewSystemHandler(r.client)

	// Health check
	router.Get("/health", healthHandler.HealthCheck)
	router.Handle("/metrics", metrics.Handler())

	// API routes
	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/tree", func(tree chi.Router) {
			tree.With(buildLimit).Post("/build", treeHandler.Build)
			tree.Get("/present", treeHandler.Present)
			tree.Get("/lookup", treeHandler.Lookup)
			tree.Get("/cached", treeHandler.Cached)
		})

		// System operations
		api.Get("/config", systemHandler.GetConfig)
		api.Get("/tables", systemHandler.GetTables)
	})

	return router, nil
}

// buildLimiter returns the rate limit middleware for the build endpoint; an empty format disables it
func (r *Router) buildLimiter(format string) (func(http.Handler) http.Handler, error) {
	if format == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	rate, err := limiter.NewRateFromFormatted(format)
	if err != nil {
		return nil, fmt.Errorf("invalid build rate limit %q: %w", format, err)
	}
	return limiterhttp.NewMiddleware(limiter.New(memory.NewStore(), rate)).Handler, nil
}

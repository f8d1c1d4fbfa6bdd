package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"courselens-backend/application/commands/bus"
	"courselens-backend/application/ports"
	querybus "courselens-backend/application/queries/bus"
	"courselens-backend/interfaces/http/rest/handlers"
	"courselens-backend/interfaces/http/rest/middleware"
	pkgerrors "courselens-backend/pkg/errors"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	snapshots  ports.SnapshotProvider
	registry   *prometheus.Registry
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
	enableCORS bool
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	snapshots ports.SnapshotProvider,
	registry *prometheus.Registry,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
	enableCORS bool,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		snapshots:  snapshots,
		registry:   registry,
		errors:     errors,
		logger:     logger,
		enableCORS: enableCORS,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	// Operational endpoints
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		askHandler := handlers.NewAskHandler(rt.queryBus, rt.errors, rt.logger)
		r.Post("/ask", askHandler.Ask)

		graphHandler := handlers.NewGraphHandler(rt.queryBus, rt.errors, rt.logger)
		r.Route("/courses", func(r chi.Router) {
			r.Get("/overlap", graphHandler.GetOverlap)
			r.Get("/path", graphHandler.GetPath)
			r.Get("/{code}/prerequisites", graphHandler.GetPrerequisites)
			r.Get("/{code}/unlocks", graphHandler.GetUnlocks)
		})

		catalogHandler := handlers.NewCatalogHandler(rt.commandBus, rt.queryBus, rt.errors, rt.logger)
		r.Post("/catalog/activate", catalogHandler.Activate)
		r.Get("/stats", catalogHandler.Stats)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports ready once a catalog version has been activated;
// until then the service can accept activations but not serve queries.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := rt.snapshots.Current(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"waiting for catalog activation"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

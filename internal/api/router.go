// Package api serves the corridor's external operations over HTTP (chi) and
// exposes a gRPC health endpoint.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/internal/observability"
	"github.com/signalsfoundry/rail-corridor-sim/internal/orchestrator"
)

// RouterOption customises NewRouter.
type RouterOption func(*routerConfig)

type routerConfig struct {
	collector   *observability.CorridorCollector
	corsOrigins []string
}

// WithCollector records HTTP metrics on c.
func WithCollector(c *observability.CorridorCollector) RouterOption {
	return func(rc *routerConfig) {
		rc.collector = c
	}
}

// WithCORSOrigins sets the allowed CORS origins. The default allows any.
func WithCORSOrigins(origins []string) RouterOption {
	return func(rc *routerConfig) {
		if len(origins) > 0 {
			rc.corsOrigins = origins
		}
	}
}

// NewRouter builds the HTTP handler for the corridor API.
func NewRouter(orch *orchestrator.Orchestrator, log logging.Logger, opts ...RouterOption) http.Handler {
	if log == nil {
		log = logging.Noop()
	}
	rc := routerConfig{corsOrigins: []string{"*"}}
	for _, opt := range opts {
		if opt != nil {
			opt(&rc)
		}
	}

	h := &Handler{orch: orch, log: log.With(logging.String("component", "api"))}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestContext(h.log))
	r.Use(tracing)
	r.Use(rc.collector.HTTPMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rc.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Post("/ai/enable", h.EnableAI)
		r.Post("/ai/disable", h.DisableAI)
		r.Post("/ai/optimize", h.Optimize)
		r.Post("/emergency", h.EmergencyOverride)
		r.Put("/train/{trainID}/position", h.UpdatePosition)
		r.Get("/recommendations", h.GetRecommendations)
		r.Get("/optimizations", h.GetOptimizations)
	})

	return r
}

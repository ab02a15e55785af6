package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/folio-api/internal/api/middleware"
	"github.com/phrazzld/folio-api/internal/api/shared"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/redact"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Registry      *jsonapi.Registry
	Resources     *ResourceHandler
	Relationships *RelationshipHandler
	// Metrics and Gatherer are optional; without them /metrics is not served.
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer
	// Ping backs /health. Nil reports healthy unconditionally.
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

// NewRouter builds the HTTP handler: the JSON:API routes of every
// registered type plus /health and /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewTraceMiddleware(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Handler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, jsonapi.NewError(jsonapi.ErrNotFound, "no route for %s", r.URL.Path))
	})

	r.Get("/health", healthHandler(cfg.Ping, cfg.Logger))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireMediaType)
		for _, typ := range cfg.Registry.Types() {
			mountType(r, typ, cfg.Resources, cfg.Relationships)
		}
	})

	return r
}

func mountType(r chi.Router, typ string, res *ResourceHandler, rel *RelationshipHandler) {
	r.Route("/"+typ, func(r chi.Router) {
		r.Get("/", res.List(typ))
		r.Post("/", res.Create(typ))

		r.Route("/{"+paramID+"}", func(r chi.Router) {
			r.Get("/", res.Get(typ))
			r.Patch("/", res.Update(typ))
			r.Delete("/", res.Delete(typ))

			r.Get("/relationships/{"+paramRelationship+"}", rel.Fetch(typ))
			r.Patch("/relationships/{"+paramRelationship+"}", rel.Replace(typ))
			r.Post("/relationships/{"+paramRelationship+"}", rel.Add(typ))
			r.Delete("/relationships/{"+paramRelationship+"}", rel.Remove(typ))

			r.Get("/{"+paramRelationship+"}", rel.Related(typ))
		})
	})
}

func healthHandler(ping func(context.Context) error, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				log.Error("health check failed", redact.ErrorAttr(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("Failed to write health check response", "error", err)
		}
	}
}

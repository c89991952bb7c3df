package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/granite-erp/granite-erp/internal/observability"
	"github.com/granite-erp/granite-erp/internal/platform/httpx"
)

// RouteMounter is implemented by every feature handler.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams collects everything the HTTP router needs.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Metrics  *observability.Metrics
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Handlers []RouteMounter
}

// NewRouter assembles the application router: middleware stack, health and
// metrics endpoints, and every feature handler mounted under /api.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if p.Pool != nil {
			if err := p.Pool.Ping(ctx); err != nil {
				p.Logger.Warn("readiness check failed", slog.String("dependency", "postgres"), slog.Any("error", err))
				httpx.Unavailable(w, "postgres unreachable")
				return
			}
		}
		if p.Redis != nil {
			if err := p.Redis.Ping(ctx).Err(); err != nil {
				p.Logger.Warn("readiness check failed", slog.String("dependency", "redis"), slog.Any("error", err))
				httpx.Unavailable(w, "redis unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		for _, h := range p.Handlers {
			h.MountRoutes(api)
		}
	})
	return r
}

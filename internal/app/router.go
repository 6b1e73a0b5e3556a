package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/partsdesk/partsdesk/internal/observability"
	"github.com/partsdesk/partsdesk/internal/platform/httpx"
	"github.com/partsdesk/partsdesk/internal/poimport"
	"github.com/partsdesk/partsdesk/jobs"
)

// Pinger reports dependency health for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	ImportHandler *poimport.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
	Checks        map[string]Pinger
}

// NewRouter constructs the chi.Router with partsdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", readiness(params.Checks, params.Logger))

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	apiKeyHash := ""
	rateLimit := 0
	if params.Config != nil {
		apiKeyHash = params.Config.APIKeyHash
		rateLimit = params.Config.ImportRateLimit
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(APIKeyAuth(apiKeyHash, params.Logger))
		if params.ImportHandler != nil {
			r.Route("/purchase-orders", func(r chi.Router) {
				r.Use(RateLimit(rateLimit))
				params.ImportHandler.MountRoutes(r)
			})
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

func readiness(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", slog.String("check", name), slog.Any("error", err))
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "up"
		}
		httpx.JSON(w, code, status)
	}
}

package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/beautylab-site/internal/http/middleware"
	"github.com/wolfman30/beautylab-site/internal/leads"
	"github.com/wolfman30/beautylab-site/internal/web"
	"github.com/wolfman30/beautylab-site/pkg/logging"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Page               *web.Page
	LeadsHandler       *leads.Handler
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
	HSTS               bool
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	r.Use(httpmiddleware.SecurityHeaders(cfg.HSTS))

	r.Group(func(public chi.Router) {
		public.Use(middleware.Compress(5))
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Handle("/static/*", web.Static())
		if cfg.Page != nil {
			public.Get("/", cfg.Page.Index)
		}
	})

	if cfg.LeadsHandler != nil {
		r.Group(func(forms chi.Router) {
			if cfg.RateLimiter != nil {
				forms.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			forms.Post("/contact", cfg.LeadsHandler.SubmitForm)
			forms.Post("/contact/reset", cfg.LeadsHandler.ResetForm)

			forms.Route("/api/leads", func(api chi.Router) {
				if len(cfg.CORSAllowedOrigins) > 0 {
					api.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
					api.Options("/", func(w http.ResponseWriter, r *http.Request) {
						w.WriteHeader(http.StatusNoContent)
					})
				}
				api.Get("/", cfg.LeadsHandler.GetState)
				api.Post("/", cfg.LeadsHandler.SubmitJSON)
			})
		})
	}

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		code := http.StatusOK
		if len(names) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			resp.Checks = make(map[string]string, len(names))
			for _, name := range names {
				if err := checks[name](ctx); err != nil {
					resp.Checks[name] = err.Error()
					resp.Status = "degraded"
					code = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

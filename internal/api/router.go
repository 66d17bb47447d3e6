// Package api provides the HTTP surface of the rule tree service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ruletree/ruletree/internal/api/handlers"
	"github.com/ruletree/ruletree/internal/auth"
	"github.com/ruletree/ruletree/internal/health"
	"github.com/ruletree/ruletree/internal/openapi"
	"github.com/ruletree/ruletree/internal/rbac"
	"github.com/ruletree/ruletree/pkg/logging"
	"github.com/ruletree/ruletree/pkg/metrics"
)

// DefaultRequestTimeout bounds one request when the config leaves the
// timeout unset.
const DefaultRequestTimeout = 60 * time.Second

// defaultMetricsPath is where the Prometheus handler mounts.
const defaultMetricsPath = "/metrics"

// RouterConfig holds the optional surfaces around the core handlers.
// Nil fields switch the surface off.
type RouterConfig struct {
	Logger  *logging.Logger
	Metrics *metrics.Registry
	Health  *health.Handler
	Auth    *auth.Validator

	// Policy gates the rule-set routes by role. Only meaningful with
	// Auth set; nil admits every authenticated caller everywhere.
	Policy *rbac.Policy

	// Version stamps the served API document.
	Version string

	MetricsPath    string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with the core routes and middleware
// configured and every optional surface off.
func NewRouter(h *handlers.Handler) chi.Router {
	return NewRouterWithConfig(h, RouterConfig{})
}

// NewRouterWithConfig creates a chi router with the optional surfaces
// wired in.
func NewRouterWithConfig(h *handlers.Handler, cfg RouterConfig) chi.Router {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = defaultMetricsPath
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.Logger != nil {
		r.Use(logging.RequestLogger(cfg.Logger.Logger))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(metrics.HTTPMiddlewareWithOptions(cfg.Metrics, metrics.MiddlewareOptions{
			SkipPaths: []string{"/healthz", "/readyz", "/health", metricsPath},
		}))
	}

	// Probes and metrics stay outside the API group: unauthenticated,
	// uncounted, not JSON-typed by default.
	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Liveness)
		r.Get("/readyz", cfg.Health.Readiness)
		r.Get("/health", cfg.Health.Health)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, metricsPath, cfg.Metrics.Handler())
	}
	openapi.NewHandler(openapi.NewSpec(cfg.Version)).RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentType)
		if cfg.Auth != nil {
			r.Use(auth.Middleware(cfg.Auth))
		}

		r.Post("/validate", h.ValidateDocument)
		r.Post("/compile", h.CompileDocument)
		r.Post("/evaluate", h.EvaluateDocument)

		read := rbac.Require(cfg.Policy, rbac.RuleSetsRead)
		write := rbac.Require(cfg.Policy, rbac.RuleSetsWrite)

		r.Route("/rulesets", func(r chi.Router) {
			r.With(write).Post("/", h.CreateRuleSet)
			r.With(read).Get("/", h.ListRuleSets)
			r.Route("/{id}", func(r chi.Router) {
				r.With(read).Get("/", h.GetRuleSet)
				r.With(write).Put("/", h.UpdateRuleSet)
				r.With(write).Delete("/", h.DeleteRuleSet)
				r.With(read).Post("/compile", h.CompileRuleSet)
			})
		})
	})

	return r
}

// jsonContentType is middleware that sets the Content-Type header to application/json.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	githubctrl "github.com/m-mizutani/drover/pkg/controller/github"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
)

// config holds internal HTTP server configuration
type config struct {
	addr           string
	webhookSecret  string
	apiTokenSecret string
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the webhook secret
func WithWebhookSecret(secret string) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// WithAPITokenSecret enables bearer token authentication on the
// management API. Without it the API is open, which is only suitable
// for local development.
func WithAPITokenSecret(secret string) Option {
	return func(c *config) {
		c.apiTokenSecret = secret
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	processor *githubctrl.EventProcessor,
	runUC interfaces.RunUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr: "localhost:8080",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	// Health check
	router.Get("/health", handleHealth)

	// Prometheus metrics
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Webhook endpoint
	webhookHandler := NewWebhookHandler(cfg.webhookSecret, processor)
	router.Post("/hooks/github/app", webhookHandler.Handle)

	// Management API
	validator, err := newOpenAPIValidator(ctx)
	if err != nil {
		return nil, err
	}
	runsHandler := NewRunsHandler(runUC)
	router.Route("/api/v1", func(r chi.Router) {
		if cfg.apiTokenSecret != "" {
			r.Use(BearerAuthMiddleware(cfg.apiTokenSecret))
		}
		r.Use(validator.Middleware)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{runID}", runsHandler.Get)
		r.Post("/runs/{runID}/cancel", runsHandler.Cancel)
		r.Post("/runs/{runID}/rerun", runsHandler.Rerun)
	})

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}

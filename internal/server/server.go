// Package server composes the gateway's HTTP pipeline: request id and
// access logging around everything, then rate limiting, then the auth
// gate where a route requires it, then the service proxy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tunetrail/gateway/internal/auth"
	"github.com/tunetrail/gateway/internal/identity"
	"github.com/tunetrail/gateway/internal/metrics"
	"github.com/tunetrail/gateway/internal/proxy"
	"github.com/tunetrail/gateway/internal/ratelimit"
	"github.com/tunetrail/gateway/internal/registry"
)

const gatewayVersion = "1.0.0"

// Deps are the injected collaborators for the gateway pipeline.
// Everything stateful (token cache, rate windows, counters) lives
// behind these, which keeps the pipeline testable with fakes.
type Deps struct {
	Logger       *slog.Logger
	Registry     *registry.Registry
	Gate         *auth.Gate
	Limiter      *ratelimit.Limiter
	Proxy        *proxy.Proxy
	Metrics      *metrics.Metrics
	Identity     *identity.Client
	PromRegistry *prometheus.Registry
	ProbeTimeout time.Duration
}

// Server is the gateway HTTP server.
type Server struct {
	router      *chi.Mux
	port        int
	logger      *slog.Logger
	registry    *registry.Registry
	gate        *auth.Gate
	limiter     *ratelimit.Limiter
	proxy       *proxy.Proxy
	metrics     *metrics.Metrics
	identity    *identity.Client
	probeClient *http.Client
	promHandler http.Handler
	httpServer  *http.Server
}

// New assembles the router from the injected dependencies.
func New(port int, deps Deps) *Server {
	probeTimeout := deps.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}

	s := &Server{
		port:        port,
		logger:      deps.Logger,
		registry:    deps.Registry,
		gate:        deps.Gate,
		limiter:     deps.Limiter,
		proxy:       deps.Proxy,
		metrics:     deps.Metrics,
		identity:    deps.Identity,
		probeClient: &http.Client{Timeout: probeTimeout},
		promHandler: promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{}),
	}
	s.router = s.routes()
	return s
}

// Router exposes the composed handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger, s.metrics))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "tunetrail-gateway")
	})

	r.NotFound(s.handleNotFound)

	// Gateway self-diagnostics, reachable bare and under /api.
	r.Get("/health", s.handleHealth)
	r.Get("/docs", s.handleDocs)
	r.Get("/metrics", s.handleMetrics)
	r.Handle("/metrics/prometheus", s.promHandler)

	r.Route("/api", func(api chi.Router) {
		api.NotFound(s.handleNotFound)

		api.Get("/health", s.handleHealth)
		api.Get("/docs", s.handleDocs)
		api.Get("/metrics", s.handleMetrics)
		api.Handle("/metrics/prometheus", s.promHandler)

		authGate := AuthMiddleware(s.gate)

		// Authentication endpoints are handled by the gateway itself,
		// not proxied, and are exempt from the rate-limit group.
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", s.handleRegister)
			ar.Post("/login", s.handleLogin)
			ar.Group(func(pr chi.Router) {
				pr.Use(authGate)
				pr.Post("/logout", s.handleLogout)
				pr.Get("/me", s.handleMe)
			})
		})

		rateLimited := RateLimitMiddleware(s.limiter, s.logger)

		// Per-service routing. Auth policy mirrors the platform's
		// contract: playlist, media and analytics are fully private;
		// profile and social expose public reads with private writes;
		// comment is fully public.
		api.Route("/profile", func(sr chi.Router) {
			sr.Use(rateLimited)
			h := s.proxy.Handler("profile")
			sr.Group(func(g chi.Router) {
				g.Use(authGate)
				g.Handle("/me", h)
				g.Handle("/timeline", h)
			})
			sr.Handle("/", h)
			sr.Handle("/*", h)
		})

		api.Route("/social", func(sr chi.Router) {
			sr.Use(rateLimited)
			h := s.proxy.Handler("social")
			sr.Group(func(g chi.Router) {
				g.Use(authGate)
				g.Handle("/posts", h)
				g.Handle("/posts/{id}/like", h)
				g.Handle("/posts/{id}/comment", h)
			})
			sr.Handle("/feed", h)
			sr.Handle("/", h)
			sr.Handle("/*", h)
		})

		for _, service := range []string{"playlist", "media", "analytics"} {
			h := s.proxy.Handler(service)
			api.Route("/"+service, func(sr chi.Router) {
				sr.Use(rateLimited)
				sr.Use(authGate)
				sr.Handle("/", h)
				sr.Handle("/*", h)
			})
		}

		api.Route("/comment", func(sr chi.Router) {
			sr.Use(rateLimited)
			h := s.proxy.Handler("comment")
			sr.Handle("/", h)
			sr.Handle("/*", h)
		})
	})

	return r
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}
	s.logger.Info("starting gateway", slog.Int("port", s.port))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

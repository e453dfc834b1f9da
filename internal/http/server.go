package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moneybook/internal/api"
	"moneybook/internal/log"
	"moneybook/internal/middleware/ratelimit"
	"moneybook/internal/middleware/security"
	"moneybook/internal/middleware/trace"
	"moneybook/internal/services"
	"moneybook/internal/session"
	appweb "moneybook/web"
)

// HealthChecker reports whether the tracker API is reachable.
type HealthChecker interface {
	Health(ctx context.Context) (api.Health, error)
}

// Config carries the dependencies of the web server.
type Config struct {
	Addr      string
	Auth      *services.AuthService
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Sessions  *session.Manager
	Upstream  HealthChecker
	Logger    *log.Logger

	// Registry receives the HTTP collectors and backs /metrics. A private
	// registry is used when nil.
	Registry *prometheus.Registry

	// FormsPerMinute bounds sign-in and register posts per client IP.
	FormsPerMinute int
	TrustedProxies []string

	// Templates overrides the embedded web assets; used by tests.
	Templates fs.FS
	Static    fs.FS
}

// Server is the moneybook web client.
type Server struct {
	http.Server

	auth      *services.AuthService
	ledger    *services.LedgerService
	dashboard *services.DashboardService
	sessions  *session.Manager
	upstream  HealthChecker
	logger    *log.Logger
	templates *renderer
	static    fs.FS
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	started   time.Time
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Auth == nil || cfg.Ledger == nil || cfg.Dashboard == nil || cfg.Sessions == nil {
		return nil, errors.New("http: auth, ledger, dashboard and sessions are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	templatesFS := cfg.Templates
	if templatesFS == nil {
		templatesFS = appweb.TemplatesFS
	}
	staticFS := cfg.Static
	if staticFS == nil {
		sub, err := fs.Sub(appweb.StaticFS, "static")
		if err != nil {
			return nil, fmt.Errorf("mount static assets: %w", err)
		}
		staticFS = sub
	}
	tmpl, err := newRenderer(templatesFS)
	if err != nil {
		return nil, err
	}

	detector := security.NewDetector(logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	if err := reg.Register(detector.Collector()); err != nil {
		return nil, fmt.Errorf("register security metrics: %w", err)
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		auth:      cfg.Auth,
		ledger:    cfg.Ledger,
		dashboard: cfg.Dashboard,
		sessions:  cfg.Sessions,
		upstream:  cfg.Upstream,
		logger:    logger.WithComponent(log.ComponentHTTP),
		templates: tmpl,
		static:    staticFS,
		detector:  detector,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.FormsPerMinute,
			Registerer:        reg,
		}),
		started: time.Now(),
		now:     time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux, reg)

	tracer := trace.NewMiddleware(logger, detector.ExtractClientIP, reg)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(detector.ExtractClientIP, ratelimit.FormPosts("/login", "/register"), s.tooManyAttempts)

	s.Handler = tracer.Middleware(detector.Middleware(headers.Middleware(limit(mux))))
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, reg *prometheus.Registry) {
	static := security.StaticAssetMiddleware(3600)(http.StripPrefix("/static/", http.FileServerFS(s.static)))
	mux.Handle("GET /static/", static)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", s.requireAuth(s.handleDashboard))

	mux.Handle("GET /transactions", s.requireAuth(s.handleTransactions))
	mux.Handle("POST /transactions", s.requireAuth(s.handleCreateTransaction))
	mux.Handle("GET /transactions/{id}/edit", s.requireAuth(s.handleEditTransaction))
	mux.Handle("POST /transactions/{id}", s.requireAuth(s.handleUpdateTransaction))
	mux.Handle("POST /transactions/{id}/delete", s.requireAuth(s.handleDeleteTransaction))

	mux.Handle("GET /categories", s.requireAuth(s.handleCategories))
	mux.Handle("POST /categories", s.requireAuth(s.handleCreateCategory))
	mux.Handle("GET /categories/{id}/edit", s.requireAuth(s.handleEditCategory))
	mux.Handle("POST /categories/{id}", s.requireAuth(s.handleUpdateCategory))
	mux.Handle("POST /categories/{id}/delete", s.requireAuth(s.handleDeleteCategory))

	mux.HandleFunc("/", s.handleNotFound)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// logFor returns the request-scoped logger installed by the trace
// middleware.
func (s *Server) logFor(r *http.Request) *log.Logger {
	if l, ok := r.Context().Value(log.LoggerContextKey).(*log.Logger); ok {
		return l
	}
	return s.logger
}

func (s *Server) tooManyAttempts(w http.ResponseWriter, r *http.Request) {
	s.logFor(r).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Form rate limit exceeded",
		log.FieldPath, r.URL.Path,
		log.FieldClientIP, s.detector.ExtractClientIP(r))
	s.renderError(w, r, http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again.")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

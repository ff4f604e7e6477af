// Package http serves the academy web interface: server-rendered pages
// behind a login, form posts guarded by CSRF tokens, and XLSX downloads.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/csrf"

	"academy/internal/aggregate"
	"academy/internal/auth"
	"academy/internal/backup"
	applog "academy/internal/log"
	"academy/internal/middleware/ratelimit"
	"academy/internal/middleware/security"
	"academy/internal/middleware/trace"
	"academy/internal/services"
	"academy/internal/store"
	appweb "academy/web"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second

	staticMaxAge = 3600
)

// Config is the transport configuration of the server.
type Config struct {
	Addr       string
	Production bool
	// CSRFKey is the 32-byte gorilla/csrf key. A nil key disables CSRF
	// checks, which only tests do.
	CSRFKey        []byte
	TrustedProxies []string
	// PostsPerMinute limits form posts per client. Zero uses the default.
	PostsPerMinute int
	Logger         *applog.Logger
}

// Deps are the application components the handlers drive.
type Deps struct {
	Store    store.Store
	Engine   *aggregate.Engine
	Centers  *services.CenterService
	Coaches  *services.CoachService
	Leaves   *services.LeaveService
	Accounts *services.AccountService
	Gate     *auth.Gate
	Backups  *backup.Manager
}

type Server struct {
	http.Server
	Deps

	production bool
	templates  map[string]*template.Template
	logger     *applog.Logger
	now        func() time.Time
	started    time.Time

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates, registers every route and
// returns a server ready for ListenAndServe.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.NewWithLevel(applog.ComponentHTTP, applog.ParseLevel(""))
	}

	detector, err := security.NewDetector(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	templates, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Deps:             deps,
		production:       cfg.Production,
		templates:        templates,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		now:              time.Now,
		started:          time.Now(),
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.PostsPerMinute}),
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP, "/healthz", "/readyz", "/metrics"),
	}

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		s.rateLimiter.Stop()
		return nil, err
	}

	headers := security.DefaultHeadersConfig()
	headers.TrustForwardedProto = cfg.Production

	var handler http.Handler = mux
	if cfg.CSRFKey != nil {
		handler = s.withCSRF(cfg.CSRFKey, handler)
	}
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = detector.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleLoginPage)
	mux.HandleFunc("POST /{$}", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)

	protected := map[string]http.HandlerFunc{
		"GET /dashboard":                 s.handleDashboard,
		"POST /dashboard":                s.handleDashboardSave,
		"POST /center/add":               s.handleAddCenter,
		"POST /center/delete/{id}":       s.handleDeleteCenter,
		"POST /center/remove-month/{id}": s.handleRemoveCenterMonth,
		"GET /coaches":                   s.handleCoaches,
		"POST /coaches":                  s.handleCoachesAction,
		"POST /coaches/delete/{id}":      s.handleDeleteCoach,
		"GET /leaves":                    s.handleLeaves,
		"POST /leaves":                   s.handleLeavesAction,
		"GET /leaves/export.xlsx":        s.handleLeavesExport,
		"GET /analytics":                 s.handleAnalytics,
		"GET /analytics/export.xlsx":     s.handleAnalyticsExport,
		"GET /settings":                  s.handleSettings,
		"POST /settings":                 s.handleSettingsAction,
		"GET /backups":                   s.handleBackups,
		"POST /backups/create":           s.handleCreateBackup,
		"POST /backups/restore/{file}":   s.handleRestoreBackup,
		"GET /backups/download/{file}":   s.handleDownloadBackup,
	}
	for pattern, h := range protected {
		mux.Handle(pattern, s.requireLogin(h))
	}
	return nil
}

// withCSRF wraps next in gorilla/csrf. Outside production the app is
// served over plain HTTP, which csrf must be told about per request.
func (s *Server) withCSRF(key []byte, next http.Handler) http.Handler {
	protect := csrf.Protect(key,
		csrf.Secure(s.production),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.handleCSRFFailure)),
	)(next)
	if s.production {
		return protect
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protect.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func (s *Server) handleCSRFFailure(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "CSRF check failed",
		applog.FieldPath, r.URL.Path,
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldReason, csrf.FailureReason(r))
	http.Error(w, "The form has expired. Go back, reload the page and try again.", http.StatusForbidden)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	http.Error(w, "Too many requests. Please try again in a minute.", http.StatusTooManyRequests)
}

// Shutdown stops the background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

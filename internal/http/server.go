// Package http serves the server-rendered front end: the login and register
// views, the dashboard and the per-kind list, create and edit views.
package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"expenex/internal/api"
	"expenex/internal/core"
	"expenex/internal/log"
	"expenex/internal/middleware/ratelimit"
	"expenex/internal/middleware/security"
	"expenex/internal/middleware/trace"
	"expenex/internal/pages"
	"expenex/internal/session"
)

// Authenticator exchanges credentials with the API.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
	Register(ctx context.Context, name, email, password string) error
}

// SessionCounter reports how many sessions are persisted.
type SessionCounter interface {
	Count(ctx context.Context) (int, error)
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr       string
	Auth       Authenticator
	Sessions   *session.Manager
	Workspaces *pages.Registry
	// Checks are pinged by /readyz, keyed by the name reported.
	Checks    map[string]Pinger
	Templates fs.FS
	Static    fs.FS
	Logger    *log.Logger
	// LoginRateLimit is the per-client budget for login and register posts.
	LoginRateLimit ratelimit.Config
	// SessionCounter, when set, feeds the sessions_stored gauge.
	SessionCounter SessionCounter
	// TrustedProxies extend the private ranges allowed to set X-Forwarded-For.
	TrustedProxies []string
}

type Server struct {
	http.Server

	auth       Authenticator
	sessions   *session.Manager
	workspaces *pages.Registry
	checks     map[string]Pinger
	counter    SessionCounter
	views      *renderer
	logger     *log.Logger

	detector     *security.Detector
	loginLimiter *ratelimit.Limiter
	tracer       *trace.Middleware
	appMetrics   appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	started      time.Time
	created      atomic.Int64
	updated      atomic.Int64
	deleted      atomic.Int64
	logins       atomic.Int64
	failedLogins atomic.Int64
}

// NewServer wires the routes. The embedded templates are parsed up front
// so a broken template fails at startup.
func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil || opts.Sessions == nil || opts.Workspaces == nil {
		return nil, errors.New("http server needs an authenticator, a session manager and a workspace registry")
	}
	if opts.Templates == nil || opts.Static == nil {
		return nil, errors.New("http server needs template and static file systems")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	views, err := newRenderer(opts.Templates)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	limitCfg := opts.LoginRateLimit
	if limitCfg.RequestsPerMinute <= 0 {
		limitCfg = ratelimit.LoginConfig()
	}

	s := &Server{
		auth:         opts.Auth,
		sessions:     opts.Sessions,
		workspaces:   opts.Workspaces,
		checks:       opts.Checks,
		counter:      opts.SessionCounter,
		views:        views,
		logger:       logger.WithComponent(log.ComponentHTTP),
		detector:     security.NewDetector(logger),
		loginLimiter: ratelimit.NewLimiter(limitCfg),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	s.appMetrics.started = time.Now()
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.Static),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.loginLimiter.Start()
	return s, nil
}

func (s *Server) routes(static fs.FS) http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", s.handleLoginPage)
	r.Get("/register", s.handleRegisterPage)
	r.Group(func(r chi.Router) {
		r.Use(s.loginLimiter.Middleware(s.detector.ExtractClientIP, nil, s.logger))
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
	})
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Guard)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/summary", s.handleDashboardSummary)

		for _, kind := range []core.Kind{core.Income, core.Expense} {
			r.Get("/"+string(kind), s.handleList(kind))
			r.Get("/"+string(kind)+"/list", s.handleListPartial(kind))
			r.Post("/"+string(kind)+"/{id}/delete", s.handleDelete(kind))
			r.Get("/create-"+string(kind), s.handleCreateForm(kind))
			r.Post("/create-"+string(kind), s.handleCreate(kind))
			r.Get("/edit-"+string(kind)+"/{id}", s.handleEditForm(kind))
			r.Post("/edit-"+string(kind)+"/{id}", s.handleEdit(kind))
		}
	})

	r.NotFound(s.handleNotFound)
	return r
}

// Shutdown stops the background loops and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.loginLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// currentSession is only called behind the guard.
func currentSession(r *http.Request) session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

// unauthorized handles a 401 from the API: the client hook already cleared
// the stored session, so drop the view state and send the browser to login.
func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, sess session.Session, err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}
	s.workspaces.Forget(sess.ID)
	log.FromContext(r.Context()).WarnContext(r.Context(), "API rejected session token",
		log.FieldSessionID, sess.ID,
		log.FieldPath, r.URL.Path,
		log.FieldErrorType, log.ErrorTypeAuth)
	session.Redirect(w, r, s.sessions.LoginPath())
	return true
}

// statusFor maps a failed mutation to the status of the re-rendered form.
func statusFor(err error) int {
	switch api.Classify(err) {
	case api.KindValidation:
		return http.StatusUnprocessableEntity
	case api.KindNotFound:
		return http.StatusNotFound
	case api.KindTransport:
		return http.StatusBadGateway
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusNotFound, "notfound", "Not Found", "", nil)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"expenex/internal/cache"
	"expenex/internal/log"
)

// Options configure a Manager.
type Options struct {
	CookieName string
	Secure     bool
	// LoginPath is where unauthenticated requests are sent.
	LoginPath string
	Logger    *log.Logger
	Now       func() time.Time
}

// Manager binds sessions to cookies and guards protected routes.
type Manager struct {
	store      Store
	cookieName string
	secure     bool
	loginPath  string
	logger     *log.Logger
	now        func() time.Time

	flight  singleflight.Group
	cleared *cache.LRUCache[struct{}]
}

func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "expenex_session"
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/"
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:      store,
		cookieName: opts.CookieName,
		secure:     opts.Secure,
		loginPath:  opts.LoginPath,
		logger:     opts.Logger.WithComponent(log.ComponentSession),
		now:        opts.Now,
		cleared:    cache.NewLRUCache[struct{}](10000, time.Hour),
	}
}

// Cleared exposes the set of sessions invalidated by a 401 so it can be swept.
func (m *Manager) Cleared() cache.Cleaner {
	return m.cleared
}

// Load returns the session referenced by the request cookie.
func (m *Manager) Load(r *http.Request) (Session, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || !ValidID(c.Value) {
		return Session{}, false
	}
	s, err := m.store.Get(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.ErrorContext(r.Context(), "Failed to load session",
				log.FieldSessionID, c.Value,
				log.FieldError, err.Error())
		}
		return Session{}, false
	}
	return s, true
}

// Start persists a new session for token and userID and sets its cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, token, userID string) (Session, error) {
	s := Session{
		ID:        NewID(),
		Token:     token,
		UserID:    userID,
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	m.logger.InfoContext(ctx, "Session started",
		log.FieldSessionID, s.ID,
		log.FieldUserID, userID)
	return s, nil
}

// End deletes the session of the request, if any, and expires the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) error {
	defer m.expireCookie(w)

	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	if err := m.store.Delete(r.Context(), c.Value); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.InfoContext(r.Context(), "Session ended",
		log.FieldSessionID, c.Value,
		log.FieldOperation, log.OpLogout)
	return nil
}

// Invalidate deletes the session after the API rejected its token. Concurrent
// and repeated calls for the same id delete it only once.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	_, err, _ := m.flight.Do(id, func() (any, error) {
		if _, done := m.cleared.Get(id); done {
			return nil, nil
		}
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("delete session: %w", err)
		}
		m.cleared.Set(id, struct{}{})
		m.logger.WarnContext(ctx, "Session cleared after unauthorized response",
			log.FieldSessionID, id,
			log.FieldErrorType, log.ErrorTypeAuth)
		return nil, nil
	})
	return err
}

// Guard lets requests with a live session through and redirects everything
// else to the login view. An expired JWT counts as no token.
func (m *Manager) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := m.Load(r)
		if ok && s.Authenticated() && TokenExpired(s.Token, m.now()) {
			m.logger.InfoContext(r.Context(), "Session token expired",
				log.FieldSessionID, s.ID)
			if err := m.store.Delete(r.Context(), s.ID); err != nil {
				m.logger.ErrorContext(r.Context(), "Failed to delete expired session",
					log.FieldSessionID, s.ID,
					log.FieldError, err.Error())
			}
			ok = false
		}
		if !ok || !s.Authenticated() {
			m.expireCookie(w)
			Redirect(w, r, m.loginPath)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

// LoginPath is the redirect target for unauthenticated requests.
func (m *Manager) LoginPath() string {
	return m.loginPath
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Redirect navigates the browser to target. HTMX requests get an HX-Redirect
// header so the whole page changes instead of the swapped fragment.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

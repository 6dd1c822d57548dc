package http

import (
	"errors"
	"net/http"
	"time"

	"expenex/internal/api"
	"expenex/internal/log"
	"expenex/internal/session"
)

type authView struct {
	Name   string
	Email  string
	Error  string
	Notice string
}

const missingCredentialsMessage = "Please fill in all fields"

// handleLoginPage shows the login view; a live session skips straight to the dashboard.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.sessions.Load(r); ok && sess.Authenticated() && !session.TokenExpired(sess.Token, time.Now()) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	v := authView{}
	if r.URL.Query().Get("registered") == "1" {
		v.Notice = "Registration successful. Please log in."
	}
	s.renderPage(w, r, http.StatusOK, "login", "Login", "", v)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "register", "Register", "", authView{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentSession)

	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	c, err := parseCredentials(r.PostForm, false)
	v := authView{Email: c.Email}
	if err != nil {
		v.Error = missingCredentialsMessage
		s.renderPage(w, r, http.StatusUnprocessableEntity, "login", "Login", "", v)
		return
	}

	res, err := s.auth.Login(ctx, c.Email, c.Password)
	if err != nil {
		s.appMetrics.failedLogins.Add(1)
		logger.WarnContext(ctx, "Login failed",
			log.FieldOperation, log.OpLogin,
			log.FieldErrorType, string(api.Classify(err)),
			log.FieldError, err.Error())
		v.Error = api.Message(err, "Login failed. Please try again.")
		s.renderPage(w, r, statusFor(err), "login", "Login", "", v)
		return
	}

	if _, err := s.sessions.Start(ctx, w, res.Token, res.UserID); err != nil {
		logger.ErrorContext(ctx, "Failed to start session",
			log.FieldUserID, res.UserID,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err.Error())
		v.Error = "Could not start your session. Please try again."
		s.renderPage(w, r, http.StatusInternalServerError, "login", "Login", "", v)
		return
	}
	s.appMetrics.logins.Add(1)
	session.Redirect(w, r, "/dashboard")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	c, err := parseCredentials(r.PostForm, true)
	v := authView{Name: c.Name, Email: c.Email}
	if err != nil {
		v.Error = missingCredentialsMessage
		s.renderPage(w, r, http.StatusUnprocessableEntity, "register", "Register", "", v)
		return
	}

	if err := s.auth.Register(ctx, c.Name, c.Email, c.Password); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Registration failed",
			log.FieldOperation, log.OpRegister,
			log.FieldErrorType, string(api.Classify(err)),
			log.FieldError, err.Error())
		v.Error = api.Message(err, "Registration failed. Please try again.")
		s.renderPage(w, r, statusFor(err), "register", "Register", "", v)
		return
	}
	session.Redirect(w, r, "/?registered=1")
}

// handleLogout deletes the session and its view state. It is not guarded so
// a stale cookie can always be cleared.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.sessions.Load(r); ok {
		s.workspaces.Forget(sess.ID)
	}
	if err := s.sessions.End(w, r); err != nil && !errors.Is(err, session.ErrNotFound) {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to end session",
			log.FieldOperation, log.OpLogout,
			log.FieldError, err.Error())
	}
	session.Redirect(w, r, s.sessions.LoginPath())
}

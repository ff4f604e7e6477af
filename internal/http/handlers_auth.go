package http

import (
	"errors"
	"net/http"

	"academy/internal/core"
	applog "academy/internal/log"
)

type loginView struct {
	Username string
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", "Login", loginView{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login", "Login", loginView{Error: "Invalid request"})
		return
	}
	ip := s.securityDetector.ExtractClientIP(r)
	username := r.PostForm.Get("username")
	remember := r.PostForm.Get("remember_me") != ""

	sess, err := s.Gate.Login(r.Context(), ip, username, r.PostForm.Get("password"), remember)
	if err != nil {
		view := loginView{Username: core.SanitizeInput(username, 50)}
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, core.ErrLockedOut):
			view.Error = "Too many attempts. Please wait 5 minutes."
			status = http.StatusTooManyRequests
		case errors.Is(err, core.ErrInvalidCredentials):
			view.Error = "Invalid username or password"
		case core.IsValidation(err):
			view.Error = "Please enter username and password"
			status = http.StatusBadRequest
		default:
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Login failed",
				applog.FieldOperation, applog.OpLogin,
				applog.FieldError, err)
			view.Error = genericError
			status = http.StatusInternalServerError
		}
		s.render(w, r, status, "login", "Login", view)
		return
	}

	s.setSessionCookie(w, sess, remember)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.Gate.Logout(r.Context(), c.Value); err != nil {
			s.logger.WarnContext(r.Context(), "Logout failed", applog.FieldError, err)
		}
	}
	s.clearCookie(w, sessionCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

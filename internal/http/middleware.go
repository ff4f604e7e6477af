package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"academy/internal/auth"
	"academy/internal/core"
	applog "academy/internal/log"
)

const (
	sessionCookie = "academy_session"
	flashCookie   = "academy_flash"
)

type ctxKey string

const sessionKey ctxKey = "session"

// requireLogin resolves the session cookie. Anonymous page requests go back
// to the login form; XHR requests get a 401.
func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.currentSession(r)
		if !ok {
			if isXHR(r) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "Please log in again"})
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		ctx = applog.Enrich(ctx, applog.FieldUserID, sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) currentSession(r *http.Request) (auth.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return auth.Session{}, false
	}
	sess, err := s.Gate.Session(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logger.ErrorContext(r.Context(), "Session lookup failed", applog.FieldError, err)
		}
		return auth.Session{}, false
	}
	return sess, true
}

func sessionFrom(ctx context.Context) auth.Session {
	sess, _ := ctx.Value(sessionKey).(auth.Session)
	return sess
}

// setSessionCookie issues the session cookie. Without remember-me it is a
// browser-session cookie; the server still expires it after the session TTL.
func (s *Server) setSessionCookie(w http.ResponseWriter, sess auth.Session, remember bool) {
	c := &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		c.Expires = sess.ExpiresAt
		c.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	http.SetCookie(w, c)
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

const (
	flashSuccess = "success"
	flashError   = "error"
	flashInfo    = "info"
)

func (s *Server) flash(w http.ResponseWriter, kind, message string) {
	raw, err := json.Marshal([]Flash{{Kind: kind, Message: message}})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlashes reads and clears pending flash messages.
func (s *Server) takeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	s.clearCookie(w, flashCookie)
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var out []Flash
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func isXHR(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// Package auth guards the application behind a single-role login: a per-IP
// lockout, bcrypt credential checks and server-side sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"academy/internal/core"
	applog "academy/internal/log"
	"academy/internal/store"
)

const (
	DefaultSessionTTL  = 8 * time.Hour
	DefaultRememberTTL = 30 * 24 * time.Hour
	maxUsernameLen     = 50
)

type GateConfig struct {
	SessionTTL  time.Duration
	RememberTTL time.Duration
}

// Gate checks credentials and issues sessions.
type Gate struct {
	users    store.UserQueries
	limiter  *LoginLimiter
	sessions SessionStore
	config   GateConfig
	logger   *applog.Logger
	now      func() time.Time
}

func NewGate(users store.UserQueries, limiter *LoginLimiter, sessions SessionStore, config GateConfig, logger *applog.Logger) *Gate {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.RememberTTL <= 0 {
		config.RememberTTL = DefaultRememberTTL
	}
	if logger == nil {
		logger = applog.NewWithLevel(applog.ComponentAuth, applog.ParseLevel(""))
	}
	return &Gate{
		users:    users,
		limiter:  limiter,
		sessions: sessions,
		config:   config,
		logger:   logger.WithComponent(applog.ComponentAuth),
		now:      time.Now,
	}
}

// Login verifies the credentials of a client. A locked-out ip is rejected
// with core.ErrLockedOut before the credentials are looked at.
func (g *Gate) Login(ctx context.Context, ip, username, password string, remember bool) (Session, error) {
	if g.limiter.Locked(ip) {
		g.logger.WarnContext(ctx, "Login rejected, client locked out", applog.FieldClientIP, ip)
		return Session{}, core.ErrLockedOut
	}

	username = core.SanitizeInput(username, maxUsernameLen)
	if username == "" || password == "" {
		return Session{}, core.NewValidationError(errors.New("username and password are required"))
	}

	user, err := g.users.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if err != nil || !CheckPassword(user.PasswordHash, password) {
		if g.limiter.Fail(ip) {
			g.logger.WarnContext(ctx, "Client locked out after failed logins", applog.FieldClientIP, ip)
		}
		return Session{}, core.ErrInvalidCredentials
	}

	g.limiter.Reset(ip)
	ttl := g.config.SessionTTL
	if remember {
		ttl = g.config.RememberTTL
	}
	sess := newSession(user, ttl, g.now())
	if err := g.sessions.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	g.logger.InfoContext(ctx, "User logged in",
		applog.FieldUserID, user.ID,
		applog.FieldOperation, applog.OpLogin,
	)
	return sess, nil
}

// Session resolves a token; unknown and expired tokens yield core.ErrNotFound.
func (g *Gate) Session(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, core.ErrNotFound
	}
	s, err := g.sessions.Get(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(g.now()) {
		g.sessions.Delete(ctx, token)
		return Session{}, core.ErrNotFound
	}
	return s, nil
}

func (g *Gate) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return g.sessions.Delete(ctx, token)
}

// Rename updates the username carried by the user's live sessions.
func (g *Gate) Rename(ctx context.Context, userID int64, username string) error {
	return g.sessions.Touch(ctx, userID, username)
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"academy/internal/core"
	"academy/internal/storage/memory"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, clock *fakeClock) *LoginLimiter {
	t.Helper()
	l := NewLoginLimiter(DefaultLimiterConfig())
	l.now = clock.now
	t.Cleanup(l.Stop)
	return l
}

func TestLoginLimiterLocksAfterMaxAttempts(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	l := newTestLimiter(t, clock)

	for i := 1; i < 5; i++ {
		if l.Fail("1.2.3.4") {
			t.Fatalf("attempt %d should not lock", i)
		}
		if l.Locked("1.2.3.4") {
			t.Fatalf("locked after %d attempts", i)
		}
	}
	if !l.Fail("1.2.3.4") {
		t.Fatal("fifth failure should lock")
	}
	if !l.Locked("1.2.3.4") {
		t.Fatal("expected lockout")
	}
	if l.Locked("5.6.7.8") {
		t.Fatal("other clients must not be affected")
	}

	clock.advance(299 * time.Second)
	if !l.Locked("1.2.3.4") {
		t.Fatal("lockout should last five minutes")
	}
	clock.advance(time.Second)
	if l.Locked("1.2.3.4") {
		t.Fatal("lockout should expire")
	}
	if got := l.Attempts("1.2.3.4"); got != 0 {
		t.Fatalf("attempts should reset after expiry, got %d", got)
	}
}

func TestLoginLimiterReset(t *testing.T) {
	l := newTestLimiter(t, &fakeClock{t: time.Now()})
	l.Fail("ip")
	l.Fail("ip")
	l.Reset("ip")
	if got := l.Attempts("ip"); got != 0 {
		t.Fatalf("attempts = %d after reset", got)
	}
}

func TestLoginLimiterCleanup(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	l := newTestLimiter(t, clock)
	l.Fail("idle")
	for i := 0; i < 5; i++ {
		l.Fail("locked")
	}

	clock.advance(11 * time.Minute)
	l.Fail("recent")
	l.cleanupStaleEntries()
	if got := l.ActiveClients(); got != 1 {
		t.Fatalf("expected only the recent client to remain, got %d", got)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "secret") {
		t.Fatal("password should match")
	}
	if CheckPassword(hash, "other") || CheckPassword("not-a-hash", "secret") {
		t.Fatal("unexpected match")
	}
}

func newTestGate(t *testing.T) (*Gate, *fakeClock) {
	t.Helper()
	s := memory.New()
	hash, err := HashPassword("admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertUser(context.Background(), core.User{Username: "admin", PasswordHash: hash}); err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	sessions := NewMemorySessions()
	sessions.now = clock.now
	g := NewGate(s, newTestLimiter(t, clock), sessions, GateConfig{}, nil)
	g.now = clock.now
	return g, clock
}

func TestGateLogin(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		username string
		password string
		remember bool
		wantErr  error
		wantTTL  time.Duration
	}{
		{"valid", "admin", "admin", false, nil, 8 * time.Hour},
		{"remember me", "  admin ", "admin", true, nil, 30 * 24 * time.Hour},
		{"wrong password", "admin", "nope", false, core.ErrInvalidCredentials, 0},
		{"unknown user", "ghost", "admin", false, core.ErrInvalidCredentials, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, clock := newTestGate(t)
			sess, err := g.Login(ctx, "10.0.0.1", tt.username, tt.password, tt.remember)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if sess.Username != "admin" || sess.Token == "" {
				t.Fatalf("unexpected session %+v", sess)
			}
			if got := sess.ExpiresAt.Sub(clock.now()); got != tt.wantTTL {
				t.Fatalf("ttl = %v, want %v", got, tt.wantTTL)
			}
			if _, err := g.Session(ctx, sess.Token); err != nil {
				t.Fatalf("session lookup: %v", err)
			}
		})
	}
}

func TestGateLockoutPrecedesCredentials(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestGate(t)
	for i := 0; i < 5; i++ {
		if _, err := g.Login(ctx, "ip", "admin", "bad", false); !errors.Is(err, core.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := g.Login(ctx, "ip", "admin", "admin", false); !errors.Is(err, core.ErrLockedOut) {
		t.Fatalf("correct password during lockout: %v", err)
	}
	clock.advance(5 * time.Minute)
	if _, err := g.Login(ctx, "ip", "admin", "admin", false); err != nil {
		t.Fatalf("login after lockout: %v", err)
	}
}

func TestGateSuccessClearsCounter(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGate(t)
	g.Login(ctx, "ip", "admin", "bad", false)
	g.Login(ctx, "ip", "admin", "bad", false)
	if _, err := g.Login(ctx, "ip", "admin", "admin", false); err != nil {
		t.Fatal(err)
	}
	if got := g.limiter.Attempts("ip"); got != 0 {
		t.Fatalf("attempts = %d after success", got)
	}
}

func TestSessionExpiryAndRename(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestGate(t)
	sess, err := g.Login(ctx, "ip", "admin", "admin", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Rename(ctx, sess.UserID, "boss"); err != nil {
		t.Fatal(err)
	}
	got, _ := g.Session(ctx, sess.Token)
	if got.Username != "boss" {
		t.Fatalf("username not updated: %+v", got)
	}

	clock.advance(8 * time.Hour)
	if _, err := g.Session(ctx, sess.Token); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expired session should be gone, got %v", err)
	}

	sess, _ = g.Login(ctx, "ip", "admin", "admin", false)
	if err := g.Logout(ctx, sess.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Session(ctx, sess.Token); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("logged out session still valid: %v", err)
	}
}

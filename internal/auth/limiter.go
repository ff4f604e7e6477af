package auth

import (
	"sync"
	"time"
)

// LoginLimiter counts failed logins per client IP and locks an IP out for
// a fixed window once the maximum is reached. State is process-local.
type LoginLimiter struct {
	mu           sync.Mutex
	clients      map[string]*attemptInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	maxAttempts     int
	lockout         time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

type attemptInfo struct {
	attempts    int
	lockedUntil time.Time
	lastFailure time.Time
}

// LimiterConfig holds login limiter configuration
type LimiterConfig struct {
	MaxAttempts     int
	Lockout         time.Duration
	CleanupInterval time.Duration
}

// DefaultLimiterConfig locks an IP for five minutes after five failures
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxAttempts:     5,
		Lockout:         5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// NewLoginLimiter creates a limiter and starts its cleanup goroutine
func NewLoginLimiter(config LimiterConfig) *LoginLimiter {
	def := DefaultLimiterConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.Lockout <= 0 {
		config.Lockout = def.Lockout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	l := &LoginLimiter{
		clients:         make(map[string]*attemptInfo),
		stopCleanup:     make(chan struct{}),
		maxAttempts:     config.MaxAttempts,
		lockout:         config.Lockout,
		cleanupInterval: config.CleanupInterval,
		now:             time.Now,
	}
	go l.startCleanup()
	return l
}

// Locked reports whether ip is inside its lockout window. An expired
// lockout resets the counter.
func (l *LoginLimiter) Locked(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.clients[ip]
	if !ok || info.lockedUntil.IsZero() {
		return false
	}
	if l.now().Before(info.lockedUntil) {
		return true
	}
	delete(l.clients, ip)
	return false
}

// Fail records a failed attempt and returns true when it triggered a lockout.
func (l *LoginLimiter) Fail(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	info, ok := l.clients[ip]
	if !ok {
		info = &attemptInfo{}
		l.clients[ip] = info
	}
	info.attempts++
	info.lastFailure = now
	if info.attempts >= l.maxAttempts {
		info.lockedUntil = now.Add(l.lockout)
		return true
	}
	return false
}

// Reset forgets ip after a successful login.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, ip)
}

// Attempts returns the current failure count for ip.
func (l *LoginLimiter) Attempts(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if info, ok := l.clients[ip]; ok {
		return info.attempts
	}
	return 0
}

func (l *LoginLimiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops entries that are neither locked nor recently failing
func (l *LoginLimiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.cleanupInterval)
	for ip, info := range l.clients {
		if now.Before(info.lockedUntil) {
			continue
		}
		if info.lastFailure.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// ActiveClients returns the number of tracked IPs
func (l *LoginLimiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop ends the cleanup goroutine
func (l *LoginLimiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}

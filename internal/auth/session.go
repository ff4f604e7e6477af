package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"academy/internal/core"
)

// Session is a logged-in operator.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

func newSession(user core.User, ttl time.Duration, now time.Time) Session {
	return Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: now.Add(ttl),
	}
}

// SessionStore keeps sessions by token. Get returns core.ErrNotFound for
// unknown or expired tokens.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
	// Touch renames the user on every session they hold.
	Touch(ctx context.Context, userID int64, username string) error
}

// MemorySessions is the default process-local session store.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemorySessions) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

func (m *MemorySessions) Get(_ context.Context, token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return Session{}, core.ErrNotFound
	}
	if s.Expired(m.now()) {
		delete(m.sessions, token)
		return Session{}, core.ErrNotFound
	}
	return s, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemorySessions) Touch(_ context.Context, userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.sessions {
		if s.UserID == userID {
			s.Username = username
			m.sessions[token] = s
		}
	}
	return nil
}

const (
	redisSessionPrefix = "academy:session:"
	redisUserPrefix    = "academy:user_sessions:"
)

// RedisSessions stores sessions as JSON values that expire with the session.
// A per-user set indexes tokens for Touch.
type RedisSessions struct {
	client *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

// DialRedis parses url and checks the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisSessions) Save(ctx context.Context, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	userKey := fmt.Sprintf("%s%d", redisUserPrefix, s.UserID)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisSessionPrefix+s.Token, data, ttl)
		p.SAdd(ctx, userKey, s.Token)
		p.Expire(ctx, userKey, ttl)
		return nil
	})
	return err
}

func (r *RedisSessions) Get(ctx context.Context, token string) (Session, error) {
	val, err := r.client.Get(ctx, redisSessionPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, core.ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *RedisSessions) Delete(ctx context.Context, token string) error {
	s, err := r.Get(ctx, token)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, redisSessionPrefix+token)
		p.SRem(ctx, fmt.Sprintf("%s%d", redisUserPrefix, s.UserID), token)
		return nil
	})
	return err
}

func (r *RedisSessions) Touch(ctx context.Context, userID int64, username string) error {
	userKey := fmt.Sprintf("%s%d", redisUserPrefix, userID)
	tokens, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}
	for _, token := range tokens {
		s, err := r.Get(ctx, token)
		if errors.Is(err, core.ErrNotFound) {
			r.client.SRem(ctx, userKey, token)
			continue
		}
		if err != nil {
			return err
		}
		s.Username = username
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Package session maps browser sessions to the report being edited.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fmuoria/assessment-report-agent/internal/config"
)

// ErrNoReport is returned when a session has no active report
var ErrNoReport = errors.New("session has no active report")

// Store remembers the active report of each browser session
type Store interface {
	ActiveReport(ctx context.Context, sessionID string) (uuid.UUID, error)
	SetActiveReport(ctx context.Context, sessionID string, reportID uuid.UUID) error
	Clear(ctx context.Context, sessionID string) error
}

// NewID returns a fresh session id
func NewID() string {
	return uuid.NewString()
}

// New builds the configured store
func New(cfg config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return NewRedisStore(client, cfg.TTL), nil
	case "memory", "":
		return NewMemoryStore(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// RedisStore keeps sessions in redis with a sliding TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a redis backed store
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(sessionID string) string {
	return "bedomning:session:" + sessionID
}

// ActiveReport returns the report id of a session and refreshes its TTL
func (s *RedisStore) ActiveReport(ctx context.Context, sessionID string) (uuid.UUID, error) {
	val, err := s.client.Get(ctx, redisKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrNoReport
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read session: %w", err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, ErrNoReport
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, redisKey(sessionID), s.ttl).Err(); err != nil {
			return uuid.Nil, fmt.Errorf("failed to refresh session: %w", err)
		}
	}
	return id, nil
}

// SetActiveReport stores the report id of a session
func (s *RedisStore) SetActiveReport(ctx context.Context, sessionID string, reportID uuid.UUID) error {
	if err := s.client.Set(ctx, redisKey(sessionID), reportID.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear forgets the session
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

type memoryEntry struct {
	reportID uuid.UUID
	expires  time.Time
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore creates an in-memory store. A zero ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// ActiveReport returns the report id of a session and refreshes its TTL
func (s *MemoryStore) ActiveReport(_ context.Context, sessionID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return uuid.Nil, ErrNoReport
	}
	if s.ttl > 0 {
		if s.now().After(e.expires) {
			delete(s.entries, sessionID)
			return uuid.Nil, ErrNoReport
		}
		e.expires = s.now().Add(s.ttl)
		s.entries[sessionID] = e
	}
	return e.reportID, nil
}

// SetActiveReport stores the report id of a session
func (s *MemoryStore) SetActiveReport(_ context.Context, sessionID string, reportID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = memoryEntry{reportID: reportID, expires: s.now().Add(s.ttl)}
	return nil
}

// Clear forgets the session
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/assessment-report-agent/internal/config"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(time.Hour),
		"redis":  NewRedisStore(client, time.Hour),
	}
}

func TestStoresBehaveTheSame(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sid := NewID()

			_, err := s.ActiveReport(ctx, sid)
			assert.ErrorIs(t, err, ErrNoReport)

			id := uuid.New()
			require.NoError(t, s.SetActiveReport(ctx, sid, id))

			got, err := s.ActiveReport(ctx, sid)
			require.NoError(t, err)
			assert.Equal(t, id, got)

			other := uuid.New()
			require.NoError(t, s.SetActiveReport(ctx, sid, other))
			got, err = s.ActiveReport(ctx, sid)
			require.NoError(t, err)
			assert.Equal(t, other, got)

			require.NoError(t, s.Clear(ctx, sid))
			_, err = s.ActiveReport(ctx, sid)
			assert.ErrorIs(t, err, ErrNoReport)
		})
	}
}

func TestRedisStoreExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, s.SetActiveReport(ctx, "sid", uuid.New()))

	mr.FastForward(2 * time.Minute)
	_, err := s.ActiveReport(ctx, "sid")
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, s.SetActiveReport(ctx, "sid", uuid.New()))

	now = now.Add(2 * time.Minute)
	_, err := s.ActiveReport(ctx, "sid")
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(config.SessionConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(config.SessionConfig{Backend: "etcd"})
	assert.Error(t, err)
}

type failingExpire struct{}

func (failingExpire) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (failingExpire) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "expire" {
			err := errors.New("expire refused")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failingExpire) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStoreReportsRefreshFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	client.AddHook(failingExpire{})

	s := NewRedisStore(client, time.Hour)
	sid := NewID()
	require.NoError(t, s.SetActiveReport(context.Background(), sid, uuid.New()))

	_, err := s.ActiveReport(context.Background(), sid)
	assert.ErrorContains(t, err, "failed to refresh session")
	assert.ErrorContains(t, err, "expire refused")
}

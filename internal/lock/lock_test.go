package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l Locker, key string) {
	t.Helper()
	ctx := context.Background()

	first, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, first.Release(ctx))

	second, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	// A stale lease must not release someone else's lock.
	require.NoError(t, first.Release(ctx))
	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	require.NoError(t, second.Release(ctx))
}

func TestMemoryLocker(t *testing.T) {
	exerciseLocker(t, NewMemoryLocker(), "enroll:1")
}

func TestMemoryLocker_Expires(t *testing.T) {
	m := NewMemoryLocker()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = m.Acquire(context.Background(), "k", time.Second)
	assert.NoError(t, err)
}

func TestNilLeaseRelease(t *testing.T) {
	var l *Lease
	assert.NoError(t, l.Release(context.Background()))
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := OpenRedis(context.Background(), addr)
	require.NoError(t, err)
	defer rdb.Close()

	l := NewRedisLocker(rdb)
	l.Prefix = "sequencer:test:" + t.Name() + ":"
	exerciseLocker(t, l, "enroll:1")
}

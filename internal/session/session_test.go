package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lynx/internal/apperr"
)

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
)

type handshake struct {
	OrgID       int64  `json:"org_id"`
	RedirectURI string `json:"redirect_uri"`
}

// harness exposes a store plus a way to move its clock forward.
type harness struct {
	store   Store
	advance func(time.Duration)
}

func memoryHarness(t *testing.T) harness {
	m := NewMemory()
	var mu sync.Mutex
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return harness{store: m, advance: func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}}
}

func redisHarness(t *testing.T) harness {
	mr := miniredis.RunT(t)
	r, err := NewRedis(Config{Address: mr.Addr(), Prefix: "lynx:session:"})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return harness{store: r, advance: mr.FastForward}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, h harness)) {
	for name, build := range map[string]func(*testing.T) harness{
		"memory": memoryHarness,
		"redis":  redisHarness,
	} {
		t.Run(name, func(t *testing.T) { fn(t, build(t)) })
	}
}

func TestPutGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		want := handshake{OrgID: 3, RedirectURI: "https://app.example.com/settings"}
		require.NoError(t, h.store.Put(ctx, "abc", want, time.Minute))

		var got handshake
		require.NoError(t, h.store.Get(ctx, "abc", &got))
		assert.Equal(t, want, got)

		// Get does not consume.
		require.NoError(t, h.store.Get(ctx, "abc", &got))
	})
}

func TestTakeConsumes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		require.NoError(t, h.store.Put(ctx, "abc", handshake{OrgID: 1}, time.Minute))

		var got handshake
		require.NoError(t, h.store.Take(ctx, "abc", &got))
		assert.Equal(t, int64(1), got.OrgID)

		err := h.store.Take(ctx, "abc", &got)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestExpiry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		require.NoError(t, h.store.Put(ctx, "abc", handshake{OrgID: 1}, time.Minute))

		h.advance(59 * time.Second)
		var got handshake
		require.NoError(t, h.store.Get(ctx, "abc", &got))

		h.advance(2 * time.Second)
		assert.ErrorIs(t, h.store.Get(ctx, "abc", &got), apperr.ErrNotFound)
		assert.ErrorIs(t, h.store.Delete(ctx, "abc"), apperr.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		require.NoError(t, h.store.Put(ctx, "abc", "v", time.Minute))
		require.NoError(t, h.store.Delete(ctx, "abc"))

		var got string
		assert.ErrorIs(t, h.store.Get(ctx, "abc", &got), apperr.ErrNotFound)
		assert.ErrorIs(t, h.store.Delete(ctx, "missing"), apperr.ErrNotFound)
	})
}

func TestDecodeError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		require.NoError(t, h.store.Put(ctx, "abc", "not an object", time.Minute))

		var got handshake
		err := h.store.Get(ctx, "abc", &got)
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestMemory_PutSweepsExpired(t *testing.T) {
	h := memoryHarness(t)
	m := h.store.(*Memory)
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "old", 1, time.Second))
	h.advance(time.Minute)
	require.NoError(t, m.Put(ctx, "new", 2, time.Second))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.entries, 1)
}

func TestRedis_KeysArePrefixed(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(Config{Address: mr.Addr(), Prefix: "lynx:session:"})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Put(context.Background(), "abc", handshake{OrgID: 9}, time.Minute))
	assert.True(t, mr.Exists("lynx:session:abc"))
	assert.Equal(t, time.Minute, mr.TTL("lynx:session:abc"))
}

func TestNewRedis(t *testing.T) {
	_, err := NewRedis(Config{})
	assert.ErrorIs(t, err, ErrEmptyAddress)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(Config{Address: addr})
	assert.Error(t, err)
}

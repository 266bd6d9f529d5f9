package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmap/internal/config"
)

type fakeBackend struct {
	name string

	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	setErr  error
	deletes []string
	closed  bool
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, entries: make(map[string][]byte)}
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

func (f *fakeBackend) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, prefix)
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			delete(f.entries, k)
		}
	}
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func probeOf(b Backend, err error) Probe {
	return Probe{
		Name: "fake",
		Connect: func(ctx context.Context, _ config.Settings) (Backend, error) {
			if _, ok := ctx.Deadline(); !ok {
				return nil, errors.New("probe without deadline")
			}
			return b, err
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func settingsWith(objectCache bool, redisURL string) config.Settings {
	s := config.Default()
	s.Cache.ObjectCacheEnabled = objectCache
	s.Cache.RedisURL = redisURL
	return s
}

func TestLayer_Reconfigure(t *testing.T) {
	tests := []struct {
		name        string
		objectCache bool
		redisErr    error
		memcacheErr error
		want        string
	}{
		{name: "object cache disabled uses durable", objectCache: false, want: "durable"},
		{name: "first reachable probe wins", objectCache: true, want: "redis"},
		{name: "falls through unreachable probe", objectCache: true, redisErr: errors.New("refused"), want: "memcached"},
		{name: "falls back to durable", objectCache: true, redisErr: errors.New("refused"), memcacheErr: errors.New("refused"), want: "durable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			durable := newFakeBackend("durable")
			probes := []Probe{
				probeOf(newFakeBackend("redis"), tt.redisErr),
				probeOf(newFakeBackend("memcached"), tt.memcacheErr),
			}
			layer := NewLayer(durable, probes, testLogger())

			// Act
			layer.Reconfigure(context.Background(), settingsWith(tt.objectCache, "redis://a"))

			// Assert
			assert.Equal(t, tt.want, layer.Backend())
		})
	}
}

func TestLayer_ReconfigureOnlyOnFingerprintChange(t *testing.T) {
	// Arrange
	calls := 0
	probe := Probe{
		Name: "redis",
		Connect: func(context.Context, config.Settings) (Backend, error) {
			calls++
			return newFakeBackend("redis"), nil
		},
	}
	layer := NewLayer(newFakeBackend("durable"), []Probe{probe}, testLogger())
	s := settingsWith(true, "redis://a")

	// Act
	layer.Reconfigure(context.Background(), s)
	s.Publication.Name = "Other"
	layer.Reconfigure(context.Background(), s)
	s.Cache.RedisURL = "redis://b"
	layer.Reconfigure(context.Background(), s)

	// Assert
	assert.Equal(t, 2, calls)
}

func TestLayer_GetSet(t *testing.T) {
	durable := newFakeBackend("durable")
	layer := NewLayer(durable, nil, testLogger())

	_, ok := layer.Get(context.Background(), "page-1")
	require.False(t, ok)

	require.NoError(t, layer.Set(context.Background(), "page-1", []byte("<urlset/>"), time.Minute))
	got, ok := layer.Get(context.Background(), "page-1")

	require.True(t, ok)
	assert.Equal(t, []byte("<urlset/>"), got)
	assert.Contains(t, durable.entries, Namespace+"page-1")
}

func TestLayer_ReadErrorIsMiss(t *testing.T) {
	durable := newFakeBackend("durable")
	durable.entries[Namespace+"index"] = []byte("x")
	durable.getErr = errors.New("connection reset")
	layer := NewLayer(durable, nil, testLogger())

	_, ok := layer.Get(context.Background(), "index")

	assert.False(t, ok)
}

func TestLayer_Ping(t *testing.T) {
	durable := newFakeBackend("durable")
	layer := NewLayer(durable, nil, testLogger())
	require.NoError(t, layer.Ping(context.Background()))

	durable.getErr = errors.New("connection reset")
	err := layer.Ping(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "durable")
}

func TestLayer_SetErrorIsReturned(t *testing.T) {
	durable := newFakeBackend("durable")
	durable.setErr = errors.New("disk full")
	layer := NewLayer(durable, nil, testLogger())

	err := layer.Set(context.Background(), "index", []byte("x"), time.Minute)

	assert.ErrorContains(t, err, "disk full")
}

func TestLayer_InvalidateAllCoversPreviousBackends(t *testing.T) {
	// Arrange
	durable := newFakeBackend("durable")
	redisA := newFakeBackend("redis")
	redisB := newFakeBackend("redis")
	next := []Backend{redisA, redisB}
	probe := Probe{
		Name: "redis",
		Connect: func(context.Context, config.Settings) (Backend, error) {
			b := next[0]
			next = next[1:]
			return b, nil
		},
	}
	layer := NewLayer(durable, []Probe{probe}, testLogger())
	ctx := context.Background()

	layer.Reconfigure(ctx, settingsWith(true, "redis://a"))
	require.NoError(t, layer.Set(ctx, "page-1", []byte("a"), time.Minute))
	layer.Reconfigure(ctx, settingsWith(true, "redis://b"))
	require.NoError(t, layer.Set(ctx, "page-1", []byte("b"), time.Minute))
	durable.entries[Namespace+"index"] = []byte("stale")
	durable.entries["unrelated"] = []byte("keep")

	// Act
	err := layer.InvalidateAll(ctx)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, redisA.entries)
	assert.Empty(t, redisB.entries)
	assert.Equal(t, map[string][]byte{"unrelated": []byte("keep")}, durable.entries)
	assert.Equal(t, []string{Namespace}, durable.deletes)
}

func TestLayer_ReconfigureClosesSupersededBackends(t *testing.T) {
	// Arrange: every address change connects a new redis client.
	durable := newFakeBackend("durable")
	var clients []*fakeBackend
	probe := Probe{
		Name: "redis",
		Connect: func(context.Context, config.Settings) (Backend, error) {
			b := newFakeBackend("redis")
			clients = append(clients, b)
			return b, nil
		},
	}
	layer := NewLayer(durable, []Probe{probe}, testLogger())
	ctx := context.Background()

	// Act
	for _, addr := range []string{"redis://a", "redis://b", "redis://c", "redis://d"} {
		layer.Reconfigure(ctx, settingsWith(true, addr))
	}
	require.NoError(t, layer.InvalidateAll(ctx))

	// Assert
	require.Len(t, clients, 4)
	assert.True(t, clients[0].closed)
	assert.True(t, clients[1].closed)
	assert.False(t, clients[2].closed, "last superseded client is kept for invalidation")
	assert.False(t, clients[3].closed)
	assert.Len(t, layer.previous, 1)
	assert.Empty(t, clients[0].deletes)
	assert.Equal(t, []string{Namespace}, clients[2].deletes)
	assert.Equal(t, []string{Namespace}, clients[3].deletes)
}

func TestLayer_ReconfigureBackToRetainedBackendKeepsItOpen(t *testing.T) {
	durable := newFakeBackend("durable")
	redis := newFakeBackend("redis")
	layer := NewLayer(durable, []Probe{probeOf(redis, nil)}, testLogger())
	ctx := context.Background()

	layer.Reconfigure(ctx, settingsWith(true, "redis://a"))
	layer.Reconfigure(ctx, settingsWith(false, "redis://a"))
	layer.Reconfigure(ctx, settingsWith(true, "redis://a"))
	layer.Reconfigure(ctx, settingsWith(false, "redis://a"))

	assert.Equal(t, "durable", layer.Backend())
	assert.False(t, redis.closed)
	require.NoError(t, layer.Close())
	assert.True(t, redis.closed)
}

func TestLayer_Close(t *testing.T) {
	durable := newFakeBackend("durable")
	redis := newFakeBackend("redis")
	layer := NewLayer(durable, []Probe{probeOf(redis, nil)}, testLogger())
	layer.Reconfigure(context.Background(), settingsWith(true, "redis://a"))

	require.NoError(t, layer.Close())

	assert.True(t, durable.closed)
	assert.True(t, redis.closed)
}

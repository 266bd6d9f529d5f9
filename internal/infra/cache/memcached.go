package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"newsmap/internal/config"
	cachelayer "newsmap/internal/usecase/cache"
)

// envelopeSize is the length of the big-endian expiry prefix on every value.
const envelopeSize = 8

// memcacheClient is the subset of *memcache.Client the backend uses.
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Add(item *memcache.Item) error
	Increment(key string, delta uint64) (uint64, error)
	Ping() error
}

// Memcached stores documents in memcached. Memcached cannot enumerate keys,
// so every key embeds a generation number and prefix deletion bumps it,
// orphaning all keys written through this backend. Expiry is in whole
// seconds server-side, so values carry their exact expiry in an envelope.
type Memcached struct {
	client memcacheClient
	genKey string
	now    func() time.Time
}

// NewMemcached creates a backend over client. The generation counter lives
// under namespace+"generation".
func NewMemcached(client memcacheClient, namespace string) *Memcached {
	return &Memcached{client: client, genKey: namespace + "generation", now: time.Now}
}

// DialMemcached connects to addr and checks that it answers.
func DialMemcached(ctx context.Context, addr string) (*Memcached, error) {
	client := memcache.New(addr)
	if deadline, ok := ctx.Deadline(); ok {
		client.Timeout = time.Until(deadline)
	}
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("DialMemcached: failed to connect to memcached: %w", err)
	}
	client.Timeout = time.Second
	return NewMemcached(client, cachelayer.Namespace), nil
}

// MemcachedProbe reaches the server configured in settings.
func MemcachedProbe() cachelayer.Probe {
	return cachelayer.Probe{
		Name: "memcached",
		Connect: func(ctx context.Context, s config.Settings) (cachelayer.Backend, error) {
			m, err := DialMemcached(ctx, s.Cache.MemcachedAddr)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	}
}

func (m *Memcached) Name() string { return "memcached" }

func (m *Memcached) Get(_ context.Context, key string) ([]byte, bool, error) {
	gen, err := m.generation()
	if err != nil {
		return nil, false, err
	}
	item, err := m.client.Get(versioned(key, gen))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if len(item.Value) < envelopeSize {
		return nil, false, nil
	}
	expires := int64(binary.BigEndian.Uint64(item.Value[:envelopeSize]))
	if m.now().UnixNano() >= expires {
		return nil, false, nil
	}
	return item.Value[envelopeSize:], true, nil
}

func (m *Memcached) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	gen, err := m.generation()
	if err != nil {
		return err
	}
	buf := make([]byte, envelopeSize+len(value))
	binary.BigEndian.PutUint64(buf, uint64(m.now().Add(ttl).UnixNano()))
	copy(buf[envelopeSize:], value)

	err = m.client.Set(&memcache.Item{
		Key:        versioned(key, gen),
		Value:      buf,
		Expiration: int32(math.Max(1, math.Ceil(ttl.Seconds()))),
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// DeletePrefix invalidates every key of this backend regardless of prefix.
func (m *Memcached) DeletePrefix(_ context.Context, _ string) error {
	_, err := m.client.Increment(m.genKey, 1)
	if errors.Is(err, memcache.ErrCacheMiss) {
		// A missing counter is recreated from the clock, which already
		// differs from every generation issued before it was lost.
		_, err = m.generation()
	}
	if err != nil {
		return fmt.Errorf("failed to bump generation: %w", err)
	}
	return nil
}

// Close is a no-op: the client holds only idle connections.
func (m *Memcached) Close() error { return nil }

func (m *Memcached) generation() (uint64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		item, err := m.client.Get(m.genKey)
		if err == nil {
			gen, perr := strconv.ParseUint(string(item.Value), 10, 64)
			if perr != nil {
				return 0, fmt.Errorf("corrupt generation %q: %w", item.Value, perr)
			}
			return gen, nil
		}
		if !errors.Is(err, memcache.ErrCacheMiss) {
			return 0, fmt.Errorf("failed to read generation: %w", err)
		}

		seed := uint64(m.now().UnixNano())
		err = m.client.Add(&memcache.Item{Key: m.genKey, Value: []byte(strconv.FormatUint(seed, 10))})
		if err == nil {
			return seed, nil
		}
		if !errors.Is(err, memcache.ErrNotStored) {
			return 0, fmt.Errorf("failed to create generation: %w", err)
		}
		// Another writer created it first; read theirs.
	}
	return 0, errors.New("generation counter unavailable")
}

func versioned(key string, gen uint64) string {
	return key + "#" + strconv.FormatUint(gen, 10)
}

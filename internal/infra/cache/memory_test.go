package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Lifecycle(t *testing.T) {
	// Arrange
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	// Act & Assert: get after set
	require.NoError(t, m.Set(ctx, "newsmap:sitemap:page-1", []byte("a"), time.Minute))
	require.NoError(t, m.Set(ctx, "newsmap:sitemap:index", []byte("b"), time.Hour))
	require.NoError(t, m.Set(ctx, "other", []byte("c"), time.Hour))
	got, ok, err := m.Get(ctx, "newsmap:sitemap:page-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), got)

	// expiry
	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "newsmap:sitemap:page-1")
	assert.False(t, ok)

	// prefix invalidation
	require.NoError(t, m.DeletePrefix(ctx, "newsmap:sitemap:"))
	_, ok, _ = m.Get(ctx, "newsmap:sitemap:index")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "other")
	assert.True(t, ok)
}

func TestMemory_SetEvictsExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(context.Background(), "a", []byte("1"), time.Second))
	now = now.Add(2 * time.Second)
	require.NoError(t, m.Set(context.Background(), "b", []byte("2"), time.Second))

	assert.Len(t, m.entries, 1)
}

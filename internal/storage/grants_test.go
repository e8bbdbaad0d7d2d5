package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureshare/portal/internal/domain"
)

func TestMemoryGrantStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGrantStore(time.Hour)
	g := domain.DownloadGrant{FileID: "f1", Token: "t1", ExpiresAt: time.Now().Add(time.Hour), IssuedTo: "u1"}

	require.NoError(t, store.Save(ctx, g))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "f1", got.FileID)
	assert.Equal(t, "u1", got.IssuedTo)

	_, err = store.Get(ctx, "unknown")
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestMemoryGrantStore_LatestReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGrantStore(time.Hour)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, store.Save(ctx, domain.DownloadGrant{FileID: "f1", Token: "t1", ExpiresAt: exp, IssuedTo: "u1"}))
	require.NoError(t, store.Save(ctx, domain.DownloadGrant{FileID: "f1", Token: "t2", ExpiresAt: exp, IssuedTo: "u1"}))

	latest, err := store.Latest(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "t2", latest.Token)

	// the older grant is still redeemable
	_, err = store.Get(ctx, "t1")
	assert.NoError(t, err)

	_, err = store.Latest(ctx, "u2", "f1")
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestMemoryGrantStore_PurgesAfterRetention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGrantStore(10 * time.Minute)
	now := time.Date(2025, 1, 7, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, domain.DownloadGrant{FileID: "f1", Token: "old", ExpiresAt: now.Add(-5 * time.Minute)}))
	_, err := store.Get(ctx, "old")
	assert.NoError(t, err, "expired grants stay visible during retention")

	now = now.Add(time.Hour)
	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrGrantNotFound)
}

func TestMemoryGrantStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGrantStore(10 * time.Minute)
	now := time.Date(2025, 1, 7, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, domain.DownloadGrant{FileID: "f1", Token: "a", IssuedTo: "u1", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.Save(ctx, domain.DownloadGrant{FileID: "f2", Token: "b", IssuedTo: "u1", ExpiresAt: now.Add(time.Hour)}))

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	now = now.Add(30 * time.Minute)
	removed, err = store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Latest(ctx, "u1", "f1")
	assert.ErrorIs(t, err, ErrGrantNotFound)
	_, err = store.Latest(ctx, "u1", "f2")
	assert.NoError(t, err)
}

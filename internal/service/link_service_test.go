package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureshare/portal/internal/config"
	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/events"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

func TestIssue_DistinctTokensWithinLifetime(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	file := h.seedFile(t, "deck.pptx", "slides")
	sess := clientSession(true)

	first, err := h.links.Issue(ctx, sess, file.ID)
	require.NoError(t, err)
	second, err := h.links.Issue(ctx, sess, file.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	now := h.clock.Now()
	for _, g := range []*domain.DownloadGrant{first, second} {
		assert.Equal(t, file.ID, g.FileID)
		assert.Equal(t, "client-1", g.IssuedTo)
		assert.True(t, strings.HasPrefix(g.URL, "https://share.test/download/"))
		assert.True(t, strings.HasSuffix(g.URL, g.Token))
		assert.False(t, g.ExpiresAt.Before(now.Add(59*time.Minute)))
		assert.False(t, g.ExpiresAt.After(now.Add(61*time.Minute)))
	}
	assert.Equal(t, "1h 0m", h.links.Remaining(*first).String())

	// the earlier grant remains valid after a newer one is issued
	red, err := h.links.Redeem(ctx, first.Token)
	require.NoError(t, err)
	red.Content.Close()
}

func TestIssue_UnknownFile(t *testing.T) {
	h := newHarness(t)
	_, err := h.links.Issue(context.Background(), clientSession(true), "no-such-file")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestIssue_CapabilityGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	file := h.seedFile(t, "deck.pptx", "slides")

	_, err := h.links.Issue(ctx, domain.AnonymousSession(), file.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = h.links.Issue(ctx, domain.AuthenticatedSession("s-ops", opsIdentity()), file.ID)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestIssue_RequireVerified(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *config.Config) { c.Links.RequireVerified = true })
	file := h.seedFile(t, "deck.pptx", "slides")

	_, err := h.links.Issue(ctx, clientSession(false), file.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.links.Issue(ctx, clientSession(true), file.ID)
	require.NoError(t, err)
}

func TestCurrent_ReturnsLatestGrant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	file := h.seedFile(t, "deck.pptx", "slides")
	sess := clientSession(true)

	_, err := h.links.Current(ctx, sess, file.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.links.Issue(ctx, sess, file.ID)
	require.NoError(t, err)
	latest, err := h.links.Issue(ctx, sess, file.ID)
	require.NoError(t, err)

	got, err := h.links.Current(ctx, sess, file.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.Token, got.Token)
}

func TestRedeem_CountsDownload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	file := h.seedFile(t, "deck.pptx", "slides")

	grant, err := h.links.Issue(ctx, clientSession(true), file.ID)
	require.NoError(t, err)

	red, err := h.links.Redeem(ctx, grant.Token)
	require.NoError(t, err)
	defer red.Content.Close()
	body, err := io.ReadAll(red.Content)
	require.NoError(t, err)
	assert.Equal(t, "slides", string(body))
	assert.Equal(t, int64(6), red.Size)
	assert.Equal(t, file.ID, red.File.ID)

	got, err := h.files.Get(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.DownloadCount)
	assert.Contains(t, h.dispatcher.types(), events.EventFileDownloaded)
}

func TestRedeem_Expired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	file := h.seedFile(t, "deck.pptx", "slides")

	grant, err := h.links.Issue(ctx, clientSession(true), file.ID)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	assert.Equal(t, domain.ExpiredLabel, h.links.Remaining(*grant).String())

	_, err = h.links.Redeem(ctx, grant.Token)
	requireCode(t, err, apperrors.CodeExpired)

	got, err := h.files.Get(ctx, file.ID)
	require.NoError(t, err)
	assert.Zero(t, got.DownloadCount)
}

func TestRedeem_UnknownToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.links.Redeem(context.Background(), "forged")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.links.Redeem(context.Background(), "")
	requireCode(t, err, apperrors.CodeValidation)
}

func TestRedeem_ContentOutlivesRequestContext(t *testing.T) {
	h := newHarness(t)
	blobs := &ctxBoundBlobStore{BlobStore: h.blobs}
	h.files.blobs = blobs
	file := h.seedFile(t, "deck.pptx", "slides")
	grant, err := h.links.Issue(context.Background(), clientSession(true), file.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	red, err := h.links.Redeem(ctx, grant.Token)
	require.NoError(t, err)
	cancel()

	body, err := io.ReadAll(red.Content)
	require.NoError(t, err)
	assert.Equal(t, "slides", string(body))

	require.NoError(t, blobs.lastCtx.Err())
	require.NoError(t, red.Content.Close())
	assert.Error(t, blobs.lastCtx.Err())
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountIdentity_OpsAlwaysVerified(t *testing.T) {
	ops := &Account{ID: "a1", Email: "ops@company.com", Name: "Ops", Role: RoleOps}
	client := &Account{ID: "a2", Email: "c@company.com", Name: "C", Role: RoleClient}

	assert.True(t, ops.Identity().Verified)
	assert.False(t, client.Identity().Verified)

	client.Verified = true
	assert.True(t, client.Identity().Verified)
	assert.Equal(t, "C", client.Identity().DisplayName)
}

func TestVerificationToken_Usable(t *testing.T) {
	now := time.Now()
	used := now.Add(-time.Minute)

	assert.True(t, (&VerificationToken{ExpiresAt: now.Add(time.Hour)}).Usable(now))
	assert.False(t, (&VerificationToken{ExpiresAt: now.Add(-time.Second)}).Usable(now))
	assert.False(t, (&VerificationToken{ExpiresAt: now.Add(time.Hour), UsedAt: &used}).Usable(now))
}

func TestSessionConstructors(t *testing.T) {
	assert.True(t, LoadingSession().IsLoading)

	anon := AnonymousSession()
	assert.False(t, anon.IsAuthenticated)
	assert.Nil(t, anon.Identity)
	assert.False(t, anon.IsLoading)

	s := AuthenticatedSession("s1", Identity{ID: "u1", Role: RoleClient})
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, "u1", s.Identity.ID)
	assert.Equal(t, "s1", s.ID)
}

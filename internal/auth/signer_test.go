package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunatv/authd/domain"
	"github.com/lunatv/authd/internal/auth"
)

func TestCookieSigner_Deterministic(t *testing.T) {
	signer := auth.NewCookieSigner("server-secret")

	first := signer.Sign("alice")
	second := signer.Sign("alice")
	assert.Equal(t, first, second, "HMAC over the same input must be stable")
	assert.Len(t, first, 64, "hex-encoded SHA-256 output")

	assert.NotEqual(t, first, signer.Sign("bob"))
	assert.NotEqual(t, first, auth.NewCookieSigner("other-secret").Sign("alice"))
}

func TestCookieSigner_IssueCredential(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	signer := auth.NewCookieSigner("server-secret")
	cred := signer.IssueCredential("alice", domain.RoleUser, now)
	require.NotNil(t, cred)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, domain.RoleUser, cred.Role)
	assert.Equal(t, now.UnixMilli(), cred.Timestamp)
	assert.Equal(t, signer.Sign("alice"), cred.Signature)

	again := signer.IssueCredential("alice", domain.RoleUser, now)
	assert.Equal(t, cred.Signature, again.Signature)
}

func TestCookieSigner_UnsignedMode(t *testing.T) {
	signer := auth.NewCookieSigner("")
	assert.False(t, signer.Enabled())

	cred := signer.IssueCredential("alice", domain.RoleUser, time.Now())
	assert.Empty(t, cred.Signature, "no secret configured means unsigned credential")
}

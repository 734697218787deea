package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/lunatv/authd/domain"
)

// CookieSigner produces the HMAC-SHA256 signature carried inside auth
// cookies. An empty secret disables signing: credentials are then issued
// unsigned, which downstream consumers must treat as unauthenticated claims.
type CookieSigner struct {
	secret []byte
}

// NewCookieSigner creates a signer for the given server secret. The secret
// may be empty.
func NewCookieSigner(secret string) *CookieSigner {
	return &CookieSigner{secret: []byte(secret)}
}

// Enabled reports whether a signing secret is configured.
func (s *CookieSigner) Enabled() bool {
	return len(s.secret) > 0
}

// Sign returns the hex-encoded HMAC-SHA256 of data under the server secret.
func (s *CookieSigner) Sign(data string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// IssueCredential builds the auth credential for a completed login. The
// signature covers the username only, matching what consuming surfaces
// verify.
func (s *CookieSigner) IssueCredential(username string, role domain.Role, now time.Time) *domain.AuthCredential {
	cred := &domain.AuthCredential{
		Username:  username,
		Role:      role,
		Timestamp: now.UnixMilli(),
	}
	if s.Enabled() {
		cred.Signature = s.Sign(username)
	}
	return cred
}

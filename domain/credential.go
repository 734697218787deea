package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// AuthCredential is the bearer artifact handed to the user agent after a
// successful login. Without a signature it is an unsigned claim and the
// deployment is operating in a lower-trust mode; consumers must verify the
// signature whenever a server secret is configured.
type AuthCredential struct {
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature,omitempty"`
}

// Encode serializes the credential to the URL-escaped JSON form stored in
// the auth cookie.
func (c *AuthCredential) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode auth credential: %w", err)
	}
	return url.QueryEscape(string(raw)), nil
}

// DecodeAuthCredential parses a cookie value produced by Encode.
func DecodeAuthCredential(value string) (*AuthCredential, error) {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return nil, fmt.Errorf("decode auth credential: %w", err)
	}
	var cred AuthCredential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("decode auth credential: %w", err)
	}
	return &cred, nil
}

package domain

// ExternalIdentity is the user record fetched from the LinuxDo userinfo
// endpoint during one callback. It is never persisted; the reconciler copies
// the fields it needs onto the local Account.
type ExternalIdentity struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	Silenced   bool   `json:"silenced"`
	TrustLevel int    `json:"trust_level"`
	AvatarURL  string `json:"avatar_url"`
}

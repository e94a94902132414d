package dexcom

import (
	"time"
)

// Token is an OAuth2 token for a (user, provider) pair. Tokens are replaced
// wholesale on refresh, never partially mutated, so concurrent readers see
// either the old or the fully-refreshed token.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// ExpiresWithin reports whether the token expires within the buffer from now.
// A token expiring in 5s is expiring within a 30s buffer.
func (t *Token) ExpiresWithin(buffer time.Duration) bool {
	return !time.Now().Add(buffer).Before(t.ExpiresAt)
}

// Expired reports whether the token is past its expiry.
func (t *Token) Expired() bool {
	return t.ExpiresWithin(0)
}

// clone returns an independent copy so stored tokens cannot be mutated
// through returned pointers.
func (t *Token) clone() *Token {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind says what a token may be used for. It is carried in the "type" claim
// and is authoritative: an access token is never accepted where a refresh
// token is required, and the other way round.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool {
	return k == KindAccess || k == KindRefresh
}

// ClaimSet is the decoded, transport-independent view of a token.
type ClaimSet struct {
	Subject     string
	DisplayName string
	Kind        Kind
	IssuedAt    time.Time
	ExpiresAt   time.Time
	// ID is the jti claim. It makes two tokens minted in the same second for
	// the same user differ.
	ID string
}

// Claims is the JSON payload of a token: the registered claims plus the
// display name and the token kind.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Type     Kind   `json:"type"`
}

func newClaims(cs ClaimSet) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cs.Subject,
			IssuedAt:  jwt.NewNumericDate(cs.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(cs.ExpiresAt),
			ID:        cs.ID,
		},
		Username: cs.DisplayName,
		Type:     cs.Kind,
	}
}

func (c *Claims) claimSet() *ClaimSet {
	cs := &ClaimSet{
		Subject:     c.Subject,
		DisplayName: c.Username,
		Kind:        c.Type,
		ID:          c.ID,
	}
	if c.IssuedAt != nil {
		cs.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		cs.ExpiresAt = c.ExpiresAt.Time
	}
	return cs
}

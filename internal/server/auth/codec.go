// Package auth implements the token codec: it turns claim sets into signed
// JWTs with the configured asymmetric key and back, telling apart expired,
// forged or malformed, and wrong-kind tokens.
package auth

import (
	"crypto"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeyProvider is satisfied by *keys.Provider.
type KeyProvider interface {
	Algorithm() string
	SigningKey() crypto.PrivateKey
	VerificationKey() crypto.PublicKey
}

// Codec encodes and decodes tokens. It is immutable after construction and
// safe for concurrent use.
type Codec struct {
	method jwt.SigningMethod
	keys   KeyProvider
	now    func() time.Time
	parser *jwt.Parser
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock replaces time.Now for issuing and for the expiry check.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec binds a codec to the key pair and its algorithm.
func NewCodec(keys KeyProvider, opts ...Option) (*Codec, error) {
	method := jwt.GetSigningMethod(keys.Algorithm())
	if method == nil || method == jwt.SigningMethodNone {
		return nil, fmt.Errorf("%w: unknown signing method %q", common.ErrKeyUnavailable, keys.Algorithm())
	}

	c := &Codec{method: method, keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// Issue mints a token of kind for subject valid for ttl from now and returns
// it with the claim set that went into it.
func (c *Codec) Issue(kind Kind, subject, displayName string, ttl time.Duration) (string, *ClaimSet, error) {
	now := c.now().Truncate(time.Second)
	cs := ClaimSet{
		Subject:     subject,
		DisplayName: displayName,
		Kind:        kind,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		ID:          uuid.NewString(),
	}

	token, err := c.Encode(cs)
	if err != nil {
		return "", nil, err
	}
	return token, &cs, nil
}

// Encode signs cs. It fails only for claim sets that could never verify.
// Times are carried with second precision, so expiry must fall at least one
// whole second after issue.
func (c *Codec) Encode(cs ClaimSet) (string, error) {
	switch {
	case cs.Subject == "":
		return "", fmt.Errorf("%w: empty subject", common.ErrInvalidClaims)
	case !cs.Kind.valid():
		return "", fmt.Errorf("%w: unknown kind %q", common.ErrInvalidClaims, cs.Kind)
	case !cs.ExpiresAt.Truncate(time.Second).After(cs.IssuedAt.Truncate(time.Second)):
		return "", fmt.Errorf("%w: expiry must be after issue time", common.ErrInvalidClaims)
	}

	token, err := jwt.NewWithClaims(c.method, newClaims(cs)).SignedString(c.keys.SigningKey())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Decode verifies token and returns its claims if it is a live token of the
// expected kind. Errors match common.ErrTokenExpired (now >= exp),
// common.ErrInvalidSignature (bad signature, algorithm or structure) or
// common.ErrWrongKind.
func (c *Codec) Decode(token string, expected Kind) (*ClaimSet, error) {
	claims := &Claims{}

	_, err := c.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.keys.VerificationKey(), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", common.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidSignature, err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil || !claims.Type.valid() {
		return nil, fmt.Errorf("%w: incomplete claims", common.ErrInvalidSignature)
	}
	if claims.Type != expected {
		return nil, fmt.Errorf("%w: got %s, want %s", common.ErrWrongKind, claims.Type, expected)
	}

	return claims.claimSet(), nil
}

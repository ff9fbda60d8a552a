package auth

import (
	"crypto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/keys"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newProvider(t *testing.T, alg string) *keys.Provider {
	t.Helper()
	priv, pub, err := keys.Generate(alg)
	require.NoError(t, err)
	p, err := keys.New(alg, priv, pub)
	require.NoError(t, err)
	return p
}

func newCodec(t *testing.T, alg string, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(newProvider(t, alg), WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCodec_RoundTrip(t *testing.T) {
	for _, alg := range []string{"RS256", "PS256", "ES384", "EdDSA"} {
		t.Run(alg, func(t *testing.T) {
			clock := &fakeClock{now: t0}
			c := newCodec(t, alg, clock)

			token, issued, err := c.Issue(KindAccess, "42", "alice", 15*time.Minute)
			require.NoError(t, err)
			assert.Len(t, strings.Split(token, "."), 3)

			got, err := c.Decode(token, KindAccess)
			require.NoError(t, err)
			assert.Equal(t, "42", got.Subject)
			assert.Equal(t, "alice", got.DisplayName)
			assert.Equal(t, KindAccess, got.Kind)
			assert.Equal(t, issued.ID, got.ID)
			assert.True(t, got.IssuedAt.Equal(t0))
			assert.True(t, got.ExpiresAt.Equal(t0.Add(15*time.Minute)))
		})
	}
}

func TestCodec_IssueProducesDistinctTokensWithinOneSecond(t *testing.T) {
	clock := &fakeClock{now: t0}
	c := newCodec(t, "RS256", clock)

	a, _, err := c.Issue(KindRefresh, "7", "bob", time.Hour)
	require.NoError(t, err)
	b, _, err := c.Issue(KindRefresh, "7", "bob", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCodec_EncodeIsDeterministicForRSA(t *testing.T) {
	clock := &fakeClock{now: t0}
	c := newCodec(t, "RS256", clock)
	cs := ClaimSet{Subject: "1", Kind: KindAccess, IssuedAt: t0, ExpiresAt: t0.Add(time.Minute), ID: "x"}

	a, err := c.Encode(cs)
	require.NoError(t, err)
	b, err := c.Encode(cs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCodec_EncodeRejectsInvalidClaims(t *testing.T) {
	clock := &fakeClock{now: t0}
	c := newCodec(t, "RS256", clock)

	cases := map[string]ClaimSet{
		"empty subject": {Kind: KindAccess, IssuedAt: t0, ExpiresAt: t0.Add(time.Minute)},
		"unknown kind":  {Subject: "1", Kind: "id", IssuedAt: t0, ExpiresAt: t0.Add(time.Minute)},
		"expiry == iat": {Subject: "1", Kind: KindAccess, IssuedAt: t0, ExpiresAt: t0},
		"expiry <  iat": {Subject: "1", Kind: KindRefresh, IssuedAt: t0, ExpiresAt: t0.Add(-time.Second)},
		"sub-second":    {Subject: "1", Kind: KindAccess, IssuedAt: t0, ExpiresAt: t0.Add(500 * time.Millisecond)},
	}
	for name, cs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Encode(cs)
			assert.ErrorIs(t, err, common.ErrInvalidClaims)
		})
	}
}

func TestCodec_IssueRejectsSubSecondLifetime(t *testing.T) {
	clock := &fakeClock{now: t0.Add(700 * time.Millisecond)}
	c := newCodec(t, "ES256", clock)

	_, _, err := c.Issue(KindAccess, "1", "alice", 500*time.Millisecond)
	assert.ErrorIs(t, err, common.ErrInvalidClaims)

	token, cs, err := c.Issue(KindAccess, "1", "alice", time.Second)
	require.NoError(t, err)
	assert.True(t, cs.ExpiresAt.After(cs.IssuedAt))
	_, err = c.Decode(token, KindAccess)
	assert.NoError(t, err)
}

func TestCodec_WrongKind(t *testing.T) {
	clock := &fakeClock{now: t0}
	c := newCodec(t, "RS256", clock)

	access, _, err := c.Issue(KindAccess, "1", "a", time.Minute)
	require.NoError(t, err)
	refresh, _, err := c.Issue(KindRefresh, "1", "a", time.Hour)
	require.NoError(t, err)

	_, err = c.Decode(access, KindRefresh)
	assert.ErrorIs(t, err, common.ErrWrongKind)

	_, err = c.Decode(refresh, KindAccess)
	assert.ErrorIs(t, err, common.ErrWrongKind)
}

func TestCodec_ExpiryIsInclusive(t *testing.T) {
	clock := &fakeClock{now: t0}
	c := newCodec(t, "ES256", clock)

	token, _, err := c.Issue(KindAccess, "1", "a", time.Minute)
	require.NoError(t, err)

	clock.Set(t0.Add(59 * time.Second))
	_, err = c.Decode(token, KindAccess)
	require.NoError(t, err)

	clock.Set(t0.Add(time.Minute))
	_, err = c.Decode(token, KindAccess)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	clock.Set(t0.Add(time.Hour))
	_, err = c.Decode(token, KindAccess)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestCodec_InvalidSignature(t *testing.T) {
	clock := &fakeClock{now: t0}
	c := newCodec(t, "RS256", clock)

	token, _, err := c.Issue(KindAccess, "1", "a", time.Minute)
	require.NoError(t, err)

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		forged, err := c.Encode(ClaimSet{Subject: "2", Kind: KindAccess, IssuedAt: t0, ExpiresAt: t0.Add(time.Minute)})
		require.NoError(t, err)
		parts[1] = strings.Split(forged, ".")[1]

		_, err = c.Decode(strings.Join(parts, "."), KindAccess)
		assert.ErrorIs(t, err, common.ErrInvalidSignature)
	})

	t.Run("signed by another key", func(t *testing.T) {
		other := newCodec(t, "RS256", clock)
		_, err := other.Decode(token, KindAccess)
		assert.ErrorIs(t, err, common.ErrInvalidSignature)
	})

	t.Run("different algorithm", func(t *testing.T) {
		ec := newCodec(t, "ES256", clock)
		ecToken, _, err := ec.Issue(KindAccess, "1", "a", time.Minute)
		require.NoError(t, err)

		_, err = c.Decode(ecToken, KindAccess)
		assert.ErrorIs(t, err, common.ErrInvalidSignature)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := newClaims(ClaimSet{Subject: "1", Kind: KindAccess, IssuedAt: t0, ExpiresAt: t0.Add(time.Minute)})
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = c.Decode(unsigned, KindAccess)
		assert.ErrorIs(t, err, common.ErrInvalidSignature)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := c.Decode("not-a-token", KindAccess)
		assert.ErrorIs(t, err, common.ErrInvalidSignature)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "1", IssuedAt: jwt.NewNumericDate(t0)},
			Type:             KindAccess,
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.keys.SigningKey())
		require.NoError(t, err)

		_, err = c.Decode(raw, KindAccess)
		assert.ErrorIs(t, err, common.ErrInvalidSignature)
	})
}

func TestNewCodec_UnknownAlgorithm(t *testing.T) {
	_, err := NewCodec(stubKeys{alg: "none"})
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)

	_, err = NewCodec(stubKeys{alg: "XX999"})
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
}

type stubKeys struct{ alg string }

func (s stubKeys) Algorithm() string                 { return s.alg }
func (s stubKeys) SigningKey() crypto.PrivateKey     { return nil }
func (s stubKeys) VerificationKey() crypto.PublicKey { return nil }

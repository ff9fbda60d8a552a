// Package keys loads the asymmetric key pair used to sign and verify tokens.
//
// Keys are read once at startup and never change afterwards, so a Provider is
// safe for concurrent use without locking. Any problem with the key material
// is reported as common.ErrKeyUnavailable and is meant to stop the process.
package keys

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const remediation = "generate a key pair with `go run ./cmd/keygen`"

// Provider holds a loaded signing key and its verification key.
type Provider struct {
	algorithm string
	private   crypto.PrivateKey
	public    crypto.PublicKey
}

// Load reads both PEM blobs through src and parses them for algorithm.
func Load(ctx context.Context, src Source, algorithm, privateLocation, publicLocation string) (*Provider, error) {
	privPEM, err := src.Read(ctx, privateLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: private key %s not readable: %v; %s", common.ErrKeyUnavailable, privateLocation, err, remediation)
	}
	defer common.WipeByteArray(privPEM)

	pubPEM, err := src.Read(ctx, publicLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: public key %s not readable: %v; %s", common.ErrKeyUnavailable, publicLocation, err, remediation)
	}

	return New(algorithm, privPEM, pubPEM)
}

// New parses a PEM-encoded key pair. The private key may be PKCS#1, SEC 1 or
// PKCS#8; the public key PKIX. The pair must match and fit algorithm.
func New(algorithm string, privatePEM, publicPEM []byte) (*Provider, error) {
	var (
		priv crypto.PrivateKey
		pub  crypto.PublicKey
		err  error
	)

	switch family(algorithm) {
	case "rsa":
		var k *rsa.PrivateKey
		if k, err = jwt.ParseRSAPrivateKeyFromPEM(privatePEM); err == nil {
			priv = k
			pub, err = jwt.ParseRSAPublicKeyFromPEM(publicPEM)
		}
	case "ecdsa":
		var k *ecdsa.PrivateKey
		if k, err = jwt.ParseECPrivateKeyFromPEM(privatePEM); err == nil {
			priv = k
			if want := curveBits(algorithm); k.Curve.Params().BitSize != want {
				return nil, fmt.Errorf("%w: %s needs a P-%d key, got %s", common.ErrKeyUnavailable, algorithm, want, k.Curve.Params().Name)
			}
			pub, err = jwt.ParseECPublicKeyFromPEM(publicPEM)
		}
	case "eddsa":
		if priv, err = jwt.ParseEdPrivateKeyFromPEM(privatePEM); err == nil {
			pub, err = jwt.ParseEdPublicKeyFromPEM(publicPEM)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", common.ErrKeyUnavailable, algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: malformed %s key material: %v; %s", common.ErrKeyUnavailable, algorithm, err, remediation)
	}

	if !matches(priv, pub) {
		return nil, fmt.Errorf("%w: public key does not belong to the private key; %s", common.ErrKeyUnavailable, remediation)
	}

	return &Provider{algorithm: algorithm, private: priv, public: pub}, nil
}

// Algorithm is the JWS "alg" the keys were loaded for.
func (p *Provider) Algorithm() string { return p.algorithm }

// SigningKey returns the private key.
func (p *Provider) SigningKey() crypto.PrivateKey { return p.private }

// VerificationKey returns the public key.
func (p *Provider) VerificationKey() crypto.PublicKey { return p.public }

func family(algorithm string) string {
	switch {
	case strings.HasPrefix(algorithm, "RS"), strings.HasPrefix(algorithm, "PS"):
		return "rsa"
	case strings.HasPrefix(algorithm, "ES"):
		return "ecdsa"
	case algorithm == "EdDSA":
		return "eddsa"
	}
	return ""
}

func curveBits(algorithm string) int {
	switch algorithm {
	case "ES384":
		return 384
	case "ES512":
		return 521
	}
	return 256
}

func matches(priv crypto.PrivateKey, pub crypto.PublicKey) bool {
	signer, ok := priv.(interface{ Public() crypto.PublicKey })
	if !ok {
		return false
	}
	derived, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	return ok && derived.Equal(pub)
}

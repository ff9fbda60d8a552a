package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// RSABits is the modulus size used for generated RSA keys.
const RSABits = 2048

// Generate creates a fresh key pair for algorithm and returns it as
// PKCS#8 / PKIX PEM blocks.
func Generate(algorithm string) (privatePEM, publicPEM []byte, err error) {
	var priv crypto.Signer

	switch family(algorithm) {
	case "rsa":
		priv, err = rsa.GenerateKey(rand.Reader, RSABits)
	case "ecdsa":
		var curve elliptic.Curve
		switch curveBits(algorithm) {
		case 384:
			curve = elliptic.P384()
		case 521:
			curve = elliptic.P521()
		default:
			curve = elliptic.P256()
		}
		priv, err = ecdsa.GenerateKey(curve, rand.Reader)
	case "eddsa":
		_, priv, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("generate %s key: %w", algorithm, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	defer common.WipeByteArray(der)

	pubDER, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}

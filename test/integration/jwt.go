package integration

import (
	"crypto/rand"
	"crypto/rsa"
	"maps"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testKeyID = "test-key-1"

// TestClaims holds the configurable claims for generating test JWT tokens.
type TestClaims struct {
	Username    string
	Authorities []string
	Extra       map[string]any
}

// tokenIssuer signs JWTs the way the evidence engine's identity provider
// does. The console only reads the claims; the mock backend stands in for
// the verifier.
type tokenIssuer struct {
	privateKey *rsa.PrivateKey
	issuer     string
}

// newTokenIssuer creates a token issuer with a fresh RSA key pair.
func newTokenIssuer(t *testing.T) *tokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return &tokenIssuer{
		privateKey: key,
		issuer:     "https://auth.evidence.test",
	}
}

// GenerateToken creates a valid, signed JWT token with the given claims.
func (ti *tokenIssuer) GenerateToken(claims TestClaims) string {
	return ti.sign(claims, time.Now(), time.Hour)
}

// GenerateExpiredToken creates a JWT token that expired in the past.
func (ti *tokenIssuer) GenerateExpiredToken(claims TestClaims) string {
	return ti.sign(claims, time.Now().Add(-2*time.Hour), time.Hour)
}

func (ti *tokenIssuer) sign(claims TestClaims, issuedAt time.Time, lifetime time.Duration) string {
	mapClaims := jwt.MapClaims{
		"iss": ti.issuer,
		"iat": jwt.NewNumericDate(issuedAt),
		"exp": jwt.NewNumericDate(issuedAt.Add(lifetime)),
		"sub": claims.Username,
	}

	if len(claims.Authorities) > 0 {
		// Store as []any to match JWT decode behavior.
		authorities := make([]any, len(claims.Authorities))
		for i, a := range claims.Authorities {
			authorities[i] = a
		}
		mapClaims["authorities"] = authorities
	}

	maps.Copy(mapClaims, claims.Extra)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, mapClaims)
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(ti.privateKey)
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}

package auth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
)

// BearerVerifier authenticates requests carrying an
// "Authorization: Bearer <jwt>" header, signed with ECDSA P-256 over the
// standard JWT compact serialization. The verified "sub" claim becomes the
// user_token.
type BearerVerifier struct {
	publicKey *ecdsa.PublicKey
}

// NewBearerVerifier parses an ECDSA P-256 public key from PEM.
func NewBearerVerifier(publicKeyPEM []byte) (*BearerVerifier, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("bearer verifier: no PEM block found in public key material")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("bearer verifier: parse public key: %w", err)
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("bearer verifier: public key is not ECDSA")
	}
	return &BearerVerifier{publicKey: ecKey}, nil
}

type bearerClaims struct {
	Subject string `json:"sub"`
}

// Verify implements Verifier.
func (v *BearerVerifier) Verify(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	token := strings.TrimPrefix(header, prefix)

	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.ES256(), v.publicKey))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	var claims bearerClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("%w: malformed claims: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims.Subject, nil
}

var _ Verifier = (*BearerVerifier)(nil)

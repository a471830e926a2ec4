package auth

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
)

// KeyIDHeader and SignatureHeader are the two headers a detached-signature
// client must set.
const (
	KeyIDHeader     = "X-VSS-Key-Id"
	SignatureHeader = "X-VSS-Signature"
)

// SignatureVerifier authenticates requests signed with a detached ECDSA
// P-256 JWS over a canonical string built from the method, path, and body
// digest. The signer's key ID becomes the user_token.
type SignatureVerifier struct {
	keys map[string]*ecdsa.PublicKey
}

// NewSignatureVerifier builds a verifier over a fixed set of known
// key-ID-to-public-key mappings, loaded from configuration at startup.
func NewSignatureVerifier(keys map[string]*ecdsa.PublicKey) *SignatureVerifier {
	return &SignatureVerifier{keys: keys}
}

// Verify implements Verifier.
func (v *SignatureVerifier) Verify(r *http.Request) (string, error) {
	keyID := r.Header.Get(KeyIDHeader)
	signature := r.Header.Get(SignatureHeader)
	if keyID == "" || signature == "" {
		return "", fmt.Errorf("%w: missing signature headers", ErrUnauthorized)
	}

	pub, ok := v.keys[keyID]
	if !ok {
		return "", fmt.Errorf("%w: unknown key id %q", ErrUnauthorized, keyID)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrUnauthorized, err)
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	canonical := canonicalString(r.Method, r.URL.Path, body)

	_, err = jws.Verify([]byte(signature), jws.WithKey(jwa.ES256(), pub), jws.WithDetachedPayload(canonical))
	if err != nil {
		return "", fmt.Errorf("%w: signature verification failed: %v", ErrUnauthorized, err)
	}
	return keyID, nil
}

// canonicalString is what the client signs: method, path, and a hex SHA-256
// digest of the body, newline-separated so there is no ambiguity between a
// path containing the digest's characters and the digest itself.
func canonicalString(method, path string, body []byte) []byte {
	digest := sha256.Sum256(body)
	return []byte(method + "\n" + path + "\n" + hex.EncodeToString(digest[:]))
}

var _ Verifier = (*SignatureVerifier)(nil)

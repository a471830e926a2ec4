package auth_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"net/http"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/stretchr/testify/require"

	"github.com/warp/vss/internal/auth"
)

func parsePublicKeysForTest(t *testing.T, pemByKeyID map[string][]byte) map[string]*ecdsa.PublicKey {
	t.Helper()
	out := make(map[string]*ecdsa.PublicKey, len(pemByKeyID))
	for keyID, raw := range pemByKeyID {
		block, _ := pem.Decode(raw)
		require.NotNil(t, block)
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		require.NoError(t, err)
		out[keyID] = key.(*ecdsa.PublicKey)
	}
	return out
}

func signDetached(t *testing.T, priv *ecdsa.PrivateKey, method, path string, body []byte) string {
	t.Helper()
	digest := sha256.Sum256(body)
	canonical := []byte(method + "\n" + path + "\n" + hex.EncodeToString(digest[:]))

	signed, err := jws.Sign(nil, jws.WithKey(jwa.ES256(), priv), jws.WithDetachedPayload(canonical))
	require.NoError(t, err)
	return string(signed)
}

func TestSignatureVerifier_ValidSignatureReturnsKeyID(t *testing.T) {
	priv, pubPEM := generateECDSAKeyPair(t)
	keys := parsePublicKeysForTest(t, map[string][]byte{"key-1": pubPEM})
	verifier := auth.NewSignatureVerifier(keys)

	body := []byte(`{"store_id":"wallet-1","key":"k1"}`)
	sig := signDetached(t, priv, http.MethodPost, "/vss/getObject", body)

	req, err := http.NewRequest(http.MethodPost, "/vss/getObject", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(auth.KeyIDHeader, "key-1")
	req.Header.Set(auth.SignatureHeader, sig)

	userToken, err := verifier.Verify(req)
	require.NoError(t, err)
	require.Equal(t, "key-1", userToken)

	// The body must still be readable by downstream decoding.
	remaining := make([]byte, len(body))
	n, _ := req.Body.Read(remaining)
	require.Equal(t, body, remaining[:n])
}

func TestSignatureVerifier_UnknownKeyIDFails(t *testing.T) {
	priv, pubPEM := generateECDSAKeyPair(t)
	keys := parsePublicKeysForTest(t, map[string][]byte{"key-1": pubPEM})
	verifier := auth.NewSignatureVerifier(keys)

	body := []byte(`{}`)
	sig := signDetached(t, priv, http.MethodPost, "/vss/getObject", body)

	req, err := http.NewRequest(http.MethodPost, "/vss/getObject", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(auth.KeyIDHeader, "unknown-key")
	req.Header.Set(auth.SignatureHeader, sig)

	_, err = verifier.Verify(req)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestSignatureVerifier_TamperedBodyFails(t *testing.T) {
	priv, pubPEM := generateECDSAKeyPair(t)
	keys := parsePublicKeysForTest(t, map[string][]byte{"key-1": pubPEM})
	verifier := auth.NewSignatureVerifier(keys)

	sig := signDetached(t, priv, http.MethodPost, "/vss/getObject", []byte(`{"key":"original"}`))

	req, err := http.NewRequest(http.MethodPost, "/vss/getObject", bytes.NewReader([]byte(`{"key":"tampered"}`)))
	require.NoError(t, err)
	req.Header.Set(auth.KeyIDHeader, "key-1")
	req.Header.Set(auth.SignatureHeader, sig)

	_, err = verifier.Verify(req)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestSignatureVerifier_MissingHeadersFails(t *testing.T) {
	verifier := auth.NewSignatureVerifier(nil)
	req, err := http.NewRequest(http.MethodPost, "/vss/getObject", nil)
	require.NoError(t, err)

	_, err = verifier.Verify(req)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}

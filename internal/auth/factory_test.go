package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/vss/internal/auth"
)

func TestFactory_EmptySchemeFailsStartup(t *testing.T) {
	_, err := auth.New(auth.Config{})
	require.Error(t, err)
}

func TestFactory_UnknownSchemeFailsStartup(t *testing.T) {
	_, err := auth.New(auth.Config{Scheme: "carrier-pigeon"})
	require.Error(t, err)
}

func TestFactory_BearerSchemeBuildsVerifier(t *testing.T) {
	_, pubPEM := generateECDSAKeyPair(t)
	v, err := auth.New(auth.Config{Scheme: auth.SchemeBearer, BearerPublicKeyPEM: pubPEM})
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestFactory_SignatureSchemeBuildsVerifier(t *testing.T) {
	_, pubPEM := generateECDSAKeyPair(t)
	v, err := auth.New(auth.Config{
		Scheme:           auth.SchemeSignature,
		SignatureKeysPEM: map[string][]byte{"key-1": pubPEM},
	})
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestFactory_SignatureSchemeRejectsMalformedKey(t *testing.T) {
	_, err := auth.New(auth.Config{
		Scheme:           auth.SchemeSignature,
		SignatureKeysPEM: map[string][]byte{"key-1": []byte("not a pem block")},
	})
	require.Error(t, err)
}

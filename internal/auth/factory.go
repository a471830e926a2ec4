/*
factory.go selects a concrete Verifier from configuration.

Selection is a startup-time decision, not a runtime branch: the
dispatcher only ever holds a Verifier interface value. Unknown or absent
scheme names fail startup immediately rather than falling back to an
unauthenticated mode.
*/
package auth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Scheme names accepted in configuration.
const (
	SchemeBearer    = "bearer"
	SchemeSignature = "signature"
)

// Config is the subset of the process configuration the factory consumes.
type Config struct {
	Scheme string

	// Bearer
	BearerPublicKeyPEM []byte

	// Signature: key id -> PEM-encoded ECDSA public key
	SignatureKeysPEM map[string][]byte
}

// New builds the configured Verifier. It is an error for Scheme to be
// empty or unrecognized: "if no verifier is configured, startup fails."
func New(cfg Config) (Verifier, error) {
	switch cfg.Scheme {
	case SchemeBearer:
		return NewBearerVerifier(cfg.BearerPublicKeyPEM)
	case SchemeSignature:
		keys, err := parsePublicKeys(cfg.SignatureKeysPEM)
		if err != nil {
			return nil, err
		}
		return NewSignatureVerifier(keys), nil
	case "":
		return nil, fmt.Errorf("auth: no verifier scheme configured")
	default:
		return nil, fmt.Errorf("auth: unsupported verifier scheme %q", cfg.Scheme)
	}
}

func parsePublicKeys(pemByKeyID map[string][]byte) (map[string]*ecdsa.PublicKey, error) {
	out := make(map[string]*ecdsa.PublicKey, len(pemByKeyID))
	for keyID, raw := range pemByKeyID {
		block, _ := pem.Decode(raw)
		if block == nil {
			return nil, fmt.Errorf("auth: no PEM block for key id %q", keyID)
		}
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: parse public key for key id %q: %w", keyID, err)
		}
		ecKey, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("auth: public key for key id %q is not ECDSA", keyID)
		}
		out[keyID] = ecKey
	}
	return out, nil
}

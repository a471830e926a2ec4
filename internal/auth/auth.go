/*
Package auth defines the Authorization Gate's capability surface.

PURPOSE:
  A Verifier turns an inbound request's headers into a verified
  user_token, or fails with an AuthError. The core dispatcher depends only
  on this interface; which concrete scheme is active is a startup-time
  configuration decision (see factory.go).

SEE ALSO:
  - internal/auth/bearer.go: asymmetric-key-signed bearer JWT
  - internal/auth/signature.go: detached-signature scheme
  - internal/auth/factory.go: config -> concrete Verifier
*/
package auth

import (
	"errors"
	"net/http"
)

// ErrUnauthorized is the sentinel the dispatcher maps to the wire-level
// AuthException / 401.
var ErrUnauthorized = errors.New("vss: unauthorized")

// Verifier authenticates one request and returns the tenant's user_token.
type Verifier interface {
	Verify(r *http.Request) (userToken string, err error)
}

/*
errormap.go is the Error Mapper: a pure function from an engine/auth error
to an HTTP status and a wire.ErrorResponse. It never retries and never
logs — callers decide what, if anything, to log.
*/
package api

import (
	"errors"
	"net/http"

	"github.com/warp/vss/internal/api/wire"
	"github.com/warp/vss/internal/auth"
	"github.com/warp/vss/internal/store"
)

// internalErrorMessage replaces every InternalServerError's detail so
// backend diagnostics never reach a client.
const internalErrorMessage = "Unknown Server Error occurred."

// toResponse maps err to the HTTP status and body the dispatcher writes.
func toResponse(err error) (int, wire.ErrorResponse) {
	switch {
	case errors.Is(err, store.ErrNoSuchKey):
		return http.StatusNotFound, wire.ErrorResponse{ErrorCode: wire.ErrorCodeNoSuchKey, Message: err.Error()}
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, wire.ErrorResponse{ErrorCode: wire.ErrorCodeConflict, Message: err.Error()}
	case errors.Is(err, store.ErrInvalidRequest):
		return http.StatusBadRequest, wire.ErrorResponse{ErrorCode: wire.ErrorCodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, wire.ErrorResponse{ErrorCode: wire.ErrorCodeAuth, Message: err.Error()}
	default:
		// store.ErrInternal and anything unrecognized: sanitize.
		return http.StatusInternalServerError, wire.ErrorResponse{ErrorCode: wire.ErrorCodeInternal, Message: internalErrorMessage}
	}
}

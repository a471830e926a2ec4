package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/vss/internal/api/wire"
	"github.com/warp/vss/internal/auth"
	"github.com/warp/vss/internal/store"
)

func TestToResponse_MapsEveryErrorKind(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   wire.ErrorCode
	}{
		{"no such key", store.ErrNoSuchKey, http.StatusNotFound, wire.ErrorCodeNoSuchKey},
		{"conflict", store.ErrConflict, http.StatusConflict, wire.ErrorCodeConflict},
		{"invalid request", store.ErrInvalidRequest, http.StatusBadRequest, wire.ErrorCodeInvalidRequest},
		{"unauthorized", auth.ErrUnauthorized, http.StatusUnauthorized, wire.ErrorCodeAuth},
		{"internal", store.ErrInternal, http.StatusInternalServerError, wire.ErrorCodeInternal},
		{"unrecognized", errors.New("boom"), http.StatusInternalServerError, wire.ErrorCodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := toResponse(tc.err)
			require.Equal(t, tc.wantStatus, status)
			require.Equal(t, tc.wantCode, body.ErrorCode)
		})
	}
}

func TestToResponse_InternalErrorsAreSanitized(t *testing.T) {
	_, body := toResponse(errors.New("leaking a table name or stack trace"))
	require.Equal(t, internalErrorMessage, body.Message)
}

func TestToResponse_WrappedErrorsStillMatch(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), store.ErrConflict)
	status, body := toResponse(wrapped)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, wire.ErrorCodeConflict, body.ErrorCode)
}

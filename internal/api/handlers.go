/*
handlers.go - HTTP handlers for the four VSS endpoints.

PURPOSE:
  Each handler authorizes, decodes the body into its wire request type,
  translates it into an internal/store call, and encodes the result.
  Validation beyond "does this decode" lives here, not in wire.

REQUEST FLOW:
  1. Authorize via Handler.Verifier, obtain user_token
  2. Decode body into the operation's wire request
  3. Translate sentinel versions into store.WriteIntent/DeleteIntent
  4. Call Handler.Engine
  5. Encode the wire response, or map the error via toResponse

SEE ALSO:
  - wire/types.go: request/response bodies
  - errormap.go: error -> status/body mapping
  - server.go: router wiring
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/vss/internal/api/wire"
	"github.com/warp/vss/internal/auth"
	"github.com/warp/vss/internal/errreport"
	"github.com/warp/vss/internal/metrics"
	"github.com/warp/vss/internal/store"
)

// Handler holds every dependency the four endpoints need.
type Handler struct {
	Engine   store.Engine
	Verifier auth.Verifier
}

// NewHandler builds a Handler from its dependencies.
func NewHandler(engine store.Engine, verifier auth.Verifier) *Handler {
	return &Handler{Engine: engine, Verifier: verifier}
}

// GetObject handles POST /vss/getObject.
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	userToken, err := h.Verifier.Verify(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req wire.GetObjectRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}

	rec, err := h.Engine.Get(r.Context(), userToken, req.StoreID, req.Key)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.GetObjectResponse{
		Value: &wire.KeyValue{Key: rec.Key, Value: rec.Value, Version: rec.Version},
	})
}

// PutObjects handles POST /vss/putObjects.
func (h *Handler) PutObjects(w http.ResponseWriter, r *http.Request) {
	userToken, err := h.Verifier.Verify(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req wire.PutObjectRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}

	putReq := store.PutRequest{
		StoreID:       req.StoreID,
		GlobalVersion: req.GlobalVersion,
		Writes:        make([]store.Write, len(req.TransactionItems)),
		Deletes:       make([]store.Delete, len(req.DeleteItems)),
	}
	for i, item := range req.TransactionItems {
		putReq.Writes[i] = writeFromKeyValue(item)
	}
	for i, item := range req.DeleteItems {
		putReq.Deletes[i] = deleteFromKeyValue(item)
	}

	if err := h.Engine.Put(r.Context(), userToken, putReq); err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.PutConflictsTotal.Inc()
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.PutObjectResponse{})
}

// DeleteObject handles POST /vss/deleteObject.
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	userToken, err := h.Verifier.Verify(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req wire.DeleteObjectRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	if req.KeyValue.Key == "" {
		writeError(w, store.ErrInvalidRequest)
		return
	}

	del := deleteFromKeyValue(req.KeyValue)
	if err := h.Engine.Delete(r.Context(), userToken, req.StoreID, del); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.DeleteObjectResponse{})
}

// ListKeyVersions handles POST /vss/listKeyVersions.
func (h *Handler) ListKeyVersions(w http.ResponseWriter, r *http.Request) {
	userToken, err := h.Verifier.Verify(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req wire.ListKeyVersionsRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}

	listReq := store.ListRequest{StoreID: req.StoreID, PageSize: req.PageSize}
	if req.KeyPrefix != nil {
		listReq.KeyPrefix = *req.KeyPrefix
	}
	if req.PageToken != nil {
		listReq.PageToken = *req.PageToken
	}

	res, err := h.Engine.ListKeyVersions(r.Context(), userToken, listReq)
	if err != nil {
		writeError(w, err)
		return
	}

	keyVersions := make([]wire.KeyValue, len(res.KeyVersions))
	for i, rec := range res.KeyVersions {
		keyVersions[i] = wire.KeyValue{Key: rec.Key, Version: rec.Version}
	}
	writeJSON(w, http.StatusOK, wire.ListKeyVersionsResponse{
		KeyVersions:   keyVersions,
		NextPageToken: &res.NextPageToken,
		GlobalVersion: res.GlobalVersion,
	})
}

// writeFromKeyValue maps a wire KeyValue's sentinel version (-1/0/>=1) to
// the tagged store.Write the engine expects.
func writeFromKeyValue(kv wire.KeyValue) store.Write {
	switch {
	case kv.Version == -1:
		return store.Write{Key: kv.Key, Value: kv.Value, Intent: store.Unconditional}
	case kv.Version == 0:
		return store.Write{Key: kv.Key, Value: kv.Value, Intent: store.InsertIfAbsent}
	default:
		return store.Write{Key: kv.Key, Value: kv.Value, Intent: store.UpdateIfVersion, ExpectVersion: kv.Version}
	}
}

// deleteFromKeyValue maps a wire KeyValue's sentinel version (-1/>=0) to the
// tagged store.Delete the engine expects.
func deleteFromKeyValue(kv wire.KeyValue) store.Delete {
	if kv.Version == -1 {
		return store.Delete{Key: kv.Key, Intent: store.UnconditionalDelete}
	}
	return store.Delete{Key: kv.Key, Intent: store.DeleteIfVersion, ExpectVersion: kv.Version}
}

// decodeOrBadRequest decodes r's body into dst, writing the fixed "Error
// parsing request" 400 body on failure.
func decodeOrBadRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Error parsing request"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError encodes err's wire mapping and reports it: internal failures
// at error level, auth failures and rejected requests as warnings. A
// missing key is a normal client outcome and is not reported.
func writeError(w http.ResponseWriter, err error) {
	status, body := toResponse(err)
	switch {
	case errors.Is(err, store.ErrNoSuchKey):
	case errors.Is(err, auth.ErrUnauthorized):
		errreport.Warningf("Authentication failure: %v", err)
	case status == http.StatusInternalServerError:
		errreport.Errorf("Internal server error: %v", err)
	default:
		errreport.Warningf("Request error: %v", err)
	}
	writeJSON(w, status, body)
}

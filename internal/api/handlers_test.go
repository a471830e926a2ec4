package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/warp/vss/internal/api"
	"github.com/warp/vss/internal/api/wire"
	"github.com/warp/vss/internal/store/sqlite"
)

type fixedVerifier struct{ userToken string }

func (f fixedVerifier) Verify(r *http.Request) (string, error) { return f.userToken, nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine, err := sqlite.New(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	handler := api.NewHandler(engine, fixedVerifier{userToken: "user-1"})
	router := api.NewRouter(handler, zerolog.Nop())
	return httptest.NewServer(router)
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestE2E_PutThenGet_GlobalVersionRoundTrips(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	gv := int64(7)
	resp := postJSON(t, srv, "/vss/putObjects", wire.PutObjectRequest{
		StoreID:       "wallet-1",
		GlobalVersion: &gv,
		TransactionItems: []wire.KeyValue{
			{Key: "k1", Value: []byte("v1"), Version: 0},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/vss/getObject", wire.GetObjectRequest{StoreID: "wallet-1", Key: "k1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var getResp wire.GetObjectResponse
	decodeBody(t, resp, &getResp)
	require.NotNil(t, getResp.Value)
	require.Equal(t, []byte("v1"), getResp.Value.Value)
	require.Equal(t, int64(1), getResp.Value.Version)

	resp = postJSON(t, srv, "/vss/listKeyVersions", wire.ListKeyVersionsRequest{StoreID: "wallet-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listResp wire.ListKeyVersionsResponse
	decodeBody(t, resp, &listResp)
	require.NotNil(t, listResp.GlobalVersion)
	require.Equal(t, gv, *listResp.GlobalVersion)
}

func TestE2E_ConditionalUpdateAdvancesVersion(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv, "/vss/putObjects", wire.PutObjectRequest{
		StoreID:          "wallet-1",
		TransactionItems: []wire.KeyValue{{Key: "k1", Value: []byte("v1"), Version: 0}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/vss/putObjects", wire.PutObjectRequest{
		StoreID:          "wallet-1",
		TransactionItems: []wire.KeyValue{{Key: "k1", Value: []byte("v2"), Version: 1}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/vss/getObject", wire.GetObjectRequest{StoreID: "wallet-1", Key: "k1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var getResp wire.GetObjectResponse
	decodeBody(t, resp, &getResp)
	require.NotNil(t, getResp.Value)
	require.Equal(t, []byte("v2"), getResp.Value.Value)
	require.Equal(t, int64(2), getResp.Value.Version)
}

func TestE2E_ConditionalUpdateConflict(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv, "/vss/putObjects", wire.PutObjectRequest{
		StoreID:          "wallet-1",
		TransactionItems: []wire.KeyValue{{Key: "k1", Value: []byte("v1"), Version: 0}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/vss/putObjects", wire.PutObjectRequest{
		StoreID:          "wallet-1",
		TransactionItems: []wire.KeyValue{{Key: "k1", Value: []byte("v2"), Version: 5}},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp wire.ErrorResponse
	decodeBody(t, resp, &errResp)
	require.Equal(t, wire.ErrorCodeConflict, errResp.ErrorCode)
}

func TestE2E_BatchRollsBackWhollyOnOneConflict(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv, "/vss/putObjects", wire.PutObjectRequest{
		StoreID: "wallet-1",
		TransactionItems: []wire.KeyValue{
			{Key: "ok", Value: []byte("v1"), Version: 0},
			{Key: "missing", Value: []byte("v2"), Version: 9},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp2 := postJSON(t, srv, "/vss/getObject", wire.GetObjectRequest{StoreID: "wallet-1", Key: "ok"})
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestE2E_DeleteOfWrongVersionStillSucceeds(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv, "/vss/deleteObject", wire.DeleteObjectRequest{
		StoreID:  "wallet-1",
		KeyValue: wire.KeyValue{Key: "never-existed", Version: 99},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_TestSentryRouteResponds(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	// With no DSN configured the capture calls are no-ops; the route must
	// still answer so operators can probe it before wiring up Sentry.
	resp, err := http.Get(srv.URL + "/vss/testSentry")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_ListPaginatesPast100Keys(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	items := make([]wire.KeyValue, 250)
	for i := range items {
		items[i] = wire.KeyValue{Key: fmt.Sprintf("k-%03d", i), Value: []byte("v"), Version: 0}
	}
	// Put in batches under MaxBatchSize.
	for start := 0; start < len(items); start += 100 {
		end := start + 100
		if end > len(items) {
			end = len(items)
		}
		resp := postJSON(t, srv, "/vss/putObjects", wire.PutObjectRequest{
			StoreID:          "wallet-1",
			TransactionItems: items[start:end],
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	seen := map[string]bool{}
	pageToken := ""
	pages := 0
	for {
		resp := postJSON(t, srv, "/vss/listKeyVersions", wire.ListKeyVersionsRequest{
			StoreID:   "wallet-1",
			PageToken: &pageToken,
		})
		var listResp wire.ListKeyVersionsResponse
		decodeBody(t, resp, &listResp)
		pages++

		for _, kv := range listResp.KeyVersions {
			seen[kv.Key] = true
		}
		if listResp.NextPageToken == nil || *listResp.NextPageToken == "" {
			break
		}
		pageToken = *listResp.NextPageToken
		require.Less(t, pages, 10, "pagination did not converge")
	}
	require.Len(t, seen, 250)
}

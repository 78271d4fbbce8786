package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/info":
			// nolint
			json.NewEncoder(w).Encode(indexInfo{Name: "deposits", Size: 3, FullDepositAmount: 7})
		case "/v1/blocks":
			require.Equal(t, jsonContentType, r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusBadRequest)
			// nolint
			w.Write([]byte(`{"error":"INVALID_BLOCK_HEIGHT (4): expected block at height 3, got 5",` +
				`"code":4,"name":"INVALID_BLOCK_HEIGHT","metadata":{"expected_height":"3"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			// nolint
			w.Write([]byte("upstream down"))
		}
	}))
	defer server.Close()

	info, err := get[indexInfo](server.URL + "/v1/info")
	require.NoError(t, err)
	require.Equal(t, uint32(3), info.Size)
	require.Equal(t, int64(7), info.FullDepositAmount)
	require.Contains(t, info.String(), "last checkpoint: never")

	_, err = post[indexInfo](server.URL+"/v1/blocks", map[string]any{"height": 5, "amount": 1})
	require.EqualError(t, err,
		"INVALID_BLOCK_HEIGHT (4): expected block at height 3, got 5 [expected_height=3]",
	)

	_, err = do(http.MethodGet, server.URL+"/v1/other", nil, "")
	require.EqualError(t, err, "request failed with status 502: upstream down")
}

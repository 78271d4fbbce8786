package httpservice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arkade-os/depositd/internal/core/application"
	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/internal/infrastructure/db"
	"github.com/arkade-os/depositd/internal/infrastructure/metrics"
	httpservice "github.com/arkade-os/depositd/internal/interface/http"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type apiError struct {
	Error    string            `json:"error"`
	Code     uint16            `json:"code"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

type info struct {
	Name              string `json:"name"`
	Size              uint32 `json:"size"`
	Entries           int    `json:"entries"`
	FullDepositAmount int64  `json:"full_deposit_amount"`
	Dirty             bool   `json:"dirty"`
}

func newTestRouter(t *testing.T) (*gin.Engine, application.Service) {
	t.Helper()

	repoManager, err := db.NewService(db.ServiceConfig{
		DataStoreType:   "badger",
		DataStoreConfig: []interface{}{"", nil},
	})
	require.NoError(t, err)

	appSvc, err := application.NewService(
		application.Config{IndexName: "test"}, repoManager, nil, nil, nil, nil, nil,
	)
	require.NoError(t, err)
	require.Nil(t, appSvc.Start(context.Background()))
	t.Cleanup(appSvc.Stop)

	collector := metrics.NewCollector()
	return httpservice.NewHandler(appSvc, collector.Handler(), 1<<20), appSvc
}

func do(
	t *testing.T, router http.Handler, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestBlocksAndQueries(t *testing.T) {
	router, _ := newTestRouter(t)

	for h, amount := range []int64{0, 100, 100, 250} {
		rec := do(t, router, http.MethodPost, "/v1/blocks", map[string]any{
			"height": h, "amount": amount,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := do(t, router, http.MethodPost, "/v1/blocks/deltas", map[string]any{
		"height": 4, "hash": "ab", "locked": 50, "unlocked": 20,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[info](t, rec)
	require.Equal(t, uint32(5), got.Size)
	require.Equal(t, int64(280), got.FullDepositAmount)
	require.Equal(t, 3, got.Entries)
	require.True(t, got.Dirty)

	rec = do(t, router, http.MethodGet, "/v1/deposits/full", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"amount":280}`, rec.Body.String())

	testCases := []struct {
		path     string
		expected string
	}{
		{"/v1/deposits/height/0", `{"height":0,"amount":0}`},
		{"/v1/deposits/height/2", `{"height":2,"amount":100}`},
		{"/v1/deposits/height/3", `{"height":3,"amount":250}`},
		{"/v1/deposits/height/4294967295", `{"height":4294967295,"amount":280}`},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tc.path, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			require.JSONEq(t, tc.expected, rec.Body.String())
		})
	}

	rec = do(t, router, http.MethodGet, "/v1/deposits/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[struct {
		Entries []domain.DepositIndexEntry `json:"entries"`
	}](t, rec)
	require.Equal(t, []domain.DepositIndexEntry{
		{Height: 1, Amount: 100}, {Height: 3, Amount: 250}, {Height: 4, Amount: 280},
	}, entries.Entries)

	rec = do(t, router, http.MethodPost, "/v1/rollback", map[string]any{"from": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	rolledBack := decode[struct {
		Removed uint32 `json:"removed"`
		Info    info   `json:"info"`
	}](t, rec)
	require.Equal(t, uint32(3), rolledBack.Removed)
	require.Equal(t, uint32(2), rolledBack.Info.Size)
	require.Equal(t, int64(100), rolledBack.Info.FullDepositAmount)

	rec = do(t, router, http.MethodDelete, "/v1/blocks/tip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint32(1), decode[info](t, rec).Size)

	rec = do(t, router, http.MethodPost, "/v1/checkpoint", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[info](t, rec).Dirty)

	rec = do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"underflow", http.MethodDelete, "/v1/blocks/tip", nil, http.StatusBadRequest, "INDEX_UNDERFLOW"},
		{"height gap", http.MethodPost, "/v1/blocks", map[string]any{"height": 5, "amount": 1}, http.StatusBadRequest, "INVALID_BLOCK_HEIGHT"},
		{"negative total", http.MethodPost, "/v1/blocks", map[string]any{"height": 0, "amount": -1}, http.StatusBadRequest, "NEGATIVE_DEPOSIT_AMOUNT"},
		{"missing amount", http.MethodPost, "/v1/blocks", map[string]any{"height": 0}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"missing from", http.MethodPost, "/v1/rollback", map[string]any{}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad height", http.MethodGet, "/v1/deposits/height/abc", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"height overflow", http.MethodGet, "/v1/deposits/height/4294967296", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"truncated snapshot", http.MethodPut, "/v1/snapshot", []byte{domain.SnapshotVersion, 0x01, 0x00}, http.StatusInternalServerError, "SERIALIZATION_FAILED"},
		{"unknown route", http.MethodGet, "/v2/info", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.code, decode[apiError](t, rec).Name)
		})
	}

	rec := do(t, router, http.MethodGet, "/v1/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, decode[info](t, rec).Size)
}

func TestSnapshot(t *testing.T) {
	router, _ := newTestRouter(t)

	for h, amount := range []int64{5, 5, 7} {
		rec := do(t, router, http.MethodPost, "/v1/blocks", map[string]any{
			"height": h, "amount": amount,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	snapshot := rec.Body.Bytes()

	other, _ := newTestRouter(t)
	rec = do(t, other, http.MethodPut, "/v1/snapshot", snapshot)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[info](t, rec)
	require.Equal(t, uint32(3), got.Size)
	require.Equal(t, int64(7), got.FullDepositAmount)

	// Entries out of order.
	corrupt := []byte{
		domain.SnapshotVersion,
		0x02,
		0x05, 0x00, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0,
		0x01, 0x00, 0x00, 0x00, 0x02, 0, 0, 0, 0, 0, 0, 0,
		0x06, 0x00, 0x00, 0x00,
	}
	rec = do(t, other, http.MethodPut, "/v1/snapshot", corrupt)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "CORRUPT_INDEX", decode[apiError](t, rec).Name)

	rec = do(t, other, http.MethodGet, "/v1/deposits/full", nil)
	require.JSONEq(t, `{"amount":7}`, rec.Body.String())
}

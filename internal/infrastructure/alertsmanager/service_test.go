package alertsmanager_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/arkade-os/depositd/internal/core/ports"
	"github.com/arkade-os/depositd/internal/infrastructure/alertsmanager"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("deep rollback", func(t *testing.T) {
		var received []alertsmanager.Alert
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		svc := alertsmanager.NewService(server.URL)
		err := svc.Publish(ctx, ports.DeepRollback, ports.RollbackAlert{
			Index: "deposits", From: 90, Removed: 10, Size: 90, FullAmount: 1000,
		})
		require.NoError(t, err)
		require.Len(t, received, 1)
		require.Equal(t, "Deep Rollback", received[0].Labels["alertname"])
		require.Equal(t, "deposits", received[0].Labels["index"])
		require.Equal(t, "warning", received[0].Labels["severity"])
		require.Contains(t, received[0].Annotations["description"], "Blocks removed: 10")
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		svc := alertsmanager.NewService(server.URL)
		err := svc.Publish(ctx, ports.CheckpointFailed, ports.CheckpointFailedAlert{
			Index: "deposits", Size: 5, Error: "disk full",
		})
		require.NoError(t, err)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		svc := alertsmanager.NewService(server.URL)
		err := svc.Publish(ctx, ports.Topic("Other"), "hello")
		require.ErrorContains(t, err, "unexpected status 400")
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("invalid message", func(t *testing.T) {
		svc := alertsmanager.NewService("http://127.0.0.1:1")
		err := svc.Publish(ctx, ports.DeepRollback, "not an alert")
		require.ErrorContains(t, err, "invalid message type")
	})
}

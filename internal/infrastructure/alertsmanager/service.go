package alertsmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/arkade-os/depositd/internal/core/ports"
)

const (
	serviceName = "depositd"

	maxRetries = 5
	baseDelay  = 100 * time.Millisecond
)

type Alert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
}

type service struct {
	url        string
	httpClient *http.Client
}

// NewService posts alerts to the v2 alerts endpoint of an Alertmanager,
// eg. http://localhost:9093/api/v2/alerts.
func NewService(alertManagerURL string) ports.Alerts {
	return &service{
		url: alertManagerURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *service) Publish(ctx context.Context, topic ports.Topic, message any) error {
	labels := map[string]string{
		"alertname": string(topic),
		"service":   serviceName,
	}
	annotations := map[string]string{}

	switch topic {
	case ports.DeepRollback:
		m, ok := message.(ports.RollbackAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		labels["severity"] = "warning"
		labels["index"] = m.Index
		annotations["firing_title"] = "⛓️ Deep Rollback"
		annotations["description"] = formatRollbackAlert(m)
	case ports.CheckpointFailed:
		m, ok := message.(ports.CheckpointFailedAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		labels["severity"] = "critical"
		labels["index"] = m.Index
		annotations["firing_title"] = "💾 Checkpoint Failed"
		annotations["description"] = formatDetails(map[string]any{
			"Index size": m.Size,
			"Error":      m.Error,
		})
	default:
		labels["severity"] = "info"
		annotations["firing_title"] = fmt.Sprintf("🔔 %s", topic)
		annotations["description"] = formatDetails(map[string]any{"event": message})
	}

	alert := Alert{
		Labels:      labels,
		Annotations: annotations,
		StartsAt:    time.Now(),
	}
	if err := s.sendAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to send alert to AlertManager: %w", err)
	}
	return nil
}

// sendAlert retries network errors and 5xx responses with exponential
// backoff, 4xx responses fail immediately.
func (s *service) sendAlert(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal([]Alert{alert})
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			select {
			case <-time.After(baseDelay * time.Duration(1<<uint(attempt-1))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return fmt.Errorf("%w after %d attempts", lastErr, attempt+1)
		}
	}

	return fmt.Errorf("failed to send alert after %d attempts: %w", maxRetries, lastErr)
}

func formatRollbackAlert(data ports.RollbackAlert) string {
	lines := []string{
		fmt.Sprintf("*Index:* `%s`", data.Index),
		fmt.Sprintf("• Rolled back from height: %d", data.From),
		fmt.Sprintf("• Blocks removed: %d", data.Removed),
		fmt.Sprintf("• New size: %d", data.Size),
		fmt.Sprintf("• Deposit amount at tip: %d", data.FullAmount),
	}
	return strings.Join(lines, "\n")
}

func formatDetails(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("• %s: %v", key, data[key]))
	}
	return strings.Join(lines, "\n")
}

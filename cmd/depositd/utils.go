package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	timeout             = 30 * time.Second
	jsonContentType     = "application/json"
	snapshotContentType = "application/octet-stream"
)

type indexInfo struct {
	Name               string `json:"name"`
	Size               uint32 `json:"size"`
	Entries            int    `json:"entries"`
	FullDepositAmount  int64  `json:"full_deposit_amount"`
	Dirty              bool   `json:"dirty"`
	LastCheckpointAt   int64  `json:"last_checkpoint_at"`
	CheckpointInterval int64  `json:"checkpoint_interval"`
	CheckpointUnit     string `json:"checkpoint_unit,omitempty"`
}

func (i indexInfo) String() string {
	lastCheckpoint := "never"
	if i.LastCheckpointAt > 0 {
		lastCheckpoint = time.Unix(i.LastCheckpointAt, 0).Format(time.DateTime)
	}
	return fmt.Sprintf(
		"name: %s\nsize: %d\nentries: %d\nfull deposit amount: %d\n"+
			"unsaved changes: %t\nlast checkpoint: %s",
		i.Name, i.Size, i.Entries, i.FullDepositAmount, i.Dirty, lastCheckpoint,
	)
}

type apiError struct {
	Error    string            `json:"error"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

func get[T any](url string) (result T, err error) {
	buf, err := do(http.MethodGet, url, nil, "")
	if err != nil {
		return
	}
	err = json.Unmarshal(buf, &result)
	return
}

func post[T any](url string, body any) (result T, err error) {
	return sendJSON[T](http.MethodPost, url, body)
}

func sendJSON[T any](method, url string, body any) (result T, err error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return result, err
		}
		reader = bytes.NewReader(payload)
	}
	buf, err := do(method, url, reader, jsonContentType)
	if err != nil {
		return
	}
	err = json.Unmarshal(buf, &result)
	return
}

func do(method, url string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Add("Content-Type", contentType)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// nolint
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp.StatusCode, buf)
	}
	return buf, nil
}

func parseError(status int, buf []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(buf, &apiErr); err != nil || apiErr.Name == "" {
		return fmt.Errorf("request failed with status %d: %s", status, buf)
	}
	if len(apiErr.Metadata) == 0 {
		return fmt.Errorf("%s", apiErr.Error)
	}
	details := make([]string, 0, len(apiErr.Metadata))
	for k, v := range apiErr.Metadata {
		details = append(details, fmt.Sprintf("%s=%s", k, v))
	}
	return fmt.Errorf("%s [%s]", apiErr.Error, strings.Join(details, " "))
}

package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mute-schedule-backend/config"
)

// HTTPBackend talks to a bot gateway over its JSON HTTP API.
type HTTPBackend struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPBackend builds a backend from configuration.
func NewHTTPBackend(cfg config.ActionBackendConfig) *HTTPBackend {
	return &HTTPBackend{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		token:   cfg.AccessToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name implements Backend.
func (b *HTTPBackend) Name() string {
	if b.name != "" {
		return b.name
	}
	return b.baseURL
}

// SetMuted implements Backend.
func (b *HTTPBackend) SetMuted(ctx context.Context, entityID string, muted bool) error {
	return b.post(ctx, "/api/set_muted", map[string]any{
		"entity_id": entityID,
		"muted":     muted,
	})
}

// SendMessage implements Backend.
func (b *HTTPBackend) SendMessage(ctx context.Context, entityID string, text string) error {
	return b.post(ctx, "/api/send_message", map[string]any{
		"entity_id": entityID,
		"text":      text,
	})
}

func (b *HTTPBackend) post(ctx context.Context, path string, payload map[string]any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var gw struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &gw); err != nil {
		return fmt.Errorf("failed to unmarshal gateway response: %w", err)
	}
	if gw.Code != 0 {
		return fmt.Errorf("gateway returned non-zero application code %d: %s", gw.Code, gw.Message)
	}
	return nil
}

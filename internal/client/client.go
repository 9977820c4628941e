// Package client talks to a running sessionhub server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joescharf/sessionhub/internal/coordinator"
	apperrors "github.com/joescharf/sessionhub/internal/errors"
)

// Client calls the sessionhub REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

type wireResponse struct {
	Success   bool            `json:"success"`
	SessionID *uuid.UUID      `json:"sessionId"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CreateSession calls POST /api/session/create.
func (c *Client) CreateSession(ctx context.Context, req coordinator.CreateRequest) (*coordinator.Response, error) {
	return c.envelope(ctx, http.MethodPost, "/api/session/create", req)
}

// SyncProjectState calls POST /api/session/sync.
func (c *Client) SyncProjectState(ctx context.Context, req coordinator.SyncRequest) (*coordinator.Response, error) {
	return c.envelope(ctx, http.MethodPost, "/api/session/sync", req)
}

// DeployToMaster calls POST /api/session/deploy.
func (c *Client) DeployToMaster(ctx context.Context, req coordinator.DeployRequest) (*coordinator.Response, error) {
	return c.envelope(ctx, http.MethodPost, "/api/session/deploy", req)
}

// GetStatus calls GET /api/session/status.
func (c *Client) GetStatus(ctx context.Context) (*coordinator.Response, error) {
	return c.envelope(ctx, http.MethodGet, "/api/session/status", nil)
}

// GetSession calls GET /api/session/{id}.
func (c *Client) GetSession(ctx context.Context, id string) (*coordinator.Response, error) {
	return c.envelope(ctx, http.MethodGet, "/api/session/"+url.PathEscape(strings.TrimSpace(id)), nil)
}

// CloseSession calls DELETE /api/session/{id}.
func (c *Client) CloseSession(ctx context.Context, id string) (*coordinator.Response, error) {
	return c.envelope(ctx, http.MethodDelete, "/api/session/"+url.PathEscape(strings.TrimSpace(id)), nil)
}

// ListEvents calls GET /api/events.
func (c *Client) ListEvents(ctx context.Context, sessionID string, limit int) (*coordinator.Response, error) {
	q := url.Values{}
	if sessionID != "" {
		q.Set("sessionId", sessionID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.envelope(ctx, http.MethodGet, path, nil)
}

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) (*coordinator.Health, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned %s", resp.Status)
	}
	var h coordinator.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &h, nil
}

// envelope performs a request and decodes the response envelope. A failure
// envelope is not a Go error; its Err is reconstructed from the HTTP status.
func (c *Client) envelope(ctx context.Context, method, path string, body any) (*coordinator.Response, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}

	out := &coordinator.Response{
		Success:   w.Success,
		SessionID: w.SessionID,
		Message:   w.Message,
	}
	if len(w.Data) > 0 && string(w.Data) != "null" {
		out.Data = w.Data
	}
	if !w.Success {
		out.Err = fmt.Errorf("%w: %s", sentinelFor(resp.StatusCode, w.Message), w.Message)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func sentinelFor(status int, message string) error {
	switch status {
	case http.StatusBadRequest:
		return apperrors.ErrMalformedRequest
	case http.StatusForbidden:
		return apperrors.ErrPermissionDenied
	case http.StatusNotFound:
		return apperrors.ErrSessionNotFound
	case http.StatusConflict:
		return apperrors.ErrSessionInactive
	case http.StatusBadGateway:
		switch {
		case strings.HasPrefix(message, "Platform validation failed"):
			return apperrors.ErrPlatformValidation
		case strings.HasPrefix(message, "Platform setup failed"):
			return apperrors.ErrPlatformInit
		case strings.HasPrefix(message, "Sync failed"):
			return apperrors.ErrPlatformSync
		}
		return apperrors.ErrPlatformDeploy
	}
	return apperrors.ErrInternal
}

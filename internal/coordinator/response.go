package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joescharf/sessionhub/internal/models"
)

// Response is the envelope every operation returns. Err carries the
// underlying failure for the transport layer and is never serialized.
type Response struct {
	Success   bool       `json:"success"`
	SessionID *uuid.UUID `json:"sessionId"`
	Message   string     `json:"message"`
	Data      any        `json:"data,omitempty"`
	Err       error      `json:"-"`
}

// DecodeData unmarshals Data into v. Data may be a typed value or raw JSON
// received over the wire.
func (r *Response) DecodeData(v any) error {
	if r.Data == nil {
		return fmt.Errorf("response has no data")
	}
	raw, ok := r.Data.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(r.Data); err != nil {
			return fmt.Errorf("encode data: %w", err)
		}
	}
	return json.Unmarshal(raw, v)
}

func succeed(id *uuid.UUID, msg string, data any) *Response {
	return &Response{Success: true, SessionID: id, Message: msg, Data: data}
}

func fail(id *uuid.UUID, err error, msg string) *Response {
	return &Response{SessionID: id, Message: msg, Err: err}
}

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

// CreateRequest is the input of CreateSession.
type CreateRequest struct {
	Platform  string            `json:"platform"`
	User      UserRequest       `json:"userDetails"`
	Toolchain *ToolchainRequest `json:"toolchain,omitempty"`
}

// ToolchainRequest overrides the default toolchain field by field. Omitted
// fields keep their defaults.
type ToolchainRequest struct {
	Version      string   `json:"version,omitempty"`
	Edition      string   `json:"edition,omitempty"`
	Target       string   `json:"target,omitempty"`
	Features     []string `json:"features,omitempty"`
	WasmSupport  *bool    `json:"wasmSupport,omitempty"`
	Optimization string   `json:"optimization,omitempty"`
}

// Toolchain merges the request over models.DefaultToolchain. A nil request
// yields the defaults.
func (r *ToolchainRequest) Toolchain() (models.ToolchainConfig, error) {
	tc := models.DefaultToolchain()
	if r == nil {
		return tc, nil
	}
	if r.Version != "" {
		tc.Version = r.Version
	}
	if r.Edition != "" {
		tc.Edition = r.Edition
	}
	if r.Target != "" {
		tc.Target = r.Target
	}
	if len(r.Features) > 0 {
		tc.Features = append([]string(nil), r.Features...)
	}
	if r.WasmSupport != nil {
		tc.WasmSupport = *r.WasmSupport
	}
	if r.Optimization != "" {
		o, err := models.ParseOptimization(r.Optimization)
		if err != nil {
			return models.ToolchainConfig{}, err
		}
		tc.Optimization = o
	}
	return tc, nil
}

// UserRequest carries the user details of a create request. Credentials
// arrive in plain text and are obfuscated before they are stored.
type UserRequest struct {
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	Permissions []string          `json:"permissions,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// SyncRequest is the input of SyncProjectState.
type SyncRequest struct {
	SessionID    string               `json:"sessionId"`
	ProjectState *models.ProjectState `json:"projectState"`
}

// DeployRequest is the input of DeployToMaster.
type DeployRequest struct {
	SessionID string `json:"sessionId"`
}

// CreateData is returned by a successful create.
type CreateData struct {
	Token        string `json:"token"`
	Platform     string `json:"platform"`
	PlatformName string `json:"platformName"`
}

// DeployData is returned by a successful deploy.
type DeployData struct {
	DeploymentURL string    `json:"deploymentUrl"`
	Timestamp     time.Time `json:"timestamp"`
	DeploymentID  string    `json:"deploymentId"`
}

// StatusData aggregates the active sessions.
type StatusData struct {
	ActiveSessions          int            `json:"activeSessions"`
	CompilationSuccessCount int            `json:"compilationSuccessCount"`
	DeploymentSuccessCount  int            `json:"deploymentSuccessCount"`
	PlatformDistribution    map[string]int `json:"platformDistribution"`
	SystemReady             bool           `json:"systemReady"`
}

// Health is the payload of the health endpoint. It is not wrapped in a
// Response.
type Health struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

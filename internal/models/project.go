package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CompilationState is the tag of a CompilationStatus.
type CompilationState string

const (
	CompilationSuccess    CompilationState = "success"
	CompilationError      CompilationState = "error"
	CompilationInProgress CompilationState = "in_progress"
	CompilationPending    CompilationState = "pending"
)

// CompilationStatus is a closed tagged variant. Detail is only carried by
// the success and error states.
type CompilationStatus struct {
	State  CompilationState
	Detail string
}

func CompilationSucceeded(detail string) CompilationStatus {
	return CompilationStatus{State: CompilationSuccess, Detail: detail}
}

func CompilationFailed(detail string) CompilationStatus {
	return CompilationStatus{State: CompilationError, Detail: detail}
}

func CompilationRunning() CompilationStatus {
	return CompilationStatus{State: CompilationInProgress}
}

func CompilationWaiting() CompilationStatus {
	return CompilationStatus{State: CompilationPending}
}

// ParseCompilationStatus accepts "state" or "state:detail".
func ParseCompilationStatus(s string) (CompilationStatus, error) {
	state, detail, _ := strings.Cut(strings.TrimSpace(s), ":")
	return newCompilationStatus(state, detail)
}

func newCompilationStatus(state, detail string) (CompilationStatus, error) {
	switch CompilationState(strings.ToLower(strings.TrimSpace(state))) {
	case CompilationSuccess:
		return CompilationSucceeded(detail), nil
	case CompilationError:
		return CompilationFailed(detail), nil
	case CompilationInProgress, "inprogress", "in-progress":
		return CompilationRunning(), nil
	case CompilationPending, "":
		return CompilationWaiting(), nil
	}
	return CompilationStatus{}, fmt.Errorf("unknown compilation status %q", state)
}

// IsSuccess reports whether the status is Success.
func (c CompilationStatus) IsSuccess() bool {
	return c.State == CompilationSuccess
}

func (c CompilationStatus) String() string {
	if c.Detail == "" {
		return string(c.State)
	}
	return string(c.State) + ": " + c.Detail
}

type compilationStatusJSON struct {
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

func (c CompilationStatus) MarshalJSON() ([]byte, error) {
	state := c.State
	if state == "" {
		state = CompilationPending
	}
	return json.Marshal(compilationStatusJSON{State: string(state), Detail: c.Detail})
}

// UnmarshalJSON accepts either a bare state string or {"state","detail"}.
func (c *CompilationStatus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := newCompilationStatus(s, "")
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var obj compilationStatusJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("compilation status: %w", err)
	}
	parsed, err := newCompilationStatus(obj.State, obj.Detail)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DeploymentStatus records the most recent successful deployment.
type DeploymentStatus struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TestResults summarizes a test run.
type TestResults struct {
	Total    int     `json:"totalTests"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Coverage float64 `json:"coverage"`
}

// ProjectState is the snapshot of a session's project. It is replaced
// wholesale on every sync.
type ProjectState struct {
	Branch        string            `json:"branch"`
	FilesModified []string          `json:"filesModified"`
	Compilation   CompilationStatus `json:"compilationStatus"`
	Deployment    *DeploymentStatus `json:"deploymentStatus,omitempty"`
	Tests         *TestResults      `json:"testResults,omitempty"`
}

// InitialProjectState is the state a new session starts with.
func InitialProjectState() ProjectState {
	return ProjectState{
		Branch:        "main",
		FilesModified: []string{},
		Compilation:   CompilationWaiting(),
	}
}

// Clone returns a deep copy.
func (p ProjectState) Clone() ProjectState {
	out := p
	if p.FilesModified != nil {
		out.FilesModified = append([]string(nil), p.FilesModified...)
	}
	if p.Deployment != nil {
		d := *p.Deployment
		out.Deployment = &d
	}
	if p.Tests != nil {
		t := *p.Tests
		out.Tests = &t
	}
	return out
}

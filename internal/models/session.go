package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionRecord is one tracked development session.
type SessionRecord struct {
	ID           uuid.UUID
	Platform     PlatformKind
	User         UserDetails
	Project      ProjectState
	Toolchain    ToolchainConfig
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
}

// Clone returns a deep copy that shares no mutable state with r.
func (r SessionRecord) Clone() SessionRecord {
	out := r
	out.User = r.User.Clone()
	out.Project = r.Project.Clone()
	out.Toolchain = r.Toolchain.Clone()
	return out
}

// Deployed reports whether the session has a recorded deployment.
func (r SessionRecord) Deployed() bool {
	return r.Project.Deployment != nil
}

// SessionView is the client-facing representation of a SessionRecord.
type SessionView struct {
	ID           string          `json:"id"`
	Platform     string          `json:"platform"`
	PlatformName string          `json:"platformName"`
	User         UserDetails     `json:"userDetails"`
	Project      ProjectState    `json:"projectState"`
	Toolchain    ToolchainConfig `json:"toolchain"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastActivity time.Time       `json:"lastActivity"`
	Active       bool            `json:"active"`
}

// View converts the record to its client-facing form.
func (r SessionRecord) View() SessionView {
	c := r.Clone()
	return SessionView{
		ID:           c.ID.String(),
		Platform:     c.Platform.String(),
		PlatformName: c.Platform.DisplayName(),
		User:         c.User,
		Project:      c.Project,
		Toolchain:    c.Toolchain,
		CreatedAt:    c.CreatedAt,
		LastActivity: c.LastActivity,
		Active:       c.Active,
	}
}

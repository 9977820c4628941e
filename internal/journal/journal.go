// Package journal records an audit trail of coordinator events. It is a
// log of what happened, not a store of session state.
package journal

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind names the coordinator operation an event records.
type Kind string

const (
	KindCreated  Kind = "session.created"
	KindSynced   Kind = "session.synced"
	KindDeployed Kind = "session.deployed"
	KindClosed   Kind = "session.closed"
	KindExpired  Kind = "session.expired"
	KindPurged   Kind = "session.purged"
)

// DefaultLimit caps List when the caller passes no limit.
const DefaultLimit = 50

// Event is one journal entry. SessionID is empty for system events such
// as sweeps.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	Kind      Kind      `json:"kind"`
	Platform  string    `json:"platform,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows List.
type Filter struct {
	SessionID string
	Limit     int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// Journal is implemented by the memory and SQLite backends.
type Journal interface {
	// Append stores e, filling ID and CreatedAt when empty.
	Append(ctx context.Context, e *Event) error
	// List returns matching events, newest first.
	List(ctx context.Context, f Filter) ([]Event, error)
	Close() error
}

func stamp(e *Event) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}

// Package registry holds the authoritative in-memory set of sessions.
package registry

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/joescharf/sessionhub/internal/errors"
	"github.com/joescharf/sessionhub/internal/models"
)

// Registry is a thread-safe map of session id to record. Records never
// leave the registry by reference; every accessor returns a deep copy.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.SessionRecord
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[uuid.UUID]*models.SessionRecord),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new active session with the initial project state.
func (r *Registry) Create(platform models.PlatformKind, user models.UserDetails, toolchain models.ToolchainConfig) models.SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	for r.sessions[id] != nil {
		id = uuid.New()
	}

	now := r.now()
	rec := &models.SessionRecord{
		ID:           id,
		Platform:     platform,
		User:         user.Clone(),
		Project:      models.InitialProjectState(),
		Toolchain:    toolchain.Clone(),
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
	}
	r.sessions[id] = rec
	return rec.Clone()
}

// Get returns a copy of the session.
func (r *Registry) Get(id uuid.UUID) (models.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[id]
	if !ok {
		return models.SessionRecord{}, apperrors.ErrSessionNotFound
	}
	return rec.Clone(), nil
}

// UpdateProjectState replaces the session's project state. The recorded
// deployment is owned by MarkDeployed and carried forward.
func (r *Registry) UpdateProjectState(id uuid.UUID, state models.ProjectState) (models.SessionRecord, error) {
	return r.mutate(id, func(rec *models.SessionRecord) {
		next := state.Clone()
		next.Deployment = rec.Project.Deployment
		rec.Project = next
	})
}

// MarkDeployed records a successful deployment on the session.
func (r *Registry) MarkDeployed(id uuid.UUID, status models.DeploymentStatus) (models.SessionRecord, error) {
	return r.mutate(id, func(rec *models.SessionRecord) {
		d := status
		rec.Project.Deployment = &d
	})
}

// Close marks the session inactive. Closing a closed session is an error.
func (r *Registry) Close(id uuid.UUID) (models.SessionRecord, error) {
	return r.mutate(id, func(rec *models.SessionRecord) {
		rec.Active = false
	})
}

func (r *Registry) mutate(id uuid.UUID, fn func(*models.SessionRecord)) (models.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return models.SessionRecord{}, apperrors.ErrSessionNotFound
	}
	if !rec.Active {
		return models.SessionRecord{}, apperrors.ErrSessionInactive
	}
	fn(rec)
	r.touch(rec)
	return rec.Clone(), nil
}

// touch bumps LastActivity without ever moving it backwards.
func (r *Registry) touch(rec *models.SessionRecord) {
	if now := r.now(); now.After(rec.LastActivity) {
		rec.LastActivity = now
	}
}

// SnapshotActive returns copies of all active sessions ordered by creation
// time, then id.
func (r *Registry) SnapshotActive() []models.SessionRecord {
	r.mu.RLock()
	out := make([]models.SessionRecord, 0, len(r.sessions))
	for _, rec := range r.sessions {
		if rec.Active {
			out = append(out, rec.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

// ExpireIdle marks active sessions idle for longer than maxIdle inactive
// and returns how many were expired. A non-positive maxIdle disables expiry.
func (r *Registry) ExpireIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	n := 0
	for _, rec := range r.sessions {
		if rec.Active && rec.LastActivity.Before(cutoff) {
			rec.Active = false
			n++
		}
	}
	return n
}

// Purge deletes inactive sessions whose last activity is older than
// retention and returns how many were removed. A non-positive retention
// disables purging.
func (r *Registry) Purge(retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-retention)
	n := 0
	for id, rec := range r.sessions {
		if !rec.Active && rec.LastActivity.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of registered sessions, active or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

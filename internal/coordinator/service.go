// Package coordinator orchestrates session operations: it validates
// requests, applies them to the registry and delegates the platform side
// effects to adapters.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	apperrors "github.com/joescharf/sessionhub/internal/errors"
	"github.com/joescharf/sessionhub/internal/journal"
	"github.com/joescharf/sessionhub/internal/models"
	"github.com/joescharf/sessionhub/internal/platform"
	"github.com/joescharf/sessionhub/internal/registry"
	"github.com/joescharf/sessionhub/internal/security"
)

const (
	ServiceName           = "sessionhub"
	DefaultAdapterTimeout = 30 * time.Second
	deployTarget          = "master"
)

// Service is the entry point for every session operation.
type Service struct {
	registry *registry.Registry
	dir      *platform.Directory
	guard    *security.Guard
	journal  journal.Journal
	logger   zerolog.Logger

	adapterTimeout time.Duration
	version        string
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAdapterTimeout bounds every platform adapter call.
func WithAdapterTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.adapterTimeout = d
		}
	}
}

// WithVersion sets the version reported by HealthCheck.
func WithVersion(v string) Option {
	return func(s *Service) {
		s.version = v
	}
}

// WithClock overrides the time source for deployment and health timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires the coordinator. A nil journal disables auditing.
func NewService(reg *registry.Registry, dir *platform.Directory, guard *security.Guard, j journal.Journal, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		registry:       reg,
		dir:            dir,
		guard:          guard,
		journal:        j,
		logger:         logger,
		adapterTimeout: DefaultAdapterTimeout,
		version:        "dev",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession validates the platform, registers the session and
// initializes it on the platform. An initialize failure leaves the session
// registered and reports the failure together with its id.
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) *Response {
	username := strings.TrimSpace(req.User.Username)
	if username == "" {
		return fail(nil, apperrors.Wrapf(apperrors.ErrMalformedRequest, "missing userDetails.username"),
			"Malformed request: missing userDetails.username")
	}
	perms, err := parsePermissions(req.User.Permissions)
	if err != nil {
		return fail(nil, err, "Malformed request: "+err.Error())
	}

	toolchain, err := req.Toolchain.Toolchain()
	if err != nil {
		return fail(nil, apperrors.Wrapf(apperrors.ErrMalformedRequest, "%v", err), "Malformed request: "+err.Error())
	}

	kind := models.ParsePlatform(req.Platform)
	adapter := s.dir.For(kind)
	log := s.logger.With().Str("platform", kind.String()).Str("user", username).Logger()

	if err := s.callAdapter(ctx, func(ctx context.Context) error { return adapter.Validate(ctx) }); err != nil {
		perr := platformError(apperrors.ErrPlatformValidation, err)
		log.Warn().Err(perr).Msg("platform validation failed")
		s.record(ctx, journal.Event{Kind: journal.KindCreated, Platform: kind.String(), Message: perr.Error()})
		return fail(nil, perr, fmt.Sprintf("Platform validation failed: %v", err))
	}

	user := models.UserDetails{
		Username:    username,
		Email:       strings.TrimSpace(req.User.Email),
		Credentials: s.guard.ObfuscateCredentials(req.User.Credentials),
		Permissions: perms,
	}
	rec := s.registry.Create(kind, user, toolchain)
	id := idPtr(rec.ID)
	log = log.With().Str("session_id", rec.ID.String()).Logger()

	if err := s.callAdapter(ctx, func(ctx context.Context) error { return adapter.Initialize(ctx, rec.ID) }); err != nil {
		perr := platformError(apperrors.ErrPlatformInit, err)
		log.Warn().Err(perr).Msg("platform setup failed; session remains registered")
		s.record(ctx, journal.Event{SessionID: rec.ID.String(), Kind: journal.KindCreated, Platform: kind.String(), Message: perr.Error()})
		return fail(id, perr, fmt.Sprintf("Platform setup failed: %v", err))
	}

	token, err := s.guard.IssueToken(rec.ID)
	if err != nil {
		log.Error().Err(err).Msg("issue session token")
		token = rec.ID.String()
	}

	msg := fmt.Sprintf("Session created successfully on %s", kind.DisplayName())
	log.Info().Msg("session created")
	s.record(ctx, journal.Event{SessionID: rec.ID.String(), Kind: journal.KindCreated, Platform: kind.String(), Success: true, Message: msg})
	return succeed(id, msg, CreateData{Token: token, Platform: kind.String(), PlatformName: kind.DisplayName()})
}

// SyncProjectState replaces the session's project state and propagates it
// to the platform. The registry update is kept even if the platform sync
// fails.
func (s *Service) SyncProjectState(ctx context.Context, req SyncRequest) *Response {
	id, err := s.guard.ParseToken(req.SessionID)
	if err != nil {
		return fail(nil, err, fmt.Sprintf("Invalid session id: %v", err))
	}
	if req.ProjectState == nil {
		return fail(idPtr(id), apperrors.Wrapf(apperrors.ErrMalformedRequest, "missing projectState"),
			"Malformed request: missing projectState")
	}

	rec, resp := s.lookup(id, models.PermissionWrite, "sync")
	if resp != nil {
		return resp
	}

	state := *req.ProjectState
	if state.Compilation.State == "" {
		state.Compilation = models.CompilationWaiting()
	}
	updated, err := s.registry.UpdateProjectState(id, state)
	if err != nil {
		return s.sessionFailure(id, err)
	}

	adapter := s.dir.For(rec.Platform)
	log := s.logger.With().Str("session_id", id.String()).Str("platform", rec.Platform.String()).Logger()
	if err := s.callAdapter(ctx, func(ctx context.Context) error { return adapter.Sync(ctx, id, updated.Project) }); err != nil {
		perr := platformError(apperrors.ErrPlatformSync, err)
		log.Warn().Err(perr).Msg("platform sync failed")
		s.record(ctx, journal.Event{SessionID: id.String(), Kind: journal.KindSynced, Platform: rec.Platform.String(), Message: perr.Error()})
		return fail(idPtr(id), perr, fmt.Sprintf("Sync failed: %v", err))
	}

	log.Info().
		Str("branch", updated.Project.Branch).
		Int("files", len(updated.Project.FilesModified)).
		Str("compilation", updated.Project.Compilation.String()).
		Msg("project state synced")
	msg := "Project state synchronized"
	s.record(ctx, journal.Event{SessionID: id.String(), Kind: journal.KindSynced, Platform: rec.Platform.String(), Success: true, Message: msg})
	return succeed(idPtr(id), msg, nil)
}

// DeployToMaster deploys the session and records the deployment on success.
func (s *Service) DeployToMaster(ctx context.Context, req DeployRequest) *Response {
	id, err := s.guard.ParseToken(req.SessionID)
	if err != nil {
		return fail(nil, err, fmt.Sprintf("Invalid session id: %v", err))
	}

	rec, resp := s.lookup(id, models.PermissionDeploy, "deploy")
	if resp != nil {
		return resp
	}

	adapter := s.dir.For(rec.Platform)
	log := s.logger.With().Str("session_id", id.String()).Str("platform", rec.Platform.String()).Logger()

	var url string
	if err := s.callAdapter(ctx, func(ctx context.Context) error {
		var err error
		url, err = adapter.Deploy(ctx, id)
		return err
	}); err != nil {
		perr := platformError(apperrors.ErrPlatformDeploy, err)
		log.Warn().Err(perr).Msg("deployment failed")
		s.record(ctx, journal.Event{SessionID: id.String(), Kind: journal.KindDeployed, Platform: rec.Platform.String(), Message: perr.Error()})
		return fail(idPtr(id), perr, fmt.Sprintf("Deployment failed: %v", err))
	}

	status := models.DeploymentStatus{
		ID:        ulid.Make().String(),
		Target:    deployTarget,
		Status:    "deployed",
		URL:       url,
		Timestamp: s.now().UTC(),
	}
	data := DeployData{DeploymentURL: url, Timestamp: status.Timestamp, DeploymentID: status.ID}
	if _, err := s.registry.MarkDeployed(id, status); err != nil {
		// The platform deployed; only the bookkeeping was lost.
		msg := fmt.Sprintf("Deployed to %s, but the deployment could not be recorded: %v", deployTarget, err)
		log.Warn().Err(err).Str("url", url).Str("deployment_id", status.ID).Msg("deployment not recorded")
		s.record(ctx, journal.Event{SessionID: id.String(), Kind: journal.KindDeployed, Platform: rec.Platform.String(), Success: true, Message: msg})
		resp := s.sessionFailure(id, err)
		resp.Message = msg
		resp.Data = data
		return resp
	}

	msg := fmt.Sprintf("Deployed to %s", deployTarget)
	log.Info().Str("url", url).Str("deployment_id", status.ID).Msg("deployed")
	s.record(ctx, journal.Event{SessionID: id.String(), Kind: journal.KindDeployed, Platform: rec.Platform.String(), Success: true, Message: msg})
	return succeed(idPtr(id), msg, data)
}

// GetSession returns the client view of one session.
func (s *Service) GetSession(_ context.Context, token string) *Response {
	id, err := s.guard.ParseToken(token)
	if err != nil {
		return fail(nil, err, fmt.Sprintf("Invalid session id: %v", err))
	}
	rec, err := s.registry.Get(id)
	if err != nil {
		return s.sessionFailure(id, err)
	}
	return succeed(idPtr(id), "Session retrieved successfully", rec.View())
}

// CloseSession marks the session inactive.
func (s *Service) CloseSession(ctx context.Context, token string) *Response {
	id, err := s.guard.ParseToken(token)
	if err != nil {
		return fail(nil, err, fmt.Sprintf("Invalid session id: %v", err))
	}
	rec, err := s.registry.Close(id)
	if err != nil {
		return s.sessionFailure(id, err)
	}

	msg := "Session closed"
	s.logger.Info().Str("session_id", id.String()).Msg("session closed")
	s.record(ctx, journal.Event{SessionID: id.String(), Kind: journal.KindClosed, Platform: rec.Platform.String(), Success: true, Message: msg})
	return succeed(idPtr(id), msg, rec.View())
}

// ListEvents returns journal events, newest first.
func (s *Service) ListEvents(ctx context.Context, sessionID string, limit int) *Response {
	if s.journal == nil {
		return succeed(nil, "Journal disabled", []journal.Event{})
	}
	events, err := s.journal.List(ctx, journal.Filter{SessionID: sessionID, Limit: limit})
	if err != nil {
		s.logger.Error().Err(err).Msg("list journal events")
		return fail(nil, apperrors.Wrapf(apperrors.ErrInternal, "list events: %v", err), "Failed to list events")
	}
	if events == nil {
		events = []journal.Event{}
	}
	return succeed(nil, fmt.Sprintf("%d events", len(events)), events)
}

// HealthCheck reports liveness.
func (s *Service) HealthCheck() Health {
	return Health{
		Status:    "healthy",
		Service:   ServiceName,
		Version:   s.version,
		Timestamp: s.now().UTC(),
	}
}

// Sweep expires sessions idle longer than idle and purges inactive
// sessions older than retention.
func (s *Service) Sweep(ctx context.Context, idle, retention time.Duration) (expired, purged int) {
	expired = s.registry.ExpireIdle(idle)
	purged = s.registry.Purge(retention)
	if expired > 0 {
		s.record(ctx, journal.Event{Kind: journal.KindExpired, Success: true, Message: fmt.Sprintf("%d idle sessions expired", expired)})
	}
	if purged > 0 {
		s.record(ctx, journal.Event{Kind: journal.KindPurged, Success: true, Message: fmt.Sprintf("%d inactive sessions purged", purged)})
	}
	if expired > 0 || purged > 0 {
		s.logger.Info().Int("expired", expired).Int("purged", purged).Int("registered", s.registry.Len()).Msg("session sweep")
	}
	return expired, purged
}

// lookup fetches an active session and checks perm. A non-nil Response is
// the failure to return.
func (s *Service) lookup(id uuid.UUID, perm models.Permission, op string) (models.SessionRecord, *Response) {
	rec, err := s.registry.Get(id)
	if err != nil {
		return rec, s.sessionFailure(id, err)
	}
	if !rec.Active {
		return rec, s.sessionFailure(id, apperrors.ErrSessionInactive)
	}
	if !rec.User.Has(perm) {
		err := apperrors.Wrapf(apperrors.ErrPermissionDenied, "%s requires %s", op, perm)
		return rec, fail(idPtr(id), err, fmt.Sprintf("Permission denied: %s requires %s", op, perm))
	}
	return rec, nil
}

func (s *Service) sessionFailure(id uuid.UUID, err error) *Response {
	switch {
	case apperrors.Is(err, apperrors.ErrSessionNotFound):
		return fail(nil, err, "Session not found")
	case apperrors.Is(err, apperrors.ErrSessionInactive):
		return fail(idPtr(id), err, "Session is not active")
	}
	return fail(idPtr(id), apperrors.Wrapf(apperrors.ErrInternal, "%v", err), "Internal error")
}

func platformError(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

// callAdapter runs fn under the adapter timeout.
func (s *Service) callAdapter(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
	defer cancel()
	return fn(ctx)
}

// record appends to the journal. Failures are logged and otherwise ignored.
func (s *Service) record(ctx context.Context, e journal.Event) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(context.WithoutCancel(ctx), &e); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(e.Kind)).Msg("journal append failed")
	}
}

func parsePermissions(raw []string) ([]models.Permission, error) {
	if len(raw) == 0 {
		return models.DefaultPermissions(), nil
	}
	perms := make([]models.Permission, 0, len(raw))
	seen := make(map[models.Permission]bool, len(raw))
	for _, r := range raw {
		p, err := models.ParsePermission(r)
		if err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrMalformedRequest, "%v", err)
		}
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}
	return perms, nil
}

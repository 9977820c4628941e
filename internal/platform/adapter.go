// Package platform defines the contract between the coordinator and the
// development environments sessions run on.
package platform

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joescharf/sessionhub/internal/models"
)

// DefaultDeployURL is returned by the built-in adapters after a deploy.
const DefaultDeployURL = "https://pages.example.com/master"

// Adapter performs platform-specific session actions. Implementations must
// be safe for concurrent use and honour ctx cancellation.
type Adapter interface {
	Name() string
	Validate(ctx context.Context) error
	Initialize(ctx context.Context, sessionID uuid.UUID) error
	Sync(ctx context.Context, sessionID uuid.UUID, state models.ProjectState) error
	Deploy(ctx context.Context, sessionID uuid.UUID) (string, error)
}

// stub is the shared behaviour of the built-in adapters: log and succeed.
type stub struct {
	kind      models.PlatformKind
	deployURL string
	logger    zerolog.Logger
}

func newStub(kind models.PlatformKind, deployURL string, logger zerolog.Logger) *stub {
	return &stub{
		kind:      kind,
		deployURL: deployURL,
		logger:    logger.With().Str("platform", kind.String()).Logger(),
	}
}

func (s *stub) Name() string { return s.kind.DisplayName() }

func (s *stub) checkCtx(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s %s: %w", s.Name(), op, err)
	}
	return nil
}

func (s *stub) Validate(ctx context.Context) error {
	if err := s.checkCtx(ctx, "validate"); err != nil {
		return err
	}
	s.logger.Debug().Msg("platform validated")
	return nil
}

func (s *stub) Initialize(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.checkCtx(ctx, "initialize"); err != nil {
		return err
	}
	s.logger.Info().Str("session_id", sessionID.String()).Msg("session environment initialized")
	return nil
}

func (s *stub) Sync(ctx context.Context, sessionID uuid.UUID, state models.ProjectState) error {
	if err := s.checkCtx(ctx, "sync"); err != nil {
		return err
	}
	s.logger.Info().
		Str("session_id", sessionID.String()).
		Str("branch", state.Branch).
		Int("files", len(state.FilesModified)).
		Str("compilation", string(state.Compilation.State)).
		Msg("project state synced")
	return nil
}

func (s *stub) Deploy(ctx context.Context, sessionID uuid.UUID) (string, error) {
	if err := s.checkCtx(ctx, "deploy"); err != nil {
		return "", err
	}
	s.logger.Info().Str("session_id", sessionID.String()).Str("url", s.deployURL).Msg("deployed to master")
	return s.deployURL, nil
}

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sessionhub/internal/api"
	"github.com/joescharf/sessionhub/internal/coordinator"
	apperrors "github.com/joescharf/sessionhub/internal/errors"
	"github.com/joescharf/sessionhub/internal/journal"
	"github.com/joescharf/sessionhub/internal/models"
	"github.com/joescharf/sessionhub/internal/platform"
	"github.com/joescharf/sessionhub/internal/registry"
	"github.com/joescharf/sessionhub/internal/security"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	guard, err := security.NewGuard(security.WithSecret("client-test"))
	require.NoError(t, err)
	svc := coordinator.NewService(registry.New(), platform.NewDirectory(zerolog.Nop()), guard, journal.NewMemory(0), zerolog.Nop(),
		coordinator.WithVersion("v-test"))
	ts := httptest.NewServer(api.NewServer(svc, zerolog.Nop()).Router())
	t.Cleanup(ts.Close)
	return New(ts.URL + "/")
}

func TestClient_Lifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	resp, err := c.CreateSession(ctx, coordinator.CreateRequest{
		Platform: "github-codespaces",
		User:     coordinator.UserRequest{Username: "alice"},
	})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	require.NotNil(t, resp.SessionID)
	id := resp.SessionID.String()

	var created coordinator.CreateData
	require.NoError(t, resp.DecodeData(&created))
	assert.Equal(t, "GitHub Codespaces", created.PlatformName)

	resp, err = c.SyncProjectState(ctx, coordinator.SyncRequest{
		SessionID:    created.Token,
		ProjectState: &models.ProjectState{Branch: "main", FilesModified: []string{"a.rs"}, Compilation: models.CompilationSucceeded("ok")},
	})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	assert.Nil(t, resp.Data)

	resp, err = c.DeployToMaster(ctx, coordinator.DeployRequest{SessionID: id})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	var deployed coordinator.DeployData
	require.NoError(t, resp.DecodeData(&deployed))
	assert.Equal(t, platform.DefaultDeployURL, deployed.DeploymentURL)

	resp, err = c.GetStatus(ctx)
	require.NoError(t, err)
	var status coordinator.StatusData
	require.NoError(t, resp.DecodeData(&status))
	assert.Equal(t, 1, status.ActiveSessions)
	assert.Equal(t, 1, status.CompilationSuccessCount)
	assert.Equal(t, 1, status.DeploymentSuccessCount)
	assert.Equal(t, map[string]int{"GitHub Codespaces": 1}, status.PlatformDistribution)

	resp, err = c.GetSession(ctx, id)
	require.NoError(t, err)
	var view models.SessionView
	require.NoError(t, resp.DecodeData(&view))
	assert.Equal(t, id, view.ID)
	require.NotNil(t, view.Project.Deployment)

	resp, err = c.ListEvents(ctx, id, 10)
	require.NoError(t, err)
	var events []journal.Event
	require.NoError(t, resp.DecodeData(&events))
	assert.Len(t, events, 3)

	resp, err = c.CloseSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestClient_FailureEnvelope(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	resp, err := c.DeployToMaster(ctx, coordinator.DeployRequest{SessionID: uuid.NewString()})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.SessionID)
	assert.ErrorIs(t, resp.Err, apperrors.ErrSessionNotFound)
	assert.Contains(t, resp.Message, "not found")

	resp, err = c.SyncProjectState(ctx, coordinator.SyncRequest{SessionID: "bogus", ProjectState: &models.ProjectState{}})
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Err, apperrors.ErrMalformedRequest)
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "v-test", h.Version)
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	c := New(ts.URL)
	_, err := c.GetStatus(context.Background())
	assert.Error(t, err)
	_, err = c.Health(context.Background())
	assert.Error(t, err)
}

func TestClient_NonJSONResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).GetStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestSentinelFor(t *testing.T) {
	assert.ErrorIs(t, sentinelFor(http.StatusBadGateway, "Sync failed: x"), apperrors.ErrPlatformSync)
	assert.ErrorIs(t, sentinelFor(http.StatusBadGateway, "Platform setup failed: x"), apperrors.ErrPlatformInit)
	assert.ErrorIs(t, sentinelFor(http.StatusBadGateway, "Deployment failed: x"), apperrors.ErrPlatformDeploy)
	assert.ErrorIs(t, sentinelFor(http.StatusTeapot, ""), apperrors.ErrInternal)
}

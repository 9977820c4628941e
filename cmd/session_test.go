package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sessionhub/internal/api"
)

// testServer starts an API server backed by a fresh coordinator and points
// server.url at it.
func testServer(t *testing.T) {
	t.Helper()
	svc, j, err := newService(context.Background(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	ts := httptest.NewServer(api.NewServer(svc, zerolog.Nop()).Router())
	t.Cleanup(ts.Close)
	viper.Set("server.url", ts.URL)
}

func resetSessionFlags() {
	createPlatform = "replit"
	createUser = ""
	createEmail = ""
	createPermissions = nil
	createCredentials = nil
	createToolchain = ""
	createEdition = ""
	createOptimize = ""

	syncBranch = "main"
	syncFiles = nil
	syncCompilation = "pending"
	syncTestsTotal, syncTestsPassed, syncTestsFailed = 0, 0, 0
	syncCoverage = 0

	eventsSession = ""
	eventsLimit = 50
}

func outBuf() *bytes.Buffer { return ui.Out.(*bytes.Buffer) }
func errBuf() *bytes.Buffer { return ui.ErrOut.(*bytes.Buffer) }

var tokenLine = regexp.MustCompile(`Token:\s+(\S+)`)

// createTestSession runs 'session create' and returns the printed token.
func createTestSession(t *testing.T, perms ...string) string {
	t.Helper()
	resetSessionFlags()
	createUser = "alice"
	createPlatform = "github-codespaces"
	createPermissions = perms

	outBuf().Reset()
	require.NoError(t, sessionCreateRun(context.Background()))
	m := tokenLine.FindStringSubmatch(outBuf().String())
	require.Len(t, m, 2, "token not printed: %s", outBuf().String())
	outBuf().Reset()
	return m[1]
}

func TestSessionCreate(t *testing.T) {
	testEnv(t)
	testServer(t)
	resetSessionFlags()
	createUser = "alice"
	createPlatform = "docker-rust"
	createToolchain = "1.80.0"

	require.NoError(t, sessionCreateRun(context.Background()))
	out := outBuf().String()
	assert.Contains(t, out, "Session created successfully on Docker Rust")
	assert.Regexp(t, tokenLine, out)
}

func TestSessionCreate_ToolchainKeepsDefaults(t *testing.T) {
	testEnv(t)
	testServer(t)
	resetSessionFlags()
	createUser = "alice"
	createToolchain = "1.80.0"
	createOptimize = "size"

	require.NoError(t, sessionCreateRun(context.Background()))
	token := tokenLine.FindStringSubmatch(outBuf().String())[1]

	outBuf().Reset()
	require.NoError(t, sessionShowRun(context.Background(), token))
	assert.Contains(t, outBuf().String(), "1.80.0 (2021, size)")
}

func TestSessionCreate_BadOptimization(t *testing.T) {
	testEnv(t)
	testServer(t)
	resetSessionFlags()
	createUser = "alice"
	createOptimize = "banana"

	err := sessionCreateRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown optimization level")
}

func TestSessionCreate_MissingUser(t *testing.T) {
	testEnv(t)
	testServer(t)
	resetSessionFlags()

	err := sessionCreateRun(context.Background())
	assert.ErrorIs(t, err, errReported)
	assert.NotEmpty(t, errBuf().String())
}

func TestSessionLifecycle(t *testing.T) {
	testEnv(t)
	testServer(t)
	token := createTestSession(t, "read", "write", "deploy")

	syncBranch = "feature/x"
	syncFiles = []string{"src/main.rs", "Cargo.toml"}
	syncCompilation = "success:clean build"
	syncTestsTotal, syncTestsPassed = 4, 4
	require.NoError(t, sessionSyncRun(context.Background(), token))
	assert.Contains(t, outBuf().String(), "Project state synchronized")

	outBuf().Reset()
	require.NoError(t, sessionDeployRun(context.Background(), token))
	assert.Contains(t, outBuf().String(), "Deployed to master")
	assert.Contains(t, outBuf().String(), "https://")

	outBuf().Reset()
	require.NoError(t, sessionShowRun(context.Background(), token))
	show := outBuf().String()
	assert.Contains(t, show, "GitHub Codespaces")
	assert.Contains(t, show, "feature/x")
	assert.Contains(t, show, "src/main.rs")
	assert.Contains(t, show, "4/4 passed")

	outBuf().Reset()
	require.NoError(t, sessionCloseRun(context.Background(), token))
	assert.Contains(t, outBuf().String(), "Session closed")

	// Closed sessions reject further syncs.
	err := sessionSyncRun(context.Background(), token)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, errBuf().String(), "Session is not active")
}

func TestSessionDeploy_PermissionDenied(t *testing.T) {
	testEnv(t)
	testServer(t)
	token := createTestSession(t, "read", "write")

	err := sessionDeployRun(context.Background(), token)
	assert.ErrorIs(t, err, errReported)
}

func TestSessionSync_BadCompilation(t *testing.T) {
	testEnv(t)
	testServer(t)
	token := createTestSession(t)

	syncCompilation = "exploded"
	err := sessionSyncRun(context.Background(), token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown compilation status")
}

func TestSessionShow_JSON(t *testing.T) {
	testEnv(t)
	testServer(t)
	token := createTestSession(t)

	jsonOutput = true
	require.NoError(t, sessionShowRun(context.Background(), token))

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			User struct {
				Username string `json:"username"`
			} `json:"userDetails"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(outBuf().Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "alice", env.Data.User.Username)
}

func TestSessionShow_UnknownToken(t *testing.T) {
	testEnv(t)
	testServer(t)

	err := sessionShowRun(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, errReported)
}

func TestSessionClose_DryRun(t *testing.T) {
	testEnv(t)
	testServer(t)
	token := createTestSession(t)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, sessionCloseRun(context.Background(), token))
	assert.Contains(t, errBuf().String(), "Would close session")

	// Session is still active.
	dryRun = false
	require.NoError(t, sessionShowRun(context.Background(), token))
	assert.Contains(t, outBuf().String(), "active")
}

func TestStatusCommand(t *testing.T) {
	testEnv(t)
	testServer(t)
	createTestSession(t)
	createTestSession(t)

	require.NoError(t, statusRun(&cobra.Command{}))
	out := outBuf().String()
	assert.Contains(t, out, "Active sessions:      2")
	assert.Contains(t, out, "GitHub Codespaces")
}

func TestHealthCommand(t *testing.T) {
	testEnv(t)
	testServer(t)

	require.NoError(t, healthRun(&cobra.Command{}))
	assert.Contains(t, outBuf().String(), "sessionhub is healthy")
}

func TestHealthCommand_Unreachable(t *testing.T) {
	testEnv(t)
	viper.Set("server.url", "http://127.0.0.1:1")

	err := healthRun(&cobra.Command{})
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, errBuf().String(), "unreachable")
}

func TestEventsCommand(t *testing.T) {
	testEnv(t)
	testServer(t)
	createTestSession(t)

	require.NoError(t, eventsRun(&cobra.Command{}))
	assert.Contains(t, outBuf().String(), "session.created")
}

func TestEventsCommand_Empty(t *testing.T) {
	testEnv(t)
	testServer(t)
	resetSessionFlags()

	require.NoError(t, eventsRun(&cobra.Command{}))
	assert.Contains(t, outBuf().String(), "No events recorded")
}

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    PlatformKind
		display string
	}{
		{"replit", PlatformKind{Type: PlatformReplit}, "Replit"},
		{"", PlatformKind{Type: PlatformReplit}, "Replit"},
		{"github-codespaces", PlatformKind{Type: PlatformGitHubCodespaces}, "GitHub Codespaces"},
		{"Local-VSCode", PlatformKind{Type: PlatformLocalVSCode}, "Local VSCode"},
		{"docker-rust", PlatformKind{Type: PlatformDocker}, "Docker Rust"},
		{"gitpod", PlatformKind{Type: PlatformCustom, Name: "gitpod"}, "gitpod"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParsePlatform(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.display, got.DisplayName())
		})
	}
}

func TestPlatformKind_JSON(t *testing.T) {
	data, err := json.Marshal(CustomPlatform("gitpod"))
	require.NoError(t, err)
	assert.Equal(t, `"gitpod"`, string(data))

	var k PlatformKind
	require.NoError(t, json.Unmarshal([]byte(`"github-codespaces"`), &k))
	assert.Equal(t, PlatformGitHubCodespaces, k.Type)
}

func TestCompilationStatus_UnmarshalString(t *testing.T) {
	var c CompilationStatus
	require.NoError(t, json.Unmarshal([]byte(`"success"`), &c))
	assert.True(t, c.IsSuccess())
	assert.Empty(t, c.Detail)
}

func TestCompilationStatus_UnmarshalObject(t *testing.T) {
	var c CompilationStatus
	require.NoError(t, json.Unmarshal([]byte(`{"state":"error","detail":"missing semicolon"}`), &c))
	assert.Equal(t, CompilationError, c.State)
	assert.Equal(t, "missing semicolon", c.Detail)
}

func TestCompilationStatus_DetailOnlyForSuccessAndError(t *testing.T) {
	var c CompilationStatus
	require.NoError(t, json.Unmarshal([]byte(`{"state":"in_progress","detail":"ignored"}`), &c))
	assert.Equal(t, CompilationRunning(), c)
}

func TestCompilationStatus_UnknownState(t *testing.T) {
	var c CompilationStatus
	err := json.Unmarshal([]byte(`"exploded"`), &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown compilation status")
}

func TestCompilationStatus_Marshal(t *testing.T) {
	data, err := json.Marshal(CompilationSucceeded("ok"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"success","detail":"ok"}`, string(data))

	data, err = json.Marshal(CompilationStatus{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"pending"}`, string(data))
}

func TestParseCompilationStatus(t *testing.T) {
	c, err := ParseCompilationStatus("success:all green")
	require.NoError(t, err)
	assert.Equal(t, CompilationSucceeded("all green"), c)

	c, err = ParseCompilationStatus("pending")
	require.NoError(t, err)
	assert.Equal(t, CompilationWaiting(), c)
}

func TestUserDetails_Has(t *testing.T) {
	u := UserDetails{Permissions: []Permission{PermissionRead}}
	assert.True(t, u.Has(PermissionRead))
	assert.False(t, u.Has(PermissionDeploy))

	admin := UserDetails{Permissions: []Permission{PermissionAdmin}}
	assert.True(t, admin.Has(PermissionDeploy))
}

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission(" Deploy ")
	require.NoError(t, err)
	assert.Equal(t, PermissionDeploy, p)

	_, err = ParsePermission("root")
	assert.Error(t, err)
}

func TestParseOptimization(t *testing.T) {
	o, err := ParseOptimization(" Performance ")
	require.NoError(t, err)
	assert.Equal(t, OptimizationPerformance, o)

	_, err = ParseOptimization("banana")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown optimization level")
}

func TestSessionRecord_CloneIsIndependent(t *testing.T) {
	rec := SessionRecord{
		ID:       uuid.New(),
		Platform: ParsePlatform("replit"),
		User: UserDetails{
			Username:    "alice",
			Permissions: DefaultPermissions(),
			Credentials: map[string][]byte{"github": []byte("tok")},
		},
		Project: ProjectState{
			Branch:        "main",
			FilesModified: []string{"a.go"},
			Deployment:    &DeploymentStatus{URL: "https://x"},
		},
		Toolchain: DefaultToolchain(),
		CreatedAt: time.Now(),
	}

	c := rec.Clone()
	c.Project.FilesModified[0] = "b.go"
	c.Project.Deployment.URL = "https://y"
	c.User.Permissions[0] = PermissionAdmin
	c.User.Credentials["github"][0] = 'X'
	c.Toolchain.Features[0] = "changed"

	assert.Equal(t, "a.go", rec.Project.FilesModified[0])
	assert.Equal(t, "https://x", rec.Project.Deployment.URL)
	assert.Equal(t, PermissionRead, rec.User.Permissions[0])
	assert.Equal(t, "tok", string(rec.User.Credentials["github"]))
	assert.Equal(t, "default", rec.Toolchain.Features[0])
}

func TestSessionRecord_ViewHidesCredentials(t *testing.T) {
	rec := SessionRecord{
		ID:       uuid.New(),
		Platform: ParsePlatform("docker-rust"),
		User: UserDetails{
			Username:    "bob",
			Credentials: map[string][]byte{"github": []byte("secret")},
		},
		Project: InitialProjectState(),
	}

	data, err := json.Marshal(rec.View())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), `"platformName":"Docker Rust"`)
	assert.Contains(t, string(data), `"branch":"main"`)
}

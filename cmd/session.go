package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/sessionhub/internal/coordinator"
	"github.com/joescharf/sessionhub/internal/models"
)

var jsonOutput bool

// session create flags
var (
	createPlatform    string
	createUser        string
	createEmail       string
	createPermissions []string
	createCredentials map[string]string
	createToolchain   string
	createEdition     string
	createOptimize    string
)

// session sync flags
var (
	syncBranch      string
	syncFiles       []string
	syncCompilation string
	syncTestsTotal  int
	syncTestsPassed int
	syncTestsFailed int
	syncCoverage    float64
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create and drive development sessions",
	Long: `Create, sync, deploy and close sessions on a running sessionhub server.

Commands that act on an existing session take the session token printed by
'sessionhub session create'. A bare session id is accepted as well.`,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new session on a platform",
	Example: `  sessionhub session create --user alice --platform github-codespaces
  sessionhub session create --user bob --permissions read,write --credential github=ghp_xxx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionCreateRun(cmd.Context())
	},
}

var sessionSyncCmd = &cobra.Command{
	Use:   "sync <token>",
	Short: "Replace a session's project state",
	Example: `  sessionhub session sync $TOKEN --branch feature/x --files src/main.rs --compilation success
  sessionhub session sync $TOKEN --compilation "error:missing semicolon"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionSyncRun(cmd.Context(), args[0])
	},
}

var sessionDeployCmd = &cobra.Command{
	Use:   "deploy <token>",
	Short: "Deploy a session's project to master",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionDeployRun(cmd.Context(), args[0])
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <token>",
	Short: "Show one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionShowRun(cmd.Context(), args[0])
	},
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close <token>",
	Short: "Mark a session inactive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionCloseRun(cmd.Context(), args[0])
	},
}

func init() {
	sessionCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print the raw response envelope")

	f := sessionCreateCmd.Flags()
	f.StringVarP(&createPlatform, "platform", "p", "replit", "Platform: replit, github-codespaces, local-vscode, docker-rust or a custom name")
	f.StringVarP(&createUser, "user", "u", "", "Username (required)")
	f.StringVar(&createEmail, "email", "", "User email")
	f.StringSliceVar(&createPermissions, "permissions", nil, "Permissions: read, write, deploy, admin (default read,write,deploy)")
	f.StringToStringVar(&createCredentials, "credential", nil, "Platform credential as name=value (repeatable)")
	f.StringVar(&createToolchain, "toolchain", "", "Toolchain version (default 1.75.0)")
	f.StringVar(&createEdition, "edition", "", "Toolchain edition (default 2021)")
	f.StringVar(&createOptimize, "optimization", "", "Optimization: debug, release, performance, size")
	_ = sessionCreateCmd.MarkFlagRequired("user")

	f = sessionSyncCmd.Flags()
	f.StringVarP(&syncBranch, "branch", "b", "main", "Current branch")
	f.StringSliceVarP(&syncFiles, "files", "f", nil, "Modified files")
	f.StringVarP(&syncCompilation, "compilation", "c", "pending", "Compilation status as state or state:detail")
	f.IntVar(&syncTestsTotal, "tests-total", 0, "Total tests run")
	f.IntVar(&syncTestsPassed, "tests-passed", 0, "Tests passed")
	f.IntVar(&syncTestsFailed, "tests-failed", 0, "Tests failed")
	f.Float64Var(&syncCoverage, "coverage", 0, "Test coverage percentage")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionSyncCmd)
	sessionCmd.AddCommand(sessionDeployCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionCloseCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionCreateRun(ctx context.Context) error {
	req := coordinator.CreateRequest{
		Platform: createPlatform,
		User: coordinator.UserRequest{
			Username:    createUser,
			Email:       createEmail,
			Permissions: createPermissions,
			Credentials: createCredentials,
		},
	}
	tc, err := createToolchainRequest()
	if err != nil {
		return err
	}
	req.Toolchain = tc

	resp, err := apiClient().CreateSession(ctxOrBackground(ctx), req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return reportFailure(resp)
	}
	if jsonOutput {
		return printJSON(resp)
	}

	ui.Response(resp)
	var data coordinator.CreateData
	if err := resp.DecodeData(&data); err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "Platform: %s\n", data.PlatformName)
	fmt.Fprintf(ui.Out, "Token:    %s\n", data.Token)
	return nil
}

// createToolchainRequest returns nil unless a toolchain flag was given.
// Unset fields keep the server defaults.
func createToolchainRequest() (*coordinator.ToolchainRequest, error) {
	if createToolchain == "" && createEdition == "" && createOptimize == "" {
		return nil, nil
	}
	tc := &coordinator.ToolchainRequest{
		Version: createToolchain,
		Edition: createEdition,
	}
	if createOptimize != "" {
		o, err := models.ParseOptimization(createOptimize)
		if err != nil {
			return nil, err
		}
		tc.Optimization = string(o)
	}
	return tc, nil
}

func sessionSyncRun(ctx context.Context, token string) error {
	compilation, err := models.ParseCompilationStatus(syncCompilation)
	if err != nil {
		return err
	}
	files := syncFiles
	if files == nil {
		files = []string{}
	}
	state := models.ProjectState{
		Branch:        syncBranch,
		FilesModified: files,
		Compilation:   compilation,
	}
	if syncTestsTotal > 0 {
		state.Tests = &models.TestResults{
			Total:    syncTestsTotal,
			Passed:   syncTestsPassed,
			Failed:   syncTestsFailed,
			Coverage: syncCoverage,
		}
	}

	ui.VerboseLog("Syncing %d files on %s (%s)", len(files), syncBranch, compilation)
	resp, err := apiClient().SyncProjectState(ctxOrBackground(ctx), coordinator.SyncRequest{
		SessionID:    token,
		ProjectState: &state,
	})
	if err != nil {
		return err
	}
	return renderEnvelope(resp)
}

func sessionDeployRun(ctx context.Context, token string) error {
	resp, err := apiClient().DeployToMaster(ctxOrBackground(ctx), coordinator.DeployRequest{SessionID: token})
	if err != nil {
		return err
	}
	if !resp.Success {
		return reportFailure(resp)
	}
	if jsonOutput {
		return printJSON(resp)
	}

	ui.Response(resp)
	var data coordinator.DeployData
	if err := resp.DecodeData(&data); err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "URL:        %s\n", data.DeploymentURL)
	fmt.Fprintf(ui.Out, "Deployment: %s\n", data.DeploymentID)
	return nil
}

func sessionShowRun(ctx context.Context, token string) error {
	resp, err := apiClient().GetSession(ctxOrBackground(ctx), token)
	if err != nil {
		return err
	}
	if !resp.Success {
		return reportFailure(resp)
	}
	if jsonOutput {
		return printJSON(resp)
	}

	var view models.SessionView
	if err := resp.DecodeData(&view); err != nil {
		return err
	}
	ui.Session(view)
	return nil
}

func sessionCloseRun(ctx context.Context, token string) error {
	if dryRun {
		ui.DryRunMsg("Would close session %s", token)
		return nil
	}
	resp, err := apiClient().CloseSession(ctxOrBackground(ctx), token)
	if err != nil {
		return err
	}
	return renderEnvelope(resp)
}

// renderEnvelope prints a response that carries no data worth formatting.
func renderEnvelope(resp *coordinator.Response) error {
	if !resp.Success {
		return reportFailure(resp)
	}
	if jsonOutput {
		return printJSON(resp)
	}
	ui.Response(resp)
	return nil
}

// reportFailure prints a failure envelope and returns errReported so the
// process exits non-zero without printing the message twice.
func reportFailure(resp *coordinator.Response) error {
	if jsonOutput {
		if err := printJSON(resp); err != nil {
			return err
		}
	} else {
		ui.Response(resp)
	}
	if resp.Err != nil {
		ui.VerboseLog("%v", resp.Err)
	}
	return errReported
}

func printJSON(v any) error {
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

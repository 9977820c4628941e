package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/sessionhub/internal/client"
	"github.com/joescharf/sessionhub/internal/logging"
	"github.com/joescharf/sessionhub/internal/output"
	"github.com/joescharf/sessionhub/internal/platform"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

// errReported is returned by commands that already printed their failure.
var errReported = errors.New("command failed")

var rootCmd = &cobra.Command{
	Use:   "sessionhub",
	Short: "Sessionhub - coordinate development sessions across platforms",
	Long: `sessionhub tracks development sessions running on Replit, GitHub
Codespaces, local VSCode, Docker and custom platforms. It keeps each
session's project state in sync and deploys to master on request.

Run 'sessionhub serve' to start the coordinator, then use the session,
status and events commands (or the MCP server) to talk to it.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/sessionhub/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "Server URL (default http://localhost:8080)")
	_ = viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SESSIONHUB")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	stateDir, _ := configDirFunc()
	setDefaults(stateDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers the default of every config key.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)

	viper.SetDefault("server.host", "")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.url", "http://localhost:8080")

	viper.SetDefault("session.idle_timeout", 2*time.Hour)
	viper.SetDefault("session.sweep_interval", 5*time.Minute)
	viper.SetDefault("session.retention", 24*time.Hour)

	viper.SetDefault("platform.timeout", 30*time.Second)
	viper.SetDefault("platform.deploy_url", platform.DefaultDeployURL)

	viper.SetDefault("security.token_secret", "")
	viper.SetDefault("security.token_ttl", 24*time.Hour)

	viper.SetDefault("journal.path", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", logging.FormatConsole)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// newLogger builds the structured logger from the log.* keys. Logs go to
// stderr so stdout stays free for command output and the MCP protocol.
func newLogger() (zerolog.Logger, error) {
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: viper.GetString("log.format"),
		Out:    os.Stderr,
	})
}

// apiClient returns a client for the configured server.url.
func apiClient() *client.Client {
	return client.New(viper.GetString("server.url"))
}

// apiClientFor returns a client for a server listening on addr.
func apiClientFor(addr string) *client.Client {
	return client.New("http://" + displayAddr(addr))
}

func statePath(name string) string {
	return filepath.Join(viper.GetString("state_dir"), name)
}

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// envKeyReplacer maps nested keys to env names: server.port -> SESSIONHUB_SERVER_PORT.
var envKeyReplacer = strings.NewReplacer(".", "_")

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sessionhub"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage sessionhub configuration.

Running bare 'sessionhub config' is the same as 'sessionhub config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# sessionhub configuration
# See: sessionhub config show (for effective values and sources)

# State directory for the PID file and server log (default: ~/.config/sessionhub)
# state_dir: {{ .StateDir }}

server:
  # Listen address for 'sessionhub serve' (empty host = all interfaces)
  host: "{{ .ServerHost }}"
  port: {{ .ServerPort }}

  # URL the CLI and MCP bridge use to reach the server
  url: "{{ .ServerURL }}"

session:
  # Sessions idle longer than this are marked inactive (0 disables)
  idle_timeout: {{ .IdleTimeout }}

  # How often the sweeper runs
  sweep_interval: {{ .SweepInterval }}

  # Inactive sessions are forgotten after this long (0 keeps them forever)
  retention: {{ .Retention }}

platform:
  # Upper bound on every platform adapter call
  timeout: {{ .PlatformTimeout }}

  # URL reported by successful deployments
  deploy_url: "{{ .DeployURL }}"

security:
  # HMAC secret for session tokens. Empty generates a random secret at
  # startup, which invalidates tokens on restart.
  token_secret: "{{ .TokenSecret }}"
  token_ttl: {{ .TokenTTL }}

journal:
  # SQLite file for the event journal (empty keeps events in memory)
  path: "{{ .JournalPath }}"

log:
  # debug, info, warn, error
  level: "{{ .LogLevel }}"

  # console or json
  format: "{{ .LogFormat }}"
`

type configTemplateData struct {
	StateDir        string
	ServerHost      string
	ServerPort      int
	ServerURL       string
	IdleTimeout     string
	SweepInterval   string
	Retention       string
	PlatformTimeout string
	DeployURL       string
	TokenSecret     string
	TokenTTL        string
	JournalPath     string
	LogLevel        string
	LogFormat       string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:        viper.GetString("state_dir"),
		ServerHost:      viper.GetString("server.host"),
		ServerPort:      viper.GetInt("server.port"),
		ServerURL:       viper.GetString("server.url"),
		IdleTimeout:     viper.GetDuration("session.idle_timeout").String(),
		SweepInterval:   viper.GetDuration("session.sweep_interval").String(),
		Retention:       viper.GetDuration("session.retention").String(),
		PlatformTimeout: viper.GetDuration("platform.timeout").String(),
		DeployURL:       viper.GetString("platform.deploy_url"),
		TokenSecret:     viper.GetString("security.token_secret"),
		TokenTTL:        viper.GetDuration("security.token_ttl").String(),
		JournalPath:     viper.GetString("journal.path"),
		LogLevel:        viper.GetString("log.level"),
		LogFormat:       viper.GetString("log.format"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold the token secret.
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "SESSIONHUB_STATE_DIR"},
	{Key: "server.host", EnvVar: "SESSIONHUB_SERVER_HOST"},
	{Key: "server.port", EnvVar: "SESSIONHUB_SERVER_PORT"},
	{Key: "server.url", EnvVar: "SESSIONHUB_SERVER_URL"},
	{Key: "session.idle_timeout", EnvVar: "SESSIONHUB_SESSION_IDLE_TIMEOUT"},
	{Key: "session.sweep_interval", EnvVar: "SESSIONHUB_SESSION_SWEEP_INTERVAL"},
	{Key: "session.retention", EnvVar: "SESSIONHUB_SESSION_RETENTION"},
	{Key: "platform.timeout", EnvVar: "SESSIONHUB_PLATFORM_TIMEOUT"},
	{Key: "platform.deploy_url", EnvVar: "SESSIONHUB_PLATFORM_DEPLOY_URL"},
	{Key: "security.token_secret", EnvVar: "SESSIONHUB_SECURITY_TOKEN_SECRET", Secret: true},
	{Key: "security.token_ttl", EnvVar: "SESSIONHUB_SECURITY_TOKEN_TTL"},
	{Key: "journal.path", EnvVar: "SESSIONHUB_JOURNAL_PATH"},
	{Key: "log.level", EnvVar: "SESSIONHUB_LOG_LEVEL"},
	{Key: "log.format", EnvVar: "SESSIONHUB_LOG_FORMAT"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := fmt.Sprint(viper.Get(k.Key))
		if k.Secret && val != "" {
			val = "********"
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-24s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set, set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'sessionhub config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

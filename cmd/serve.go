package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"time"

	figure "github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/sessionhub/internal/api"
	"github.com/joescharf/sessionhub/internal/client"
	"github.com/joescharf/sessionhub/internal/coordinator"
	"github.com/joescharf/sessionhub/internal/daemon"
	"github.com/joescharf/sessionhub/internal/journal"
	"github.com/joescharf/sessionhub/internal/platform"
	"github.com/joescharf/sessionhub/internal/registry"
	"github.com/joescharf/sessionhub/internal/security"
)

const (
	shutdownTimeout = 10 * time.Second
	stopTimeout     = 10 * time.Second
	startupTimeout  = 5 * time.Second
)

var serveNoBanner bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session coordinator in the foreground",
	Long: `Run the session coordinator HTTP server in the foreground.

The server listens on server.host:server.port (default :8080), expires idle
sessions every session.sweep_interval and stops cleanly on SIGINT/SIGTERM.
Use 'sessionhub serve start' to run it in the background instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().String("host", "", "host to listen on")
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().BoolVar(&serveNoBanner, "no-banner", false, "Do not print the startup banner")
	_ = viper.BindPFlag("server.host", serveCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(statePath("sessionhub.pid"))
}

func serveLogPath() string {
	return statePath("sessionhub.log")
}

func listenAddr() string {
	return net.JoinHostPort(viper.GetString("server.host"), strconv.Itoa(viper.GetInt("server.port")))
}

// newService wires the coordinator from config. The returned journal must
// be closed by the caller.
func newService(ctx context.Context, logger zerolog.Logger) (*coordinator.Service, journal.Journal, error) {
	guard, err := security.NewGuard(
		security.WithSecret(viper.GetString("security.token_secret")),
		security.WithTTL(viper.GetDuration("security.token_ttl")),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("token guard: %w", err)
	}
	if viper.GetString("security.token_secret") == "" {
		logger.Warn().Msg("security.token_secret not set, tokens will not survive a restart")
	}

	var j journal.Journal
	if path := viper.GetString("journal.path"); path != "" {
		sj, err := journal.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		logger.Info().Str("path", path).Msg("journal opened")
		j = sj
	} else {
		j = journal.NewMemory(0)
	}

	dir := platform.NewDirectory(logger.With().Str("component", "platform").Logger(),
		platform.WithDeployURL(viper.GetString("platform.deploy_url")))

	svc := coordinator.NewService(registry.New(), dir, guard, j,
		logger.With().Str("component", "coordinator").Logger(),
		coordinator.WithAdapterTimeout(viper.GetDuration("platform.timeout")),
		coordinator.WithVersion(buildVersion),
	)
	return svc, j, nil
}

func serveRun(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, shutdownSignals()...)
	defer stop()

	svc, j, err := newService(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	addr := listenAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(svc, logger.With().Str("component", "api").Logger()).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !serveNoBanner {
		fmt.Fprintln(ui.Out, figure.NewFigure("sessionhub", "cybermedium", true).String())
	}
	ui.Info("Serving API at http://%s", displayAddr(addr))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("version", buildVersion).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sweepLoop(gctx, svc,
			viper.GetDuration("session.sweep_interval"),
			viper.GetDuration("session.idle_timeout"),
			viper.GetDuration("session.retention"))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	ui.Success("Server stopped")
	return nil
}

// sweepLoop runs Sweep every interval until ctx is done. A non-positive
// interval disables sweeping.
func sweepLoop(ctx context.Context, svc *coordinator.Service, interval, idle, retention time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			svc.Sweep(ctx, idle, retention)
		}
	}
}

func displayAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host != "" {
		return addr
	}
	return net.JoinHostPort("localhost", port)
}

func serveStartRun() error {
	pf := pidFile()
	if rec, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (PID %d)", rec.PID)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	args := []string{"serve", "--no-banner",
		"--host", viper.GetString("server.host"),
		"--port", strconv.Itoa(viper.GetInt("server.port")),
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %v (log: %s)", exe, args, serveLogPath())
		return nil
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	addr := listenAddr()
	pid := child.Process.Pid
	if err := pf.WriteRecord(daemon.Record{PID: pid, Addr: addr, StartedAt: time.Now().UTC()}); err != nil {
		_ = child.Process.Kill()
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	if waitHealthy(apiClientFor(addr), startupTimeout) {
		ui.Success("Server started (PID %d) at http://%s", pid, displayAddr(addr))
	} else {
		ui.Warning("Server started (PID %d) but is not answering yet, see %s", pid, serveLogPath())
	}
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	rec, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", rec.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}
	if !pf.WaitStopped(stopTimeout, 100*time.Millisecond) {
		ui.Warning("Server did not stop within %s, killing", stopTimeout)
		if err := pf.Signal(sigKILL()); err != nil {
			return fmt.Errorf("kill server: %w", err)
		}
	}
	if err := pf.Remove(); err != nil {
		return err
	}
	ui.Success("Server stopped (PID %d)", rec.PID)
	return nil
}

func serveStatusRun() error {
	rec, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server is not running")
		return nil
	}

	ui.Success("Server running (PID %d) at http://%s, up %s",
		rec.PID, displayAddr(rec.Addr), rec.Uptime(time.Now()).Round(time.Second))

	if rec.Addr == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h, err := apiClientFor(rec.Addr).Health(ctx)
	if err != nil {
		ui.Warning("Health check failed: %v", err)
		return nil
	}
	ui.Info("Health: %s (version %s)", h.Status, h.Version)
	return nil
}

// waitHealthy polls the health endpoint until it answers or timeout passes.
func waitHealthy(c *client.Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		_, err := c.Health(ctx)
		cancel()
		if err == nil {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

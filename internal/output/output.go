package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/joescharf/sessionhub/internal/coordinator"
	"github.com/joescharf/sessionhub/internal/journal"
	"github.com/joescharf/sessionhub/internal/models"
)

// UI provides colored output and respects verbose/dry-run modes.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// CompilationColor returns the compilation status colored by state.
func CompilationColor(c models.CompilationStatus) string {
	s := c.String()
	switch c.State {
	case models.CompilationSuccess:
		return green(s)
	case models.CompilationError:
		return red(s)
	case models.CompilationInProgress:
		return yellow(s)
	case models.CompilationPending:
		return cyan(s)
	default:
		return s
	}
}

// OutcomeColor renders a success flag.
func OutcomeColor(ok bool) string {
	if ok {
		return green("ok")
	}
	return red("failed")
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// Response prints an envelope's outcome line.
func (u *UI) Response(resp *coordinator.Response) {
	switch {
	case resp.Success && resp.SessionID != nil:
		u.Success("%s (%s)", resp.Message, cyan(resp.SessionID.String()))
	case resp.Success:
		u.Success("%s", resp.Message)
	case resp.SessionID != nil:
		u.Error("%s (%s)", resp.Message, resp.SessionID.String())
	default:
		u.Error("%s", resp.Message)
	}
}

// Status renders the aggregate counters and the platform distribution.
func (u *UI) Status(data coordinator.StatusData) error {
	fmt.Fprintf(u.Out, "Active sessions:      %d\n", data.ActiveSessions)
	fmt.Fprintf(u.Out, "Compiling cleanly:    %d\n", data.CompilationSuccessCount)
	fmt.Fprintf(u.Out, "Deployed:             %d\n", data.DeploymentSuccessCount)
	if len(data.PlatformDistribution) == 0 {
		return nil
	}
	fmt.Fprintln(u.Out)

	names := make([]string, 0, len(data.PlatformDistribution))
	for name := range data.PlatformDistribution {
		names = append(names, name)
	}
	sort.Strings(names)

	table := u.Table([]string{"Platform", "Sessions"})
	for _, name := range names {
		if err := table.Append([]string{name, strconv.Itoa(data.PlatformDistribution[name])}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Session renders one session view.
func (u *UI) Session(v models.SessionView) {
	state := green("active")
	if !v.Active {
		state = red("inactive")
	}
	fmt.Fprintf(u.Out, "Session:      %s (%s)\n", cyan(v.ID), state)
	fmt.Fprintf(u.Out, "Platform:     %s\n", v.PlatformName)
	fmt.Fprintf(u.Out, "User:         %s", v.User.Username)
	if v.User.Email != "" {
		fmt.Fprintf(u.Out, " <%s>", v.User.Email)
	}
	fmt.Fprintln(u.Out)
	perms := make([]string, len(v.User.Permissions))
	for i, p := range v.User.Permissions {
		perms[i] = string(p)
	}
	fmt.Fprintf(u.Out, "Permissions:  %s\n", strings.Join(perms, ", "))
	fmt.Fprintf(u.Out, "Branch:       %s\n", v.Project.Branch)
	fmt.Fprintf(u.Out, "Compilation:  %s\n", CompilationColor(v.Project.Compilation))
	fmt.Fprintf(u.Out, "Files:        %d modified\n", len(v.Project.FilesModified))
	for _, f := range v.Project.FilesModified {
		fmt.Fprintf(u.Out, "              %s\n", f)
	}
	if t := v.Project.Tests; t != nil {
		fmt.Fprintf(u.Out, "Tests:        %d/%d passed, %.1f%% coverage\n", t.Passed, t.Total, t.Coverage)
	}
	if d := v.Project.Deployment; d != nil {
		fmt.Fprintf(u.Out, "Deployed:     %s at %s\n", d.URL, d.Timestamp.Local().Format(time.DateTime))
	}
	fmt.Fprintf(u.Out, "Toolchain:    %s (%s, %s)\n", v.Toolchain.Version, v.Toolchain.Edition, v.Toolchain.Optimization)
	fmt.Fprintf(u.Out, "Created:      %s\n", v.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(u.Out, "Last active:  %s\n", v.LastActivity.Local().Format(time.DateTime))
}

// Events renders journal events as a table.
func (u *UI) Events(events []journal.Event) error {
	if len(events) == 0 {
		u.Info("No events recorded")
		return nil
	}
	table := u.Table([]string{"Time", "Kind", "Session", "Platform", "Outcome", "Message"})
	for _, e := range events {
		session := e.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		row := []string{
			e.CreatedAt.Local().Format(time.DateTime),
			string(e.Kind),
			session,
			e.Platform,
			OutcomeColor(e.Success),
			e.Message,
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/sessionhub/internal/coordinator"
	"github.com/joescharf/sessionhub/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aggregate status of active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw response envelope")
	rootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command) error {
	resp, err := apiClient().GetStatus(ctxOrBackground(cmd.Context()))
	if err != nil {
		return err
	}
	if !resp.Success {
		return reportFailure(resp)
	}
	if jsonOutput {
		return printJSON(resp)
	}

	var data coordinator.StatusData
	if err := resp.DecodeData(&data); err != nil {
		return err
	}
	if !data.SystemReady {
		ui.Warning("System is not ready")
	}
	ui.VerboseLog("Server: %s", output.Cyan(apiClient().BaseURL()))
	return ui.Status(data)
}

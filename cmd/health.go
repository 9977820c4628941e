package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		return healthRun(cmd)
	},
}

func init() {
	healthCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw health payload")
	rootCmd.AddCommand(healthCmd)
}

func healthRun(cmd *cobra.Command) error {
	c := apiClient()
	h, err := c.Health(ctxOrBackground(cmd.Context()))
	if err != nil {
		ui.Error("%s is unreachable: %v", c.BaseURL(), err)
		return errReported
	}
	if jsonOutput {
		return printJSON(h)
	}
	ui.Success("%s is %s (version %s, server time %s)", h.Service, h.Status, h.Version, h.Timestamp.Local().Format(time.DateTime))
	return nil
}

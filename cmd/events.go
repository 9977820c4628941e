package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/sessionhub/internal/journal"
)

var (
	eventsSession string
	eventsLimit   int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent session events, newest first",
	Example: `  sessionhub events
  sessionhub events --session 2f1c... --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return eventsRun(cmd)
	},
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsSession, "session", "s", "", "Only events of this session id")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "l", journal.DefaultLimit, "Maximum number of events")
	eventsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw response envelope")
	rootCmd.AddCommand(eventsCmd)
}

func eventsRun(cmd *cobra.Command) error {
	resp, err := apiClient().ListEvents(ctxOrBackground(cmd.Context()), eventsSession, eventsLimit)
	if err != nil {
		return err
	}
	if !resp.Success {
		return reportFailure(resp)
	}
	if jsonOutput {
		return printJSON(resp)
	}

	var events []journal.Event
	if err := resp.DecodeData(&events); err != nil {
		return err
	}
	return ui.Events(events)
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/sessionhub/internal/mcp"
)

var mcpLocal bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for AI assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Tools forward to the sessionhub server at server.url. With --local the
tools run against an in-process coordinator instead, whose sessions live
only as long as the MCP server. Configure your MCP client with:

  {
    "mcpServers": {
      "sessionhub": { "command": "sessionhub", "args": ["mcp"] }
    }
  }

Available tools: sessionhub_create_session, sessionhub_sync_project,
sessionhub_deploy, sessionhub_status, sessionhub_get_session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpLocal, "local", false, "Run an in-process coordinator instead of calling the server")
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	ctx := ctxOrBackground(cmd.Context())

	var backend mcp.Backend = apiClient()
	if mcpLocal {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		svc, j, err := newService(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()
		backend = mcp.NewLocalBackend(svc)
	}

	return mcp.NewServer(backend, buildVersion).ServeStdio(ctx)
}

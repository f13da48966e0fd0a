package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients list pending reviews and decide items without
going through chat. Configure with:

  {
    "mcpServers": {
      "triage": { "command": "triage", "args": ["mcp"] }
    }
  }

Available tools: triage_list_reviews, triage_get_review, triage_decide_item`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStore()
		if err != nil {
			return err
		}
		coordinator, err := newCoordinator(store, newLogger())
		if err != nil {
			return err
		}

		srv := mcp.NewServer(store, coordinator)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

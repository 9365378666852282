package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jrvs-oss/toolgateway/internal/catalog"
	"github.com/jrvs-oss/toolgateway/internal/registry"
)

// newMCPToolsCmd lists the aggregated tool catalog across every connected
// server, optionally scoped to one server or filtered by a search term.
func newMCPToolsCmd() *cobra.Command {
	var server string
	var search string

	cmd := &cobra.Command{
		Use:   "mcp-tools [server]",
		Short: "List tools aggregated from the connected MCP servers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && server == "" {
				server = args[0]
			}
			cfg, err := loadConfigFromFlags()
			if err != nil {
				return err
			}

			reg := registry.New()
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Resilience.Timeouts.Handshake+5*time.Second)
			defer cancel()

			if err := reg.ConnectAll(ctx, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "%s\n", text.FgYellow.Sprint("warning: "+err.Error()))
			}
			defer reg.Shutdown(context.Background(), cfg.Resilience.Timeouts.DisconnectGrace)

			var tools []catalog.ToolDescriptor
			switch {
			case search != "":
				tools = reg.SearchTools(search)
			case server != "":
				tools, err = reg.ToolsForServer(server)
				if err != nil {
					return err
				}
			default:
				tools = reg.ListTools()
			}

			renderToolsTable(cmd, tools)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "restrict the listing to one configured server")
	cmd.Flags().StringVar(&search, "search", "", "substring search over tool name and description")
	return cmd
}

func renderToolsTable(cmd *cobra.Command, tools []catalog.ToolDescriptor) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"SERVER", "TOOL", "DESCRIPTION"})

	for _, tool := range tools {
		t.AppendRow(table.Row{tool.ServerName, tool.ToolName, truncateDescription(tool.Description, 80)})
	}
	t.Render()

	if len(tools) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tools found.")
	}
}

func truncateDescription(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

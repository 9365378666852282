package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jrvs-oss/toolgateway/internal/registry"
)

// newMCPServersCmd lists the configured MCP servers and their connection
// status, connecting to each just long enough to report it.
func newMCPServersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-servers",
		Short: "List configured MCP servers and their connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			renderServersTable(cmd, reg.ListServers())
			return nil
		},
	}
}

func renderServersTable(cmd *cobra.Command, statuses []registry.ServerStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"SERVER", "CONNECTED", "TOOLS", "ERROR"})

	for _, s := range statuses {
		connected := text.FgGreen.Sprint("yes")
		if !s.Connected {
			connected = text.FgRed.Sprint("no")
		}
		t.AppendRow(table.Row{s.Name, connected, s.ToolCount, s.Error})
	}
	t.Render()
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jrvs-oss/toolgateway/internal/catalog"
	"github.com/jrvs-oss/toolgateway/internal/registry"
	"github.com/jrvs-oss/toolgateway/internal/resilience"
)

// newMCPCallCmd invokes a single tool on a connected server directly,
// bypassing the agent's LLM-driven planning step.
func newMCPCallCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "mcp-call <server> <tool> [json-args]",
		Short: "Call a single tool on a connected MCP server",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverName, toolName := args[0], args[1]

			var arguments map[string]any
			if len(args) == 3 && args[2] != "" {
				if err := json.Unmarshal([]byte(args[2]), &arguments); err != nil {
					return fmt.Errorf("parsing json-args: %w", err)
				}
			}

			cfg, err := loadConfigFromFlags()
			if err != nil {
				return err
			}

			reg := registry.New()
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Resilience.Timeouts.Handshake+5*time.Second)
			defer cancel()

			if err := reg.ConnectAll(ctx, cfg); err != nil {
				return fmt.Errorf("connecting to servers: %w", err)
			}
			defer reg.Shutdown(context.Background(), cfg.Resilience.Timeouts.DisconnectGrace)

			var s *spinner.Spinner
			if !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = fmt.Sprintf(" Calling %s/%s...", serverName, toolName)
				s.Start()
			}

			call := catalog.ToolCall{ServerName: serverName, ToolName: toolName, Arguments: arguments}
			pipeline := resilience.New(cfg, nil)
			raw, err := pipeline.Execute(cmd.Context(), resilience.CallOptions{
				Endpoint:      call.Endpoint(),
				BulkheadClass: "tool",
			}, func(ctx context.Context) (any, error) {
				res := reg.CallTool(ctx, call)
				if !res.Success {
					return res, fmt.Errorf("%s", res.Error)
				}
				return res, nil
			})

			var result catalog.ToolResult
			if err != nil {
				result = catalog.ToolResult{ServerName: serverName, ToolName: toolName, Success: false, Error: err.Error()}
			} else {
				result = raw.(catalog.ToolResult)
			}

			if s != nil {
				s.Stop()
			}

			return printCallResult(cmd, result)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the progress spinner")
	return cmd
}

func printCallResult(cmd *cobra.Command, result catalog.ToolResult) error {
	out := cmd.OutOrStdout()
	if !result.Success {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", text.FgRed.Sprint("tool call failed: "+result.Error))
		return fmt.Errorf("tool call failed: %s", result.Error)
	}

	data, err := json.MarshalIndent(result.Content, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "%v\n", result.Content)
		return nil
	}
	fmt.Fprintln(out, string(data))
	return nil
}

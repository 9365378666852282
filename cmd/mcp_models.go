package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jrvs-oss/toolgateway/internal/llm"
)

// newMCPModelsCmd lists models known to the configured Ollama instance
// alongside this process's in-process ModelStats, the reduced,
// non-persisted form of the original client's per-model usage tracking.
func newMCPModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-models",
		Short: "List available LLM models and their in-process usage stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFromFlags()
			if err != nil {
				return err
			}

			client := llm.New(cfg.LLM.BaseURL, cfg.LLM.DefaultModel, cfg.LLM.RequestTimeout)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			models, err := client.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}

			renderModelsTable(cmd, client.CurrentModel(), models, client.ModelStats())
			return nil
		},
	}
}

func renderModelsTable(cmd *cobra.Command, current string, models []llm.ModelInfo, stats map[string]llm.ModelStats) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"MODEL", "CURRENT", "CALLS", "AVG RESPONSE", "LAST USED"})

	for _, m := range models {
		isCurrent := ""
		if m.Name == current {
			isCurrent = "*"
		}
		s := stats[m.Name]
		lastUsed := "-"
		if !s.LastUsed.IsZero() {
			lastUsed = s.LastUsed.Format("2006-01-02 15:04:05")
		}
		t.AppendRow(table.Row{m.Name, isCurrent, s.Count, s.AverageResponseTime(), lastUsed})
	}
	t.Render()
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jrvs-oss/toolgateway/internal/agent"
)

// newReportCmd prints a previously saved session log as a human-readable
// activity report.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <session-log.json>",
		Short: "Print a human-readable activity report from a saved session log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := agent.LoadAndRenderReport(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

// newSaveReportCmd renders a previously saved session log to a report file.
func newSaveReportCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "save-report <session-log.json>",
		Short: "Render a saved session log to a report file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := agent.LoadAndRenderReport(args[0])
			if err != nil {
				return err
			}

			if outputPath == "" {
				dir := filepath.Dir(args[0])
				base := filepath.Base(args[0])
				outputPath = filepath.Join(dir, "report_"+base[:len(base)-len(filepath.Ext(base))]+"_"+time.Now().Format("20060102_150405")+".txt")
			}

			if err := os.WriteFile(outputPath, []byte(report), 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output path for the rendered report (default: alongside the session log)")
	return cmd
}

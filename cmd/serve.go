package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jrvs-oss/toolgateway/internal/agent"
	"github.com/jrvs-oss/toolgateway/internal/llm"
	"github.com/jrvs-oss/toolgateway/internal/metrics"
	"github.com/jrvs-oss/toolgateway/internal/registry"
	"github.com/jrvs-oss/toolgateway/internal/resilience"
	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

var (
	serveMetricsAddr string
	serveNoReport     bool
)

// newServeCmd builds the main gateway loop: connect to every configured MCP
// server, stand up the resilience pipeline and metrics recorder, then read
// one request per line from stdin until EOF or an interrupt signal, handing
// each line to the agent for analysis and tool execution.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to configured MCP servers and drive requests through the local LLM agent",
		Long: `serve connects to every MCP server listed in the configuration, aggregates
their tools into a catalog, and reads one request per line from standard
input. Each request is analyzed by the local LLM, which decides whether the
request needs tools and which ones, and the agent executes the resulting
plan through a resilience-wrapped client registry.

Press Ctrl+C to stop. On exit, a session log and activity report are written
to the configured log directory unless --no-report is set.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9090); disabled if empty")
	cmd.Flags().BoolVar(&serveNoReport, "no-report", false, "skip writing the session log and activity report on exit")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags()
	if err != nil {
		return err
	}

	logOut := os.Stderr
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logging.Init(logging.ParseLevel(cfg.Logging.Level), logOut)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.New()
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Resilience.Timeouts.Handshake+10*time.Second)
	err = reg.ConnectAll(connectCtx, cfg)
	cancel()
	if err != nil {
		logging.Warn("Serve", "no MCP servers connected: %v", err)
	}
	defer reg.Shutdown(context.Background(), cfg.Resilience.Timeouts.DisconnectGrace)

	for _, status := range reg.ListServers() {
		if status.Connected {
			logging.Info("Serve", "connected to %s (%d tools)", status.Name, status.ToolCount)
		} else {
			logging.Warn("Serve", "failed to connect to %s: %s", status.Name, status.Error)
		}
	}

	var recorder *metrics.Recorder
	if serveMetricsAddr != "" {
		recorder = metrics.New()
		go func() {
			if err := recorder.Serve(ctx, serveMetricsAddr); err != nil {
				logging.Error("Serve", err, "metrics server exited")
			}
		}()
	}

	pipeline := resilience.New(cfg, recorder)
	pipeline.StartSweeper(ctx)
	defer pipeline.Stop()

	llmClient := llm.New(cfg.LLM.BaseURL, cfg.LLM.DefaultModel, cfg.LLM.RequestTimeout)
	llmClient.SetRecorder(recorder)
	gw := agent.New(reg, llmClient, pipeline, recorder, cfg.Agent)

	sessionID := uuid.NewString()
	logging.Info("Serve", "session %s ready. Reading requests from stdin, Ctrl+C to stop.", logging.TruncateID(sessionID))

	if err := runRequestLoop(ctx, cmd, gw); err != nil {
		logging.Error("Serve", err, "request loop exited with error")
	}

	if !serveNoReport {
		shortID := logging.TruncateID(sessionID)
		if path, err := gw.SaveSessionLog(shortID); err != nil {
			logging.Warn("Serve", "could not save session log: %v", err)
		} else {
			logging.Info("Serve", "session log written to %s", path)
		}
		if path, err := gw.SaveReport(shortID); err != nil {
			logging.Warn("Serve", "could not save report: %v", err)
		} else {
			logging.Info("Serve", "activity report written to %s", path)
		}
	}

	return nil
}

// runRequestLoop reads one request per line from stdin, feeding each to the
// agent until the reader hits EOF or ctx is cancelled (by a shutdown signal).
func runRequestLoop(ctx context.Context, cmd *cobra.Command, gw *agent.Agent) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nshutting down...")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			result, err := gw.ProcessRequest(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, result.Summary)
			for _, toolResult := range result.ToolResults {
				status := "ok"
				if !toolResult.Success {
					status = "error"
				}
				fmt.Fprintf(out, "  [%s] %s/%s: %s\n", status, toolResult.ServerName, toolResult.ToolName, toolResult.Truncate(200))
			}
		}
	}
}

package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const ruleWidth = 70

// GenerateReport renders the session's activity log as human-readable text,
// the supplemented feature grounded on the original client's
// generate_report.
func (a *Agent) GenerateReport(sessionID string) string {
	return renderReport(sessionID, a.SessionLog())
}

// LoadAndRenderReport reads a session log previously written by
// SaveSessionLog and renders it as a report, without needing a live Agent.
// This backs the standalone `report`/`save-report` CLI commands, which
// operate on a session log file from an earlier `serve` run.
func LoadAndRenderReport(sessionLogPath string) (string, error) {
	data, err := os.ReadFile(sessionLogPath)
	if err != nil {
		return "", fmt.Errorf("agent: reading session log %s: %w", sessionLogPath, err)
	}

	var doc sessionLogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("agent: parsing session log %s: %w", sessionLogPath, err)
	}

	return renderReport(doc.SessionID, doc.Actions), nil
}

func renderReport(sessionID string, actions []Action) string {
	if len(actions) == 0 {
		return "No actions logged in this session."
	}

	rule := strings.Repeat("=", ruleWidth)
	dash := strings.Repeat("-", ruleWidth)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "TOOLGATEWAY AGENT ACTIVITY REPORT")
	fmt.Fprintf(&b, "Session: %s\n", sessionID)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)

	var toolCalls []Action
	for _, act := range actions {
		if act.Kind == ActionToolCall {
			toolCalls = append(toolCalls, act)
		}
	}
	successful := 0
	var totalDuration float64
	for _, tc := range toolCalls {
		if tc.Success {
			successful++
		}
		totalDuration += tc.DurationMS
	}
	avgDuration := 0.0
	if len(toolCalls) > 0 {
		avgDuration = totalDuration / float64(len(toolCalls))
	}

	fmt.Fprintln(&b, "SUMMARY")
	fmt.Fprintln(&b, dash)
	fmt.Fprintf(&b, "Total Actions: %d\n", len(actions))
	fmt.Fprintf(&b, "Tool Calls: %d\n", len(toolCalls))
	fmt.Fprintf(&b, "Successful: %d\n", successful)
	fmt.Fprintf(&b, "Failed: %d\n", len(toolCalls)-successful)
	fmt.Fprintf(&b, "Average Duration: %.2fms\n", avgDuration)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "DETAILED ACTIONS")
	fmt.Fprintln(&b, dash)
	fmt.Fprintln(&b)

	for i, act := range actions {
		ts := act.Timestamp.Format("15:04:05")

		switch act.Kind {
		case ActionAnalysis:
			fmt.Fprintf(&b, "%d. [%s] ANALYSIS\n", i+1, ts)
			fmt.Fprintf(&b, "   Reasoning: %s\n", act.Reasoning)
			fmt.Fprintln(&b)

		case ActionToolCall:
			status := "SUCCESS"
			if !act.Success {
				status = "FAILED"
			}
			fmt.Fprintf(&b, "%d. [%s] TOOL CALL - %s\n", i+1, ts, status)
			fmt.Fprintf(&b, "   Server: %s\n", act.Server)
			fmt.Fprintf(&b, "   Tool: %s\n", act.Tool)
			fmt.Fprintf(&b, "   Purpose: %s\n", act.Reasoning)
			params, _ := json.MarshalIndent(act.Parameters, "      ", "  ")
			fmt.Fprintf(&b, "   Parameters: %s\n", string(params))
			fmt.Fprintf(&b, "   Duration: %.2fms\n", act.DurationMS)
			if act.ResultExcerpt != "" {
				fmt.Fprintf(&b, "   Result: %s\n", previewLine(act.ResultExcerpt, 200))
			}
			fmt.Fprintln(&b)

		case ActionSynthesis:
			fmt.Fprintf(&b, "%d. [%s] SYNTHESIS\n", i+1, ts)
			fmt.Fprintf(&b, "   Reasoning: %s\n", act.Reasoning)
			fmt.Fprintln(&b)

		case ActionError:
			fmt.Fprintf(&b, "%d. [%s] ERROR\n", i+1, ts)
			fmt.Fprintf(&b, "   Reasoning: %s\n", act.Reasoning)
			fmt.Fprintln(&b)
		}
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "END OF REPORT")
	fmt.Fprintln(&b, rule)

	return b.String()
}

func previewLine(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SaveReport renders and writes the session report to
// <log_dir>/report_session_<sessionID>_<YYYYMMDD_HHMMSS>.txt.
func (a *Agent) SaveReport(sessionID string) (string, error) {
	if err := os.MkdirAll(a.cfg.LogDir, 0o755); err != nil {
		return "", fmt.Errorf("agent: creating log dir: %w", err)
	}

	report := a.GenerateReport(sessionID)
	name := fmt.Sprintf("report_session_%s_%s.txt", sessionID, time.Now().Format("20060102_150405"))
	path := filepath.Join(a.cfg.LogDir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("agent: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("agent: renaming %s to %s: %w", tmp, path, err)
	}
	return path, nil
}

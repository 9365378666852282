// Package logging provides a minimal leveled logger shared by every gateway
// subsystem, built on Go's standard slog package.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Registry", "connected to %d servers", n)
//	logging.Debug("Transport", "wrote frame id=%d", id)
//	logging.Warn("Agent", "dropped invalid tool call: %s", reason)
//	logging.Error("Transport", err, "session %s closed unexpectedly", name)
//
// Every call is tagged with a subsystem string (Transport, Registry,
// Resilience, LLM, Agent, CLI, Config, ...) so log lines can be filtered by
// component. Output always goes to stderr by default: stdout is reserved for
// the agent's final answer so the CLI stays pipeable even with --debug set.
package logging

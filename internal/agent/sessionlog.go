package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// sessionLogDocument is the on-disk shape written by SaveSessionLog,
// mirroring the original client's log_data dict.
type sessionLogDocument struct {
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	TotalActions int       `json:"total_actions"`
	Actions      []Action  `json:"actions"`
}

// SaveSessionLog writes the full session activity log to
// <log_dir>/session_<sessionID>_<YYYYMMDD_HHMMSS>.json, using a
// write-to-temp-then-rename so a crash mid-write never leaves a truncated
// log file behind.
func (a *Agent) SaveSessionLog(sessionID string) (string, error) {
	if err := os.MkdirAll(a.cfg.LogDir, 0o755); err != nil {
		return "", fmt.Errorf("agent: creating log dir: %w", err)
	}

	actions := a.SessionLog()
	doc := sessionLogDocument{
		SessionID:    sessionID,
		Timestamp:    time.Now(),
		TotalActions: len(actions),
		Actions:      actions,
	}

	name := fmt.Sprintf("session_%s_%s.json", sessionID, doc.Timestamp.Format("20060102_150405"))
	path := filepath.Join(a.cfg.LogDir, name)

	if err := writeAtomic(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

// writeAtomic marshals v as indented JSON and writes it via a temp file
// renamed into place, so readers never observe a partial file.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("agent: marshalling %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("agent: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("agent: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

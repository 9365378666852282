package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesStarterConfigWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_config.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Empty(t, cfg.MCPServers)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 5, cfg.Resilience.Circuit.FailureThreshold)
}

func TestLoad_ReadsConfiguredServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_config.json")

	doc := map[string]any{
		"mcpServers": map[string]any{
			"files": map[string]any{
				"command": "npx",
				"args":    []string{"-y", "@modelcontextprotocol/server-filesystem", "/tmp"},
			},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Contains(t, cfg.MCPServers, "files")
	spec := cfg.MCPServers["files"]
	assert.Equal(t, "files", spec.Name)
	assert.Equal(t, "npx", spec.Command)
}

func TestLoad_RejectsServerMissingCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_config.json")

	doc := map[string]any{
		"mcpServers": map[string]any{
			"broken": map[string]any{"description": "no command"},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_config.json")

	t.Setenv("APP_LLM_DEFAULT_MODEL", "mistral:7b")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mistral:7b", cfg.LLM.DefaultModel)
}

func TestNamedServers_StampsNameFromKey(t *testing.T) {
	in := map[string]ServerSpec{
		"a": {Command: "cmd-a"},
		"b": {Command: "cmd-b"},
	}
	out := namedServers(in)

	assert.Equal(t, "a", out["a"].Name)
	assert.Equal(t, "b", out["b"].Name)
}

func TestSetDefaults(t *testing.T) {
	fake := &fakeViper{values: map[string]interface{}{}}
	setDefaults(fake)

	assert.Equal(t, 5, fake.values["resilience.circuit.failure_threshold"])
	assert.Equal(t, 60*time.Second, fake.values["resilience.circuit.recovery_timeout"])
	assert.Equal(t, true, fake.values["resilience.rate_limit.enabled"])
}

type fakeViper struct {
	values map[string]interface{}
}

func (f *fakeViper) SetDefault(key string, value interface{}) {
	f.values[key] = value
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// DefaultConfigPath is the conventional on-disk location for the gateway's config.
const DefaultConfigPath = "mcp_gateway/client_config.json"

// EnvPrefix is the prefix used for environment overrides: APP_<SECTION>_<KEY>.
const EnvPrefix = "APP"

// rawDocument mirrors the on-disk JSON shape: mcpServers/_disabled_servers
// plus whatever ambient sections (llm, resilience, logging, agent, ...) the
// operator wants to override. All fields are optional; missing sections
// fall back to setDefaults.
type rawDocument struct {
	MCPServersConfig `mapstructure:",squash"`
	Config           `mapstructure:",squash"`
}

// Load reads the configuration file at path (DefaultConfigPath if empty),
// layering in this order: built-in defaults, the JSON file (if present),
// then APP_<SECTION>_<KEY> environment overrides. If the file does not
// exist, a starter file is written (mirroring the original client's
// _create_default_config behavior) and loading proceeds with zero
// configured servers — a valid, if unhelpful, partial-connectivity state.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if writeErr := writeStarterConfig(path); writeErr != nil {
			logging.Warn("Config", "could not write starter config at %s: %v", path, writeErr)
		} else {
			logging.Info("Config", "created starter config at %s", path)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var doc rawDocument
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg := doc.Config
	cfg.ConfigPath = path
	cfg.MCPServers = namedServers(doc.MCPServersConfig.MCPServers)
	cfg.Disabled = namedServers(doc.MCPServersConfig.DisabledServers)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// namedServers stamps each ServerSpec's Name field from its map key, since
// the on-disk schema keys servers by name but ServerSpec carries its own
// Name field for use once it's pulled out of the map.
func namedServers(in map[string]ServerSpec) map[string]ServerSpec {
	out := make(map[string]ServerSpec, len(in))
	for name, spec := range in {
		spec.Name = name
		out[name] = spec
	}
	return out
}

// validate checks what plain JSON decoding by viper does not: every enabled
// server must name a command. It rejects such a server before it reaches
// the Registry.
func validate(cfg *Config) error {
	for name, spec := range cfg.MCPServers {
		if spec.Command == "" {
			return fmt.Errorf("config: server %q is missing required field \"command\"", name)
		}
	}
	return nil
}

// writeStarterConfig creates a minimal default configuration file with an
// empty mcpServers map and one example server staged under
// _disabled_servers, matching the original client's behavior of
// bootstrapping a usable config on first run instead of failing outright.
func writeStarterConfig(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	starter := map[string]any{
		"mcpServers": map[string]any{},
		"_disabled_servers": map[string]any{
			"filesystem": map[string]any{
				"command":     "npx",
				"args":        []string{"-y", "@modelcontextprotocol/server-filesystem", "/home"},
				"description": "Access to filesystem operations (disabled: move to mcpServers to enable)",
			},
		},
	}

	data, err := json.MarshalIndent(starter, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

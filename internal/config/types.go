// Package config loads the gateway's configuration: the mcpServers catalog
// plus the ambient knobs for resilience, logging, and the LLM
// coupling. Loading is layered: built-in defaults, then the JSON config
// file, then APP_<SECTION>_<KEY> environment overrides, then CLI flags.
package config

import "time"

// ServerSpec is the static descriptor of one configured tool server.
// It is immutable after config load.
type ServerSpec struct {
	Name        string            `mapstructure:"-"`
	Command     string            `mapstructure:"command"`
	Args        []string          `mapstructure:"args"`
	Env         map[string]string `mapstructure:"env"`
	Description string            `mapstructure:"description"`
}

// MCPServersConfig is the on-disk schema: a
// top-level "mcpServers" map plus a sibling "_disabled_servers" map of the
// same shape for servers staged but not connected (e.g. awaiting
// credentials).
type MCPServersConfig struct {
	MCPServers      map[string]ServerSpec `mapstructure:"mcpServers" json:"mcpServers"`
	DisabledServers map[string]ServerSpec `mapstructure:"_disabled_servers" json:"_disabled_servers"`
}

// CacheConfig configures one of the four named LRU+TTL caches.
type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CachesConfig holds the four named caches: rag, ollama, scraper, general.
type CachesConfig struct {
	Enabled       bool        `mapstructure:"enabled"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RAG           CacheConfig `mapstructure:"rag"`
	Ollama        CacheConfig `mapstructure:"ollama"`
	Scraper       CacheConfig `mapstructure:"scraper"`
	General       CacheConfig `mapstructure:"general"`
}

// CircuitBreakerConfig configures the per-endpoint circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// RetryConfig configures the exponential-backoff retry wrapper.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// BulkheadConfig configures a bounded-concurrency gate for an endpoint class.
type BulkheadConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// RateLimitConfig configures the token bucket applied per (endpoint, client)
// pair.
type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	PerMinute       float64 `mapstructure:"per_minute"`
	Burst           int     `mapstructure:"burst"`
}

// TimeoutConfig holds the per-call deadlines used across the transport and resilience layers.
type TimeoutConfig struct {
	Handshake     time.Duration `mapstructure:"handshake"`
	Call          time.Duration `mapstructure:"call"`
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`
	ForcedExit    time.Duration `mapstructure:"forced_exit"`
}

// LLMConfig configures the local inference HTTP service coupling.
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	DefaultModel   string        `mapstructure:"default_model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
}

// ResilienceConfig bundles the five middleware primitives: circuit breaking, retry, bulkheads, rate limiting, and caching.
type ResilienceConfig struct {
	Circuit   CircuitBreakerConfig      `mapstructure:"circuit"`
	Retry     RetryConfig               `mapstructure:"retry"`
	Bulkheads map[string]BulkheadConfig `mapstructure:"bulkheads"`
	RateLimit RateLimitConfig           `mapstructure:"rate_limit"`
	Caches    CachesConfig              `mapstructure:"caches"`
	Timeouts  TimeoutConfig             `mapstructure:"timeouts"`
}

// AgentConfig configures agent behavior: session logging and result truncation.
type AgentConfig struct {
	LogDir             string `mapstructure:"log_dir"`
	ResultExcerptChars int    `mapstructure:"result_excerpt_chars"`
	MaxToolOutputBytes int    `mapstructure:"max_tool_output_bytes"`
}

// Config is the top-level, fully-resolved gateway configuration.
type Config struct {
	MCPServers map[string]ServerSpec `mapstructure:"-"`
	Disabled   map[string]ServerSpec `mapstructure:"-"`

	ConfigPath string `mapstructure:"-"`

	LLM        LLMConfig        `mapstructure:"llm"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Agent      AgentConfig      `mapstructure:"agent"`

	WorkspaceRoot string `mapstructure:"workspace_root"`
	AuthRequired  bool   `mapstructure:"auth_required"`
}

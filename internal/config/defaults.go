package config

import "time"

// setDefaults seeds viper with every default named or implied by spec.md
// across the resilience and LLM sections, following the layering priority documented on Config.
func setDefaults(v viperLike) {
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.default_model", "llama3.1:8b")
	v.SetDefault("llm.request_timeout", 300*time.Second)

	v.SetDefault("resilience.circuit.failure_threshold", 5)
	v.SetDefault("resilience.circuit.recovery_timeout", 60*time.Second)

	v.SetDefault("resilience.retry.max_attempts", 3)
	v.SetDefault("resilience.retry.base_delay", 1*time.Second)
	v.SetDefault("resilience.retry.multiplier", 2.0)
	v.SetDefault("resilience.retry.max_delay", 60*time.Second)

	v.SetDefault("resilience.bulkheads.llm.generate.max_concurrent", 10)
	v.SetDefault("resilience.bulkheads.llm.embed.max_concurrent", 5)
	v.SetDefault("resilience.bulkheads.tool.max_concurrent", 16)

	v.SetDefault("resilience.rate_limit.enabled", true)
	v.SetDefault("resilience.rate_limit.per_minute", 60.0)
	v.SetDefault("resilience.rate_limit.burst", 10)

	v.SetDefault("resilience.caches.enabled", true)
	v.SetDefault("resilience.caches.sweep_interval", 60*time.Second)
	v.SetDefault("resilience.caches.rag.capacity", 256)
	v.SetDefault("resilience.caches.rag.ttl", 5*time.Minute)
	v.SetDefault("resilience.caches.ollama.capacity", 128)
	v.SetDefault("resilience.caches.ollama.ttl", 60*time.Second)
	v.SetDefault("resilience.caches.scraper.capacity", 256)
	v.SetDefault("resilience.caches.scraper.ttl", 15*time.Minute)
	v.SetDefault("resilience.caches.general.capacity", 512)
	v.SetDefault("resilience.caches.general.ttl", 5*time.Minute)

	v.SetDefault("resilience.timeouts.handshake", 10*time.Second)
	v.SetDefault("resilience.timeouts.call", 30*time.Second)
	v.SetDefault("resilience.timeouts.disconnect_grace", 10*time.Second)
	v.SetDefault("resilience.timeouts.forced_exit", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("agent.log_dir", "data/mcp_logs")
	v.SetDefault("agent.result_excerpt_chars", 500)
	v.SetDefault("agent.max_tool_output_bytes", 10*1024*1024)

	v.SetDefault("workspace_root", ".")
	v.SetDefault("auth_required", false)
}

// viperLike is the subset of *viper.Viper used by setDefaults, so tests can
// exercise it against a lightweight fake instead of spinning up viper.
type viperLike interface {
	SetDefault(key string, value interface{})
}

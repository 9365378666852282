// Package metrics records call outcomes and exposes them on a Prometheus
// endpoint: duration, success and error kind for each tool call the agent
// executes (LLM calls and cmd's one-shot mcp-call are not observed this
// way), cache hits, retry counts and circuit state from internal/resilience,
// and per-model usage from internal/llm.
// client_golang arrives as a transitive dependency of other tooling in this
// stack; this package is what puts it to direct, exercised use.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// Recorder is the call-outcome sink the resilience pipeline and LLM client
// report into.
type Recorder struct {
	registry *prometheus.Registry

	callDuration *prometheus.HistogramVec
	callTotal    *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	retries      *prometheus.HistogramVec
	circuitState *prometheus.GaugeVec
	modelCalls   *prometheus.CounterVec
	modelTime    *prometheus.CounterVec
	modelLastUse *prometheus.GaugeVec
}

// New creates a Recorder with its own registry, so metrics from this
// gateway never collide with anything else linked into the same process.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toolgateway_call_duration_seconds",
			Help:    "Duration of tool calls executed by the agent through the resilience pipeline.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		callTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgateway_call_total",
			Help: "Total calls per endpoint, partitioned by outcome.",
		}, []string{"endpoint", "success", "error_kind"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgateway_cache_hit_total",
			Help: "Cache hits per named cache.",
		}, []string{"cache"}),
		retries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toolgateway_retries",
			Help:    "Number of retry attempts spent per call before it settled.",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		}, []string{"endpoint"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "toolgateway_circuit_state",
			Help: "Circuit breaker state per endpoint: 0=closed, 1=half-open, 2=open.",
		}, []string{"endpoint"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgateway_model_calls_total",
			Help: "Total generate calls per Ollama model.",
		}, []string{"model"}),
		modelTime: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgateway_model_response_seconds_total",
			Help: "Cumulative response time per Ollama model.",
		}, []string{"model"}),
		modelLastUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "toolgateway_model_last_used_unixtime",
			Help: "Unix timestamp of the last generate call per Ollama model.",
		}, []string{"model"}),
	}

	registry.MustRegister(r.callDuration, r.callTotal, r.cacheHits, r.retries, r.circuitState,
		r.modelCalls, r.modelTime, r.modelLastUse)
	return r
}

// ObserveCall records one completed call's duration, success, and the kind
// of error it failed with (empty string on success).
func (r *Recorder) ObserveCall(endpoint string, durationSeconds float64, success bool, errorKind string) {
	r.callDuration.WithLabelValues(endpoint).Observe(durationSeconds)
	r.callTotal.WithLabelValues(endpoint, boolLabel(success), errorKind).Inc()
}

// ObserveCacheHit records a cache hit for the named cache (rag, ollama,
// scraper, general).
func (r *Recorder) ObserveCacheHit(cacheName string) {
	r.cacheHits.WithLabelValues(cacheName).Inc()
}

// ObserveRetries records how many attempts a call took before it settled.
func (r *Recorder) ObserveRetries(endpoint string, attempts int) {
	r.retries.WithLabelValues(endpoint).Observe(float64(attempts))
}

// SetCircuitState records the current breaker state for an endpoint: 0
// closed, 1 half-open, 2 open.
func (r *Recorder) SetCircuitState(endpoint string, state int) {
	r.circuitState.WithLabelValues(endpoint).Set(float64(state))
}

// ObserveModelUsage records one generate call's model and response time,
// backing the model-usage stats surfaced by ModelStats.
func (r *Recorder) ObserveModelUsage(model string, responseSeconds float64, at time.Time) {
	r.modelCalls.WithLabelValues(model).Inc()
	r.modelTime.WithLabelValues(model).Add(responseSeconds)
	r.modelLastUse.WithLabelValues(model).Set(float64(at.Unix()))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Serve starts an HTTP server exposing /metrics on addr until ctx is done.
// The gateway is a CLI, not a long-running service, so this is optional and
// only started when the operator asks for it via the --metrics-addr flag.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logging.Info("Metrics", "serving Prometheus metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

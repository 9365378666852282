// Package llm couples the gateway to a local Ollama instance: model
// discovery, model switching, and prompt generation with RAG-style context
// injection, ported from the original client's OllamaClient.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrvs-oss/toolgateway/internal/metrics"
	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// modelCheckInterval bounds how often DiscoverModels actually hits the
// network; repeated calls within the window return the cached list.
const modelCheckInterval = 60 * time.Second

// ModelInfo mirrors the per-model metadata Ollama's /api/tags returns.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// ModelStats tracks in-process usage counters for one model, the reduced,
// non-persisted form of the original client's per-model response-time
// tracking: how many generate calls it served, how much cumulative response
// time it cost, and when it was last used.
type ModelStats struct {
	Count             int
	TotalResponseTime time.Duration
	LastUsed          time.Time
}

// AverageResponseTime returns TotalResponseTime / Count, or zero if the
// model has never been called.
func (s ModelStats) AverageResponseTime() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalResponseTime / time.Duration(s.Count)
}

// Client talks to one Ollama instance. It is safe for concurrent use; the
// HTTP client itself pools connections, and the cached model list is
// guarded by a mutex.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	requestTimeout time.Duration
	recorder     *metrics.Recorder

	mu              sync.Mutex
	currentModel    string
	availableModels []string
	modelInfo       map[string]ModelInfo
	lastModelCheck  time.Time
	modelStats      map[string]ModelStats
}

// New creates a Client against baseURL, defaulting to defaultModel until
// SwitchModel changes it.
func New(baseURL, defaultModel string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     &http.Client{Timeout: requestTimeout},
		requestTimeout: requestTimeout,
		currentModel:   defaultModel,
		modelInfo:       make(map[string]ModelInfo),
		modelStats:      make(map[string]ModelStats),
	}
}

// SetRecorder attaches a metrics recorder so every Generate call also
// reports model usage to Prometheus, in addition to the in-process
// ModelStats this Client already tracks. Optional; a nil recorder (the
// default) disables the Prometheus side without affecting ModelStats.
func (c *Client) SetRecorder(recorder *metrics.Recorder) {
	c.recorder = recorder
}

// ModelStats returns a snapshot of per-model usage counters accumulated
// since this Client was created: call count, total response time, and
// last-used timestamp per model.
func (c *Client) ModelStats() map[string]ModelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]ModelStats, len(c.modelStats))
	for k, v := range c.modelStats {
		out[k] = v
	}
	return out
}

func (c *Client) recordModelUsage(model string, elapsed time.Duration) {
	now := time.Now()
	c.mu.Lock()
	stats := c.modelStats[model]
	stats.Count++
	stats.TotalResponseTime += elapsed
	stats.LastUsed = now
	c.modelStats[model] = stats
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.ObserveModelUsage(model, elapsed.Seconds(), now)
	}
}

// CurrentModel returns the model Generate will use by default.
func (c *Client) CurrentModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentModel
}

type tagsResponse struct {
	Models []struct {
		Name       string `json:"name"`
		Size       int64  `json:"size"`
		ModifiedAt string `json:"modified_at"`
	} `json:"models"`
}

// DiscoverModels lists models known to the Ollama instance, caching the
// result for modelCheckInterval to avoid hammering it.
func (c *Client) DiscoverModels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if time.Since(c.lastModelCheck) < modelCheckInterval && len(c.availableModels) > 0 {
		cached := append([]string(nil), c.availableModels...)
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: discovering models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: /api/tags returned HTTP %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("llm: decoding /api/tags: %w", err)
	}

	models := make([]string, 0, len(tags.Models))
	info := make(map[string]ModelInfo, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
		info[m.Name] = ModelInfo{Name: m.Name, Size: m.Size, ModifiedAt: m.ModifiedAt}
	}

	c.mu.Lock()
	c.availableModels = models
	c.modelInfo = info
	c.lastModelCheck = time.Now()
	c.mu.Unlock()

	return models, nil
}

// SwitchModel resolves modelName against the discovered catalog (exact
// match first, then a unique prefix match), verifies it responds to a
// throwaway prompt, and makes it the default for subsequent Generate calls.
func (c *Client) SwitchModel(ctx context.Context, modelName string) error {
	available, err := c.DiscoverModels(ctx)
	if err != nil {
		return err
	}

	target, err := resolveModel(modelName, available)
	if err != nil {
		return err
	}

	if _, err := c.Generate(ctx, GenerateRequest{Prompt: "Hello", Model: target}); err != nil {
		return fmt.Errorf("llm: model %q did not respond: %w", target, err)
	}

	c.mu.Lock()
	old := c.currentModel
	c.currentModel = target
	c.mu.Unlock()

	logging.Info("LLM", "switched model from %q to %q", old, target)
	return nil
}

func resolveModel(name string, available []string) (string, error) {
	for _, m := range available {
		if m == name {
			return m, nil
		}
	}

	var matches []string
	for _, m := range available {
		if strings.HasPrefix(m, name) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("llm: model %q not available (have: %v)", name, available)
	default:
		return "", fmt.Errorf("llm: model %q is ambiguous, matches: %v", name, matches)
	}
}

// GenerateRequest bundles Generate's inputs: the user prompt, an
// optional system preamble, optional RAG context to inject, and an optional
// per-call model override.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	Context      string
	Model        string
}

type generateWireRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateWireResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate issues a non-streaming /api/generate call with the composite
// prompt assembled by buildPrompt.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.CurrentModel()
	}
	start := time.Now()
	defer func() { c.recordModelUsage(model, time.Since(start)) }()

	wireReq := generateWireRequest{
		Model:  model,
		Prompt: buildPrompt(req.Prompt, req.Context, req.SystemPrompt),
		Stream: false,
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: /api/generate returned HTTP %d", resp.StatusCode)
	}

	var wireResp generateWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return "", fmt.Errorf("llm: decoding /api/generate response: %w", err)
	}

	return strings.TrimSpace(wireResp.Response), nil
}

// buildPrompt assembles the system preamble, an optional "Context
// Information:" block (the RAG injection point), and the user's question
// into the single prompt string Ollama's /api/generate expects.
func buildPrompt(userPrompt, ragContext, systemPrompt string) string {
	var parts []string

	if systemPrompt != "" {
		parts = append(parts, "System: "+systemPrompt)
	}

	if strings.TrimSpace(ragContext) != "" {
		parts = append(parts, "Context Information:", ragContext,
			"\nBased on the above context and your knowledge, please answer the following question:")
	}

	parts = append(parts, "Question: "+userPrompt)
	return strings.Join(parts, "\n\n")
}

// ListModels returns the discovered models with the size and modification
// time /api/tags reported, for the `mcp-models` command. Which model is
// current is available separately from CurrentModel.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	names, err := c.DiscoverModels(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		info := c.modelInfo[name]
		info.Name = name
		out = append(out, info)
	}
	return out, nil
}

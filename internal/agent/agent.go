// Package agent drives the Analyze → Validate → Execute → Log → Synthesize
// loop: it asks the LLM which tools (if any) a user request needs,
// validates the LLM's tool plan against the live catalog, executes the
// independent tool calls concurrently, and logs every step for later
// inspection and reporting. Ported from the original MCPAgent.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jrvs-oss/toolgateway/internal/catalog"
	"github.com/jrvs-oss/toolgateway/internal/config"
	"github.com/jrvs-oss/toolgateway/internal/llm"
	"github.com/jrvs-oss/toolgateway/internal/metrics"
	"github.com/jrvs-oss/toolgateway/internal/registry"
	"github.com/jrvs-oss/toolgateway/internal/resilience"
	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// Plan is the LLM's answer to "does this request need tools, and which
// ones" — the parsed shape of the JSON the analysis prompt asks for.
type Plan struct {
	NeedsTools       bool              `json:"needs_tools"`
	Reasoning        string            `json:"reasoning"`
	RecommendedTools []catalog.ToolCall `json:"recommended_tools"`
}

// Result is what ProcessRequest returns to the CLI layer.
type Result struct {
	Plan        Plan
	Actions     []Action
	ToolResults []catalog.ToolResult
	// FinalAnswer is the synthesis step's generated response: the system
	// preamble, the tool-result summaries, and the user message composed
	// into one prompt and sent through a closing generate call. If that
	// call fails it holds a plain account of what was executed instead.
	FinalAnswer string
	// Summary is what the CLI prints for this turn; it is always equal to
	// FinalAnswer.
	Summary string
}

// Agent ties the registry, the LLM client, and the resilience pipeline
// together and keeps the running session's activity log.
type Agent struct {
	registry   *registry.Registry
	llmClient  *llm.Client
	pipeline   *resilience.Pipeline
	recorder   *metrics.Recorder
	cfg        config.AgentConfig

	mu         sync.Mutex
	sessionLog []Action
}

// New builds an Agent. recorder may be nil, in which case metrics are
// simply not recorded.
func New(reg *registry.Registry, llmClient *llm.Client, pipeline *resilience.Pipeline, recorder *metrics.Recorder, cfg config.AgentConfig) *Agent {
	return &Agent{registry: reg, llmClient: llmClient, pipeline: pipeline, recorder: recorder, cfg: cfg}
}

const analysisPromptTemplate = `You are an AI agent analyzer. Given a user request and available tools, determine if any tools should be used.

User Request: %q

Available Tools:
%s

Analyze the request and respond with JSON:
{
  "needs_tools": true/false,
  "reasoning": "why tools are/aren't needed",
  "recommended_tools": [
    {
      "server": "server_name",
      "tool": "tool_name",
      "parameters": {"key": "value"},
      "purpose": "what this tool will accomplish"
    }
  ]
}

Respond ONLY with valid JSON, no other text.`

// Analyze asks the LLM whether userMessage needs any of the currently
// connected tools, and if so which ones with what parameters.
func (a *Agent) Analyze(ctx context.Context, userMessage string) (Plan, error) {
	tools := a.registry.ListTools()
	if len(tools) == 0 {
		return Plan{NeedsTools: false, Reasoning: "No MCP tools available"}, nil
	}

	catalogJSON, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return Plan{}, fmt.Errorf("agent: marshalling tool catalog: %w", err)
	}

	prompt := fmt.Sprintf(analysisPromptTemplate, userMessage, string(catalogJSON))

	raw, err := a.pipeline.Execute(ctx, resilience.CallOptions{
		Endpoint:      "llm:generate",
		BulkheadClass: "llm.generate",
	}, func(ctx context.Context) (any, error) {
		return a.llmClient.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
	})
	if err != nil {
		return Plan{NeedsTools: false, Reasoning: fmt.Sprintf("analysis error: %v", err)}, nil
	}

	response, _ := raw.(string)

	var plan Plan
	if err := extractJSON(response, &plan); err != nil {
		logging.Warn("Agent", "could not parse analysis response: %v", err)
		return Plan{NeedsTools: false, Reasoning: "Could not parse AI response"}, nil
	}
	return plan, nil
}

// validate drops any recommended tool call that doesn't name a tool
// actually present in the live catalog, or whose arguments are missing a
// property the tool's schema marks required, logging a warning for each one
// dropped rather than failing the whole plan (edge case: the LLM
// hallucinates a tool/server name or omits a required parameter).
func (a *Agent) validate(plan Plan) []catalog.ToolCall {
	known := make(map[string]catalog.ToolDescriptor)
	for _, t := range a.registry.ListTools() {
		known[t.Key()] = t
	}

	var valid []catalog.ToolCall
	for _, call := range plan.RecommendedTools {
		key := call.ServerName + "/" + call.ToolName
		desc, ok := known[key]
		if !ok {
			logging.Warn("Agent", "dropping recommended tool %s: not in live catalog", key)
			continue
		}
		if missing := missingRequired(desc, call.Arguments); len(missing) > 0 {
			logging.Warn("Agent", "dropping recommended tool %s: missing required parameter(s) %v", key, missing)
			continue
		}
		valid = append(valid, call)
	}
	return valid
}

// missingRequired reports which of desc's schema-required properties are
// absent from args.
func missingRequired(desc catalog.ToolDescriptor, args map[string]any) []string {
	var missing []string
	for _, name := range desc.InputSchema.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Execute runs every call in calls concurrently — they are independent by
// construction, since the analysis step never expresses a dependency
// between recommended tools — and returns one Action per call alongside the
// registry's raw result. A plain errgroup.Group is used rather than
// errgroup.WithContext: one tool call failing must never cancel its
// siblings, since each is independent and partial success is expected.
func (a *Agent) Execute(ctx context.Context, calls []catalog.ToolCall) ([]Action, []catalog.ToolResult) {
	actions := make([]Action, len(calls))
	results := make([]catalog.ToolResult, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			actions[i], results[i] = a.executeOne(ctx, call)
			return nil
		})
	}
	g.Wait()

	a.mu.Lock()
	a.sessionLog = append(a.sessionLog, actions...)
	a.mu.Unlock()

	return actions, results
}

func (a *Agent) executeOne(ctx context.Context, call catalog.ToolCall) (Action, catalog.ToolResult) {
	start := time.Now()

	raw, err := a.pipeline.Execute(ctx, resilience.CallOptions{
		Endpoint:      call.Endpoint(),
		BulkheadClass: "tool",
	}, func(ctx context.Context) (any, error) {
		result := a.registry.CallTool(ctx, call)
		if !result.Success {
			return result, fmt.Errorf("%s", result.Error)
		}
		return result, nil
	})

	duration := float64(time.Since(start).Microseconds()) / 1000.0

	var result catalog.ToolResult
	if err != nil {
		result = catalog.ToolResult{ServerName: call.ServerName, ToolName: call.ToolName, Success: false, Error: err.Error(), DurationMS: duration}
	} else {
		result = raw.(catalog.ToolResult)
	}

	if a.recorder != nil {
		a.recorder.ObserveCall(call.Endpoint(), duration/1000.0, result.Success, errorKind(err))
	}

	excerptChars := a.cfg.ResultExcerptChars
	if excerptChars <= 0 {
		excerptChars = 500
	}

	action := Action{
		Timestamp:     start,
		Kind:          ActionToolCall,
		Server:        call.ServerName,
		Tool:          call.ToolName,
		Parameters:    call.Arguments,
		Reasoning:     call.Purpose,
		ResultExcerpt: result.Truncate(excerptChars),
		Success:       result.Success,
		DurationMS:    duration,
	}
	return action, result
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}

// logAction appends one entry to the session log under lock.
func (a *Agent) logAction(action Action) {
	a.mu.Lock()
	a.sessionLog = append(a.sessionLog, action)
	a.mu.Unlock()
}

const synthesisPromptTemplate = `You are an AI assistant composing a final answer for the user.

User Request: %q

Tool Results:
%s

Using the tool results above (if any), write a clear, direct answer to the
user's request. Do not mention tools, servers, or JSON — respond as if you
simply knew the answer.`

// synthesize composes the closing generation call: a system preamble, the
// tool-result summaries, and the user message, and returns the LLM's answer.
// If generation itself fails (LLMUnavailable), the agent degrades rather
// than failing the whole turn: it logs an error action and falls back to a
// plain account of what was executed, exactly as Analyze degrades on its
// own LLM failure.
func (a *Agent) synthesize(ctx context.Context, userMessage string, results []catalog.ToolResult) string {
	prompt := fmt.Sprintf(synthesisPromptTemplate, userMessage, summarizeResults(results))

	raw, err := a.pipeline.Execute(ctx, resilience.CallOptions{
		Endpoint:      "llm:generate",
		BulkheadClass: "llm.generate",
	}, func(ctx context.Context) (any, error) {
		return a.llmClient.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
	})

	if err != nil {
		logging.Warn("Agent", "synthesis failed: %v", err)
		a.logAction(Action{
			Timestamp: time.Now(),
			Kind:      ActionError,
			Reasoning: fmt.Sprintf("synthesis error: %v", err),
			Success:   false,
		})
		return fallbackAnswer(results)
	}

	answer, _ := raw.(string)
	a.logAction(Action{
		Timestamp: time.Now(),
		Kind:      ActionSynthesis,
		Reasoning: "composed final answer from tool results",
		Success:   true,
	})
	return answer
}

// summarizeResults renders each tool result as a short line for the
// synthesis prompt, noting failures so the LLM can acknowledge them rather
// than fabricate a success.
func summarizeResults(results []catalog.ToolResult) string {
	if len(results) == 0 {
		return "(no tools were used for this request)"
	}
	var b strings.Builder
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "- %s/%s succeeded: %s\n", r.ServerName, r.ToolName, r.Truncate(500))
		} else {
			fmt.Fprintf(&b, "- %s/%s failed: %s\n", r.ServerName, r.ToolName, r.Error)
		}
	}
	return b.String()
}

// fallbackAnswer is used when the LLM is unreachable for the synthesis
// call: a plain, tool-free account of what was executed.
func fallbackAnswer(results []catalog.ToolResult) string {
	if len(results) == 0 {
		return "No tools needed - handling as conversation"
	}
	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	return fmt.Sprintf("Executed %d tool(s), %d successful", len(results), successful)
}

// ProcessRequest is the full loop: analyze, validate, execute, log,
// synthesize. Synthesize always runs, even when Analyze found no tools
// needed or every recommended call was dropped by Validate, so the agent
// degrades to a plain answer rather than skipping generation entirely.
func (a *Agent) ProcessRequest(ctx context.Context, userMessage string) (Result, error) {
	plan, err := a.Analyze(ctx, userMessage)
	if err != nil {
		return Result{}, err
	}

	a.logAction(Action{
		Timestamp: time.Now(),
		Kind:      ActionAnalysis,
		Reasoning: plan.Reasoning,
		Success:   true,
	})

	var actions []Action
	var results []catalog.ToolResult

	if plan.NeedsTools {
		validCalls := a.validate(plan)
		if len(validCalls) > 0 {
			actions, results = a.Execute(ctx, validCalls)
		} else {
			logging.Warn("Agent", "analysis recommended tools, but none matched the live catalog")
		}
	}

	answer := a.synthesize(ctx, userMessage, results)

	return Result{
		Plan:        plan,
		Actions:     actions,
		ToolResults: results,
		FinalAnswer: answer,
		Summary:     answer,
	}, nil
}

// SessionLog returns a snapshot of every action logged so far this session.
func (a *Agent) SessionLog() []Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Action, len(a.sessionLog))
	copy(out, a.sessionLog)
	return out
}

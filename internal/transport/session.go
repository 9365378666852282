// Package transport manages one child MCP server process per configured
// entry: spawning it, completing the MCP `initialize` handshake over
// stdio, and exposing a small call surface the Client Registry drives. The
// newline-delimited JSON-RPC framing itself is handled by mark3labs/mcp-go's
// client package; this package owns the lifecycle state machine, the
// per-session tool catalog cache, and translating mcp-go's errors into the
// taxonomy the Resilience Middleware and Agent understand.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jrvs-oss/toolgateway/internal/catalog"
	"github.com/jrvs-oss/toolgateway/internal/config"
	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// State is one stage of a ServerSession's lifecycle.
type State int

const (
	// StateInitializing covers process spawn through handshake completion.
	StateInitializing State = iota
	// StateReady means the handshake succeeded and calls may be issued.
	StateReady
	// StateDraining means Disconnect has been requested; in-flight calls
	// are allowed to finish but no new ones are accepted.
	StateDraining
	// StateClosed means the child process has exited and the session is
	// inert.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// clientName/clientVersion identify this gateway to every server it
// connects to during the `initialize` handshake.
const (
	protocolVersion = "2024-11-05"
	clientName      = "toolgateway"
	clientVersion   = "1.0.0"
)

// ServerSession owns one child server's connection and its cached catalog.
// All fields below mu are guarded by it; the underlying mcp-go client is
// internally safe for concurrent CallTool invocations.
type ServerSession struct {
	spec config.ServerSpec

	mu            sync.RWMutex
	state         State
	client        mcpclient.MCPClient
	catalog       []catalog.ToolDescriptor
	lastHeartbeat time.Time
	serverInfo    mcp.Implementation
}

// Name returns the configured server name (used as the routing key
// throughout the Client Registry and Resilience layers).
func (s *ServerSession) Name() string { return s.spec.Name }

// State returns the session's current lifecycle state.
func (s *ServerSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Catalog returns the tools discovered at handshake time, refreshed by
// RefreshCatalog. Safe to call concurrently with in-flight tool calls.
func (s *ServerSession) Catalog() []catalog.ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.ToolDescriptor, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// Connect spawns the child process described by spec, completes the MCP
// handshake, and fetches its initial tool catalog. handshakeTimeout bounds
// both steps combined.
func Connect(ctx context.Context, spec config.ServerSpec, handshakeTimeout time.Duration) (*ServerSession, error) {
	session := &ServerSession{spec: spec, state: StateInitializing}

	envStrings := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	logging.Debug("Transport", "spawning %s: %s %v", spec.Name, spec.Command, spec.Args)
	c, err := mcpclient.NewStdioMCPClient(spec.Command, envStrings, spec.Args...)
	if err != nil {
		return nil, &SpawnError{Server: spec.Name, Err: err}
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	initResult, err := c.Initialize(handshakeCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: protocolVersion,
			ClientInfo:      mcp.Implementation{Name: clientName, Version: clientVersion},
			Capabilities:    mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		_ = c.Close()
		if handshakeCtx.Err() != nil {
			return nil, &TimeoutError{Server: spec.Name, Method: "initialize"}
		}
		return nil, &HandshakeError{Server: spec.Name, Err: err}
	}

	session.mu.Lock()
	session.client = c
	session.serverInfo = initResult.ServerInfo
	session.state = StateReady
	session.lastHeartbeat = now()
	session.mu.Unlock()

	if err := session.RefreshCatalog(handshakeCtx); err != nil {
		logging.Warn("Transport", "%s: initial tools/list failed: %v", spec.Name, err)
	}

	logging.Info("Transport", "connected to %s (server %s %s)", spec.Name, initResult.ServerInfo.Name, initResult.ServerInfo.Version)
	return session, nil
}

// now is a seam so session bookkeeping doesn't hardcode time.Now in places a
// test might want to control; production always uses the real clock.
var now = time.Now

// RefreshCatalog re-issues tools/list and replaces the cached catalog.
func (s *ServerSession) RefreshCatalog(ctx context.Context) error {
	s.mu.RLock()
	c := s.client
	ready := s.state == StateReady
	s.mu.RUnlock()
	if !ready || c == nil {
		return &ConnectionLostError{Server: s.spec.Name, Reason: "session not ready"}
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return s.translateErr("tools/list", err)
	}

	descriptors := make([]catalog.ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		descriptors = append(descriptors, catalog.FromMCPTool(s.spec.Name, t))
	}

	s.mu.Lock()
	s.catalog = descriptors
	s.mu.Unlock()
	return nil
}

// Call invokes one tool and returns its raw mcp-go result. Timeout is the
// caller's responsibility via ctx; Call itself distinguishes a context
// deadline from every other failure so the Resilience Middleware can tell a
// TimeoutError from a protocol-level RPCError.
func (s *ServerSession) Call(ctx context.Context, toolName string, args map[string]any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	c := s.client
	state := s.state
	s.mu.RUnlock()

	if state != StateReady {
		return nil, &ConnectionLostError{Server: s.spec.Name, Reason: fmt.Sprintf("session is %s", state)}
	}

	result, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      toolName,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, s.translateErr(toolName, err)
	}

	s.mu.Lock()
	s.lastHeartbeat = now()
	s.mu.Unlock()
	return result, nil
}

// translateErr maps an mcp-go error into the shared taxonomy, marking the
// session Closed when the failure looks like a dead child (EOF/broken pipe)
// rather than a protocol-level tool error.
func (s *ServerSession) translateErr(method string, err error) error {
	if ctxErr := err; ctxErr != nil {
		// context deadline surfaces from the client as a wrapped
		// context.DeadlineExceeded; mcp-go does not export a typed
		// error for it, so we match on the stdlib sentinel.
		if deadlineExceeded(err) {
			return &TimeoutError{Server: s.spec.Name, Method: method}
		}
	}
	if looksLikeDeadProcess(err) {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		return &ConnectionLostError{Server: s.spec.Name, Reason: err.Error()}
	}
	return &RPCError{Code: -32000, Message: err.Error()}
}

// Disconnect requests a graceful shutdown: it transitions to Draining (so
// Call rejects new work), waits the full grace period or until ctx is done,
// then closes the underlying client (which terminates the child process).
// It does not track in-flight calls, so the wait does not end early when
// they finish, and calls still running after grace are cut off by the close.
func (s *ServerSession) Disconnect(ctx context.Context, grace time.Duration) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDraining
	c := s.client
	s.mu.Unlock()

	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	if err := c.Close(); err != nil {
		logging.Warn("Transport", "%s: error closing client: %v", s.spec.Name, err)
		return err
	}
	logging.Info("Transport", "disconnected from %s", s.spec.Name)
	return nil
}

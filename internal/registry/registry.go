// Package registry maintains the live set of connected tool servers, their
// aggregated tool catalog, and the name-resolution and search operations the
// Agent drives. It owns no resilience or transport-framing
// concerns itself: each server's connection lifecycle lives in
// internal/transport, and retry/circuit/timeout/cache behavior is applied by
// the caller (internal/agent) wrapping CallTool through
// internal/resilience — keeping the registry a plain, synchronously
// testable map of name to session.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jrvs-oss/toolgateway/internal/catalog"
	"github.com/jrvs-oss/toolgateway/internal/config"
	"github.com/jrvs-oss/toolgateway/internal/transport"
	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// ServerStatus summarizes one configured server for the `/mcp-servers`
// command and startup banner.
type ServerStatus struct {
	Name      string
	Connected bool
	ToolCount int
	Error     string
}

// Registry is the aggregated view over every configured tool server.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*transport.ServerSession
	connectErrs map[string]error
	updateChan  chan struct{}
}

// New creates an empty registry. Call ConnectAll to populate it.
func New() *Registry {
	return &Registry{
		sessions:    make(map[string]*transport.ServerSession),
		connectErrs: make(map[string]error),
		updateChan:  make(chan struct{}, 1),
	}
}

// GetUpdateChannel returns a channel that receives a notification every time
// the aggregated catalog changes (a server connects, disconnects, or
// refreshes its tools). The channel is buffered 1; readers should drain and
// re-fetch rather than assume one notification per change.
func (r *Registry) GetUpdateChannel() <-chan struct{} {
	return r.updateChan
}

func (r *Registry) notifyUpdate() {
	select {
	case r.updateChan <- struct{}{}:
	default:
	}
}

// ConnectAll spawns every enabled server from cfg concurrently and returns
// once all attempts have settled. Per the gateway's partial-connectivity
// requirement, a failure to connect one server never prevents the others
// from being used — ConnectAll only returns an error if every configured
// server failed; with no servers configured it logs a warning and returns
// nil. Per-server failures are recorded and surfaced via ListServers.
func (r *Registry) ConnectAll(ctx context.Context, cfg *config.Config) error {
	if len(cfg.MCPServers) == 0 {
		logging.Warn("Registry", "no servers configured in mcpServers; gateway will start with zero tools")
		return nil
	}

	// A plain (non-WithContext) errgroup.Group never cancels its siblings on
	// a member's error, which is exactly the partial-connectivity semantics
	// ConnectAll needs: one server failing to spawn must never abort the
	// others' handshakes.
	var g errgroup.Group
	for _, spec := range cfg.MCPServers {
		spec := spec
		g.Go(func() error {
			return r.connectOne(ctx, spec, cfg.Resilience.Timeouts.Handshake)
		})
	}
	firstErr := g.Wait()

	r.mu.RLock()
	connected := len(r.sessions)
	r.mu.RUnlock()

	if connected == 0 {
		return fmt.Errorf("registry: failed to connect to any of %d configured servers: %w", len(cfg.MCPServers), firstErr)
	}
	return nil
}

func (r *Registry) connectOne(ctx context.Context, spec config.ServerSpec, handshakeTimeout time.Duration) error {
	session, err := transport.Connect(ctx, spec, handshakeTimeout)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		logging.Error("Registry", err, "failed to connect to %s", spec.Name)
		r.connectErrs[spec.Name] = err
		return err
	}
	delete(r.connectErrs, spec.Name)
	r.sessions[spec.Name] = session
	r.notifyUpdate()
	return nil
}

// ListServers returns the status of every server that was attempted,
// connected or not, sorted by name for stable CLI output.
func (r *Registry) ListServers() []ServerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make(map[string]struct{})
	for name := range r.sessions {
		names[name] = struct{}{}
	}
	for name := range r.connectErrs {
		names[name] = struct{}{}
	}

	out := make([]ServerStatus, 0, len(names))
	for name := range names {
		status := ServerStatus{Name: name}
		if session, ok := r.sessions[name]; ok {
			status.Connected = session.State() == transport.StateReady
			status.ToolCount = len(session.Catalog())
		}
		if err, ok := r.connectErrs[name]; ok {
			status.Error = err.Error()
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListTools returns the full aggregated catalog across every connected
// server, sorted by server then tool name.
func (r *Registry) ListTools() []catalog.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []catalog.ToolDescriptor
	for _, session := range r.sessions {
		all = append(all, session.Catalog()...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ServerName != all[j].ServerName {
			return all[i].ServerName < all[j].ServerName
		}
		return all[i].ToolName < all[j].ToolName
	})
	return all
}

// ToolsForServer returns the catalog for a single connected server.
func (r *Registry) ToolsForServer(name string) ([]catalog.ToolDescriptor, error) {
	r.mu.RLock()
	session, ok := r.sessions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: server %q is not connected", name)
	}
	return session.Catalog(), nil
}

// SearchTools is the supplemented feature grounded on the original client's
// search_tools: a case-insensitive substring match over both tool name and
// description, scanning the full aggregated catalog.
func (r *Registry) SearchTools(query string) []catalog.ToolDescriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return r.ListTools()
	}

	var matches []catalog.ToolDescriptor
	for _, desc := range r.ListTools() {
		if strings.Contains(strings.ToLower(desc.ToolName), query) ||
			strings.Contains(strings.ToLower(desc.Description), query) {
			matches = append(matches, desc)
		}
	}
	return matches
}

// ResolveSession returns the live session for a server name, the routing
// primitive every resilience-wrapped call goes through.
func (r *Registry) ResolveSession(serverName string) (*transport.ServerSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[serverName]
	if !ok {
		return nil, fmt.Errorf("registry: unknown server %q", serverName)
	}
	return session, nil
}

// CallTool performs one tool invocation with no resilience wrapping beyond
// what the session itself provides; callers that need retry, circuit
// breaking, caching, or rate limiting wrap this call via
// internal/resilience, keyed on catalog.ToolCall.Endpoint().
func (r *Registry) CallTool(ctx context.Context, call catalog.ToolCall) catalog.ToolResult {
	start := time.Now()
	session, err := r.ResolveSession(call.ServerName)
	if err != nil {
		return catalog.ToolResult{ServerName: call.ServerName, ToolName: call.ToolName, Success: false, Error: err.Error()}
	}

	result, err := session.Call(ctx, call.ToolName, call.Arguments)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		return catalog.ToolResult{ServerName: call.ServerName, ToolName: call.ToolName, Success: false, Error: err.Error(), DurationMS: elapsed}
	}

	return catalog.ToolResult{
		ServerName: call.ServerName,
		ToolName:   call.ToolName,
		Success:    !result.IsError,
		Content:    result.Content,
		DurationMS: elapsed,
	}
}

// RefreshAll re-issues tools/list on every connected session and notifies
// subscribers if the catalog changed in size. Intended to run on a timer so
// servers that add tools dynamically (e.g. after their own startup work)
// are picked up without a gateway restart.
func (r *Registry) RefreshAll(ctx context.Context) {
	r.mu.RLock()
	sessions := make([]*transport.ServerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	changed := false
	for _, session := range sessions {
		before := len(session.Catalog())
		if err := session.RefreshCatalog(ctx); err != nil {
			logging.Warn("Registry", "refreshing catalog for %s: %v", session.Name(), err)
			continue
		}
		if len(session.Catalog()) != before {
			changed = true
		}
	}
	if changed {
		r.notifyUpdate()
	}
}

// Shutdown disconnects every connected session in parallel; each session
// waits out grace (see ServerSession.Disconnect) before closing.
func (r *Registry) Shutdown(ctx context.Context, grace time.Duration) {
	r.mu.RLock()
	sessions := make([]*transport.ServerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *transport.ServerSession) {
			defer wg.Done()
			if err := s.Disconnect(ctx, grace); err != nil {
				logging.Warn("Registry", "disconnecting %s: %v", s.Name(), err)
			}
		}(session)
	}
	wg.Wait()
}

package mcphub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/sethvargo/go-retry"
	"github.com/slok/goresilience"
	"github.com/slok/goresilience/circuitbreaker"

	"github.com/mcphub-io/mcphub/pkg/corekit"
	"github.com/mcphub-io/mcphub/pkg/logger"
)

// LifecycleConfig bounds the Server Lifecycle Manager's behavior across all
// backends it supervises.
type LifecycleConfig struct {
	MaxConcurrentConnections int
	HealthCheckInterval      time.Duration
	InitialReconnectDelay    time.Duration
	MaxReconnectDelay        time.Duration
	ConnectTimeout           time.Duration
}

func DefaultLifecycleConfig() *LifecycleConfig {
	return &LifecycleConfig{
		MaxConcurrentConnections: 50,
		HealthCheckInterval:      30 * time.Second,
		InitialReconnectDelay:    2 * time.Second,
		MaxReconnectDelay:        60 * time.Second,
		ConnectTimeout:           30 * time.Second,
	}
}

// connection bundles one backend's live client with its bookkeeping.
type connection struct {
	config *ServerConfig
	status *ServerStatus

	mu     sync.Mutex
	client *mcpclient.Client
	cancel context.CancelFunc
}

// LifecycleManager owns every backend connection: it starts them, supervises
// health, reconnects on failure with capped exponential backoff, and is the
// only component that talks to mark3labs/mcp-go directly.
type LifecycleManager struct {
	config   *LifecycleConfig
	registry *Registry
	tracer   *Tracer

	mu          sync.RWMutex
	conns       map[string]*connection
	reconnecting map[string]bool
	reconnectMu sync.Mutex

	breakersMu sync.Mutex
	breakers   map[string]goresilience.Runner

	ctx    context.Context
	cancel context.CancelFunc
}

func NewLifecycleManager(registry *Registry, tracer *Tracer, config *LifecycleConfig) *LifecycleManager {
	if config == nil {
		config = DefaultLifecycleConfig()
	}
	return &LifecycleManager{
		config:       config,
		registry:     registry,
		tracer:       tracer,
		conns:        make(map[string]*connection),
		reconnecting: make(map[string]bool),
		breakers:     make(map[string]goresilience.Runner),
	}
}

// breakerFor returns the per-server circuit breaker runner, creating it on
// first use. A backend that keeps failing trips its own breaker without
// affecting dispatch to any other server.
func (m *LifecycleManager) breakerFor(serverID string) goresilience.Runner {
	m.breakersMu.Lock()
	defer m.breakersMu.Unlock()
	if r, ok := m.breakers[serverID]; ok {
		return r
	}
	r := goresilience.RunnerChain(circuitbreaker.NewMiddleware(circuitbreaker.Config{
		ErrorPercentThresholdToOpen: 50,
		MinimumRequestToOpen:        5,
		SuccessfulRequiredOnHalfOpen: 1,
		WaitDurationInOpenState:     m.config.HealthCheckInterval,
	}))
	m.breakers[serverID] = r
	return r
}

// Start prepares the manager to accept connections. It does not itself start
// any backend; Initialize/AddClient do.
func (m *LifecycleManager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	return nil
}

// Stop tears down every connection and stops health supervision.
func (m *LifecycleManager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	conns := make(map[string]*connection, len(m.conns))
	for k, v := range m.conns {
		conns[k] = v
	}
	m.conns = make(map[string]*connection)
	m.mu.Unlock()

	for name, c := range conns {
		m.teardown(ctx, name, c)
	}
	return nil
}

// Initialize concurrently starts every configured, enabled backend. Failures
// are logged and reflected in the server's status; they do not abort startup
// of the other backends.
func (m *LifecycleManager) Initialize(ctx context.Context, configs []*ServerConfig) {
	var wg sync.WaitGroup
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		wg.Add(1)
		go func(cfg *ServerConfig) {
			defer wg.Done()
			if err := m.AddClient(ctx, cfg); err != nil {
				logger.FromContext(ctx).Warn("backend connect failed during initialize",
					"server", cfg.Name, "error", err)
			}
		}(cfg)
	}
	wg.Wait()
}

// AddClient connects to a single backend, registers its tools, and starts
// health supervision. It returns an error for an already-connected name, a
// config that fails validation, or a manager at its concurrency cap.
func (m *LifecycleManager) AddClient(ctx context.Context, cfg *ServerConfig) error {
	if cfg == nil {
		return fmt.Errorf("invalid definition: nil server config")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid definition: %w", err)
	}

	m.mu.Lock()
	if _, exists := m.conns[cfg.Name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("server %q already exists", cfg.Name)
	}
	if len(m.conns) >= m.config.MaxConcurrentConnections {
		m.mu.Unlock()
		return fmt.Errorf("maximum concurrent connections (%d) reached", m.config.MaxConcurrentConnections)
	}
	status := NewServerStatus(cfg.Name)
	c := &connection{config: cfg, status: status}
	m.conns[cfg.Name] = c
	m.mu.Unlock()

	if err := m.connect(ctx, c); err != nil {
		status.UpdateStatus(StatusError, err.Error())
		return err
	}

	cctx, cancel := context.WithCancel(m.backgroundCtx())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	if cfg.HealthCheckEnabled {
		go m.healthLoop(cctx, c)
	}

	return nil
}

func (m *LifecycleManager) backgroundCtx() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

// connect builds the transport-appropriate mcp-go client, performs the MCP
// handshake, discovers tools, and registers them.
func (m *LifecycleManager) connect(ctx context.Context, c *connection) error {
	cfg := c.config
	c.status.UpdateStatus(StatusConnecting, "")

	cctx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	cl, err := newBackendClient(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if cfg.Transport != TransportStdio {
		if err := cl.Start(cctx); err != nil {
			_ = cl.Close()
			return fmt.Errorf("start transport: %w", err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "mcphub", Version: "1.0.0"}

	m.tracer.Append(cfg.Name, MessageRequest, "initialize", nil)
	if _, err := cl.Initialize(cctx, initReq); err != nil {
		_ = cl.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	toolsResult, err := cl.ListTools(cctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = cl.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	c.mu.Lock()
	c.client = cl
	c.mu.Unlock()

	for _, t := range toolsResult.Tools {
		if !cfg.ToolFilter.Allows(t.Name) {
			continue
		}
		tool := &Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaToMap(t.InputSchema),
			Origin:      ToolOrigin{Kind: OriginBackend, ServerID: cfg.Name, ToolID: t.Name},
		}
		if err := m.registry.Register(ctx, tool); err != nil {
			logger.FromContext(ctx).Warn("tool registration skipped", "server", cfg.Name, "tool", t.Name, "error", err)
		}
	}

	c.status.UpdateStatus(StatusConnected, "")
	return nil
}

// schemaToMap re-encodes mcp-go's typed input schema into the plain
// map[string]any shape the registry and adapter work with.
func schemaToMap(s mcpgo.ToolInputSchema) map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// newBackendClient builds the mcp-go client appropriate to cfg.Transport.
func newBackendClient(cfg *ServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case TransportStdio:
		env, err := corekit.OSEnvMap().Merge(corekit.EnvMap(cfg.Env))
		if err != nil {
			return nil, err
		}
		return mcpclient.NewStdioMCPClient(cfg.Command, env.ToSlice(), cfg.Args...)
	case TransportSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)
	case TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unsupported transport: %q", cfg.Transport)
	}
}

// healthLoop pings the backend on an interval and drives reconnection on
// failure, using a capped exponential backoff with jitter.
func (m *LifecycleManager) healthLoop(ctx context.Context, c *connection) {
	interval := c.config.HealthCheckInterval
	if interval <= 0 {
		interval = m.config.HealthCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cl := c.client
			c.mu.Unlock()
			if cl == nil {
				continue
			}
			if err := cl.Ping(ctx); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "method not found") {
					continue
				}
				c.status.UpdateStatus(StatusError, err.Error())
				m.reconnect(ctx, c)
			}
		}
	}
}

// reconnect retries connect with capped exponential backoff, deduplicating
// concurrent attempts for the same server name. Attempts are unbounded while
// the server stays enabled, per the reconnect policy; a server may opt into
// a finite attempt count via its own MaxReconnects override.
func (m *LifecycleManager) reconnect(ctx context.Context, c *connection) {
	name := c.config.Name

	m.reconnectMu.Lock()
	if m.reconnecting[name] {
		m.reconnectMu.Unlock()
		return
	}
	m.reconnecting[name] = true
	m.reconnectMu.Unlock()
	defer func() {
		m.reconnectMu.Lock()
		delete(m.reconnecting, name)
		m.reconnectMu.Unlock()
	}()

	if !c.config.AutoReconnect {
		return
	}

	initialDelay := m.config.InitialReconnectDelay
	if c.config.ReconnectDelay > 0 {
		initialDelay = c.config.ReconnectDelay
	}

	backoff := retry.NewExponential(initialDelay)
	backoff = retry.WithCappedDuration(m.config.MaxReconnectDelay, backoff)
	backoff = retry.WithJitter(100*time.Millisecond, backoff)
	if c.config.MaxReconnects > 0 {
		backoff = retry.WithMaxRetries(uint64(c.config.MaxReconnects), backoff)
	}

	log := logger.FromContext(ctx)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c.mu.Lock()
		if c.client != nil {
			_ = c.client.Close()
			c.client = nil
		}
		c.mu.Unlock()

		log.Info("reconnecting to backend", "server", name)
		if err := m.connect(ctx, c); err != nil {
			log.Warn("reconnect attempt failed", "server", name, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Error("reconnect exhausted", "server", name, "error", err)
		c.status.UpdateStatus(StatusError, "reconnect attempts exhausted: "+err.Error())
	}
}

// RemoveClient tears down and forgets a connected backend, first removing
// its tools from the registry.
func (m *LifecycleManager) RemoveClient(ctx context.Context, name string) error {
	m.mu.Lock()
	c, ok := m.conns[name]
	if ok {
		delete(m.conns, name)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("server %q not found", name)
	}
	m.teardown(ctx, name, c)
	return nil
}

func (m *LifecycleManager) teardown(ctx context.Context, name string, c *connection) {
	m.registry.UnregisterServer(ctx, name)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.client != nil {
		_ = c.client.Close()
	}
	c.mu.Unlock()

	m.breakersMu.Lock()
	delete(m.breakers, name)
	m.breakersMu.Unlock()
}

// GetClientStatus returns a concurrency-safe snapshot of one backend's status.
func (m *LifecycleManager) GetClientStatus(name string) (*ServerStatus, error) {
	m.mu.RLock()
	c, ok := m.conns[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("server %q not found", name)
	}
	return c.status.SafeCopy(), nil
}

// ListClientStatuses returns a snapshot of every supervised backend's status.
func (m *LifecycleManager) ListClientStatuses() map[string]*ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*ServerStatus, len(m.conns))
	for name, c := range m.conns {
		out[name] = c.status.SafeCopy()
	}
	return out
}

// GetMetrics reports manager-wide counters used by the diagnostics endpoint.
func (m *LifecycleManager) GetMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	connected := 0
	for _, c := range m.conns {
		if c.status.SafeCopy().Status == StatusConnected {
			connected++
		}
	}
	return map[string]any{
		"total_clients":     len(m.conns),
		"connected_clients": connected,
	}
}

// Dispatch invokes a tool on its origin backend, requiring the connection to
// be live. It traces the request/response and updates request metrics.
func (m *LifecycleManager) Dispatch(ctx context.Context, serverID, toolName string, args map[string]any) (*mcpgo.CallToolResult, error) {
	m.mu.RLock()
	c, ok := m.conns[serverID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrServerUnavailable(serverID)
	}

	c.mu.Lock()
	cl := c.client
	status := c.status
	c.mu.Unlock()
	if status.SafeCopy().Status != StatusConnected || cl == nil {
		return nil, ErrServerUnavailable(serverID)
	}

	start := time.Now()
	req := mcpgo.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	m.tracer.Append(serverID, MessageRequest, toolName, corekit.RedactArgs(args))

	var resp *mcpgo.CallToolResult
	err := m.breakerFor(serverID).Run(ctx, func(ctx context.Context) error {
		r, callErr := cl.CallTool(ctx, req)
		resp = r
		return callErr
	})
	elapsed := time.Since(start)
	status.RecordRequest(elapsed)

	if err != nil {
		status.IncrementErrors()
		m.tracer.AppendTimed(serverID, MessageResponse, toolName, map[string]any{"error": err.Error()}, elapsed.Milliseconds())
		return nil, NewRuntimeError(CodeToolExecFailed, "tool execution failed", map[string]any{"server": serverID, "tool": toolName}).WithContext(map[string]any{"cause": err.Error()})
	}

	m.tracer.AppendTimed(serverID, MessageResponse, toolName, resp, elapsed.Milliseconds())
	return resp, nil
}

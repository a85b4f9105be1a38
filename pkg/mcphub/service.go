package mcphub

import (
	"context"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// HubService is the Tool Router: it owns the registry, resolver,
// lifecycle manager and tracer, and is the single entry point the HTTP
// handlers and any embedding caller drive.
type HubService struct {
	storage   Storage
	lifecycle *LifecycleManager
	registry  *Registry
	resolver  *Resolver
	tracer    *Tracer
	adapter   *AdapterService
}

func NewHubService(storage Storage, lifecycle *LifecycleManager, registry *Registry, resolver *Resolver, tracer *Tracer, adapter *AdapterService) *HubService {
	return &HubService{
		storage:   storage,
		lifecycle: lifecycle,
		registry:  registry,
		resolver:  resolver,
		tracer:    tracer,
		adapter:   adapter,
	}
}

// ListTools returns the tools visible in groupID (empty means the default group).
func (s *HubService) ListTools(groupID string) []*Tool {
	return s.resolver.VisibleTools(groupID)
}

// CallTool resolves toolName within groupID and dispatches it to its origin,
// backend or adapter, enforcing group visibility first.
func (s *HubService) CallTool(ctx context.Context, groupID, toolName string, args map[string]any) (*ToolResult, error) {
	if !s.resolver.CanCall(groupID, toolName) {
		return nil, ErrToolNotFound(toolName)
	}
	tool, ok := s.registry.Get(toolName)
	if !ok {
		return nil, ErrToolNotFound(toolName)
	}

	switch tool.Origin.Kind {
	case OriginAdapter:
		if s.adapter == nil {
			return nil, ErrServiceUnavailable("adapter is not configured")
		}
		return s.adapter.Execute(ctx, tool.Origin.ToolID, args)
	default:
		resp, err := s.lifecycle.Dispatch(ctx, tool.Origin.ServerID, tool.Origin.ToolID, args)
		if err != nil {
			return nil, err
		}
		return backendResultToToolResult(resp), nil
	}
}

// Diagnostics aggregates live status across servers, groups, and tools.
func (s *HubService) Diagnostics() *Diagnostics {
	d := &Diagnostics{}
	statuses := s.lifecycle.ListClientStatuses()
	d.Servers.Total = len(statuses)
	d.Servers.Details = make(map[string]ServerStatus, len(statuses))
	for name, st := range statuses {
		if st.Status == StatusConnected {
			d.Servers.Connected++
		}
		d.Servers.Details[name] = *st
	}
	d.Tools.Total = len(s.registry.List())
	return d
}

// Traces proxies to the tracer for the diagnostics/traces endpoint.
func (s *HubService) Traces(serverID string, kind MessageKind, limit int) []MessageRecord {
	return s.tracer.Query(serverID, kind, limit)
}

// Reload applies already-parsed server and group documents: it replaces the
// group set, adds enabled servers not yet managed, and removes managed
// servers absent from configs. Servers already managed are left connected as
// they are; a changed config for one of them is not applied.
func (s *HubService) Reload(ctx context.Context, configs []*ServerConfig, groups []*Group) {
	s.resolver.SetGroups(groups)
	existing := map[string]bool{}
	for name := range s.lifecycle.ListClientStatuses() {
		existing[name] = true
	}
	for _, cfg := range configs {
		if existing[cfg.Name] {
			delete(existing, cfg.Name)
			continue
		}
		if cfg.Enabled {
			_ = s.lifecycle.AddClient(ctx, cfg)
		}
	}
	for removedName := range existing {
		_ = s.lifecycle.RemoveClient(ctx, removedName)
	}
}

// CreateMCP registers and connects a new backend server, persisting its
// config.
func (s *HubService) CreateMCP(ctx context.Context, cfg *ServerConfig) error {
	if cfg == nil {
		return fmt.Errorf("invalid request")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if _, err := s.storage.LoadServerConfig(cfg.Name); err == nil {
		return fmt.Errorf("mcp already exists")
	}
	if err := s.storage.SaveServerConfig(cfg); err != nil {
		return err
	}
	if cfg.Enabled {
		return s.lifecycle.AddClient(ctx, cfg)
	}
	return nil
}

// UpdateMCP replaces an existing server's config, reconnecting it.
func (s *HubService) UpdateMCP(ctx context.Context, name string, cfg *ServerConfig) error {
	if _, err := s.storage.LoadServerConfig(name); err != nil {
		return fmt.Errorf("mcp not found")
	}
	cfg.Name = name
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := s.storage.SaveServerConfig(cfg); err != nil {
		return err
	}
	_ = s.lifecycle.RemoveClient(ctx, name)
	if cfg.Enabled {
		return s.lifecycle.AddClient(ctx, cfg)
	}
	return nil
}

// RemoveMCP disconnects and forgets a backend.
func (s *HubService) RemoveMCP(ctx context.Context, name string) error {
	if _, err := s.storage.LoadServerConfig(name); err != nil {
		return fmt.Errorf("mcp not found")
	}
	_ = s.lifecycle.RemoveClient(ctx, name)
	return s.storage.DeleteServerConfig(name)
}

func (s *HubService) GetMCP(name string) (*ServerConfig, error) {
	cfg, err := s.storage.LoadServerConfig(name)
	if err != nil {
		return nil, fmt.Errorf("mcp not found")
	}
	return cfg, nil
}

func (s *HubService) ListMCPs() ([]*ServerConfig, error) {
	return s.storage.ListServerConfigs()
}

// backendResultToToolResult adapts mcp-go's CallToolResult into the hub's
// transport-agnostic ToolResult shape.
func backendResultToToolResult(resp *mcpgo.CallToolResult) *ToolResult {
	if resp == nil {
		return TextResult("")
	}
	blocks := make([]ContentBlock, 0, len(resp.Content))
	for _, c := range resp.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			blocks = append(blocks, TextBlock(tc.Text))
			continue
		}
		blocks = append(blocks, TextBlock(fmt.Sprintf("%v", c)))
	}
	return &ToolResult{Content: blocks, IsError: resp.IsError}
}

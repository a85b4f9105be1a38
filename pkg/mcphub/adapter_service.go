package mcphub

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcphub-io/mcphub/pkg/corekit"
	"github.com/mcphub-io/mcphub/pkg/logger"
	"github.com/mcphub-io/mcphub/pkg/mcphub/adapter"
)

// AdapterService bridges the Tool Router to the API-to-MCP
// Adapter engine: it owns the loaded ApiToolConfig set, registers
// each enabled tool into the Tool Registry under the synthetic "adapter"
// source, and dispatches CallTool invocations to the engine by tool id.
type AdapterService struct {
	engine   *adapter.Engine
	registry *Registry

	mu      sync.RWMutex
	configs map[string]*adapter.ApiToolConfig
}

// NewAdapterService builds an AdapterService; env is the process environment
// snapshot (or test double) used both to validate required variables at load
// time and to resolve {{env.X}} tokens at request time.
func NewAdapterService(registry *Registry, env corekit.EnvMap) *AdapterService {
	return &AdapterService{
		engine:   adapter.NewEngine(env),
		registry: registry,
		configs:  make(map[string]*adapter.ApiToolConfig),
	}
}

func (s *AdapterService) Close() { s.engine.Close() }

// LoadTools replaces the adapter's tool set and (re-)registers every enabled
// tool into the registry, unregistering any adapter tool that is no longer
// present. Tools referencing a missing env variable are kept disabled with a
// loader warning rather than aborting the whole set.
func (s *AdapterService) LoadTools(ctx context.Context, env corekit.EnvMap, set *adapter.ApiToolSet) []error {
	var errs []error
	next := make(map[string]*adapter.ApiToolConfig, len(set.Tools))

	s.mu.Lock()
	previous := s.configs
	s.mu.Unlock()

	for _, cfg := range set.Tools {
		if err := validateApiToolConfig(cfg); err != nil {
			errs = append(errs, fmt.Errorf("api tool %q: %w", cfg.ID, err))
			continue
		}
		missing := requiredEnvVars(cfg)
		var unset []string
		for _, name := range missing {
			if _, ok := env.Lookup(name); !ok {
				unset = append(unset, name)
			}
		}
		if len(unset) > 0 {
			cfg.Disabled = true
			cfg.DisabledWhy = fmt.Sprintf("missing env vars: %v", unset)
			logger.FromContext(ctx).Warn("adapter tool disabled: missing environment variables",
				"tool", cfg.ID, "missing", unset)
			next[cfg.ID] = cfg
			continue
		}
		cfg.Disabled = false
		next[cfg.ID] = cfg
	}

	for id, cfg := range previous {
		if _, ok := next[id]; !ok {
			s.registry.Unregister(ctx, cfg.Name)
		}
	}

	s.mu.Lock()
	s.configs = next
	s.mu.Unlock()

	for _, cfg := range next {
		if cfg.Disabled {
			s.registry.Unregister(ctx, cfg.Name)
			continue
		}
		tool := &Tool{
			Name:        cfg.Name,
			Description: cfg.Description,
			InputSchema: cfg.Parameters,
			Origin:      ToolOrigin{Kind: OriginAdapter, ToolID: cfg.ID},
		}
		if err := s.registry.Register(ctx, tool); err != nil {
			errs = append(errs, fmt.Errorf("api tool %q: %w", cfg.ID, err))
		}
	}
	return errs
}

// Execute runs toolID's configured request pipeline against args, translating the adapter's Result into a ToolResult.
func (s *AdapterService) Execute(ctx context.Context, toolID string, args map[string]any) (*ToolResult, error) {
	s.mu.RLock()
	cfg, ok := s.configs[toolID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrToolNotFound(toolID)
	}
	if cfg.Disabled {
		return nil, NewConfigurationError(CodeInvalidServerConfig, "adapter tool is disabled: "+cfg.DisabledWhy,
			map[string]any{"tool": toolID})
	}

	result, err := s.engine.Execute(ctx, cfg, args)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Content: []ContentBlock{TextBlock(result.Text)}, IsError: result.IsError}, nil
}

// Config returns the loaded configuration for toolID, used by admin
// diagnostics endpoints.
func (s *AdapterService) Config(toolID string) (*adapter.ApiToolConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[toolID]
	return cfg, ok
}

func validateApiToolConfig(cfg *adapter.ApiToolConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("id is required")
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if err := adapter.ValidateSchema(cfg.Parameters); err != nil {
		return fmt.Errorf("invalid parameters schema: %w", err)
	}
	if errs := adapter.ValidateAuthConfig(cfg.Security.Authentication); len(errs) > 0 {
		return fmt.Errorf("invalid security.authentication: %v", errs)
	}
	return nil
}

// requiredEnvVars collects every {{env.X}} reference across the tool's
// templated fields plus whatever its auth strategy needs.
func requiredEnvVars(cfg *adapter.ApiToolConfig) []string {
	seen := map[string]bool{}
	add := func(names []string) {
		for _, n := range names {
			seen[n] = true
		}
	}
	add(adapter.ExtractEnvRefs(cfg.API.URL))
	add(adapter.ExtractEnvRefs(cfg.API.Headers))
	add(adapter.ExtractEnvRefs(cfg.API.QueryParams))
	add(adapter.ExtractEnvRefs(cfg.API.Body))
	add(adapter.AuthEnvVars(cfg.Security.Authentication))
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

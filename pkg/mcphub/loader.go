package mcphub

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mcphub-io/mcphub/pkg/mcphub/adapter"
)

// mcpServerDoc is the wire shape of mcp_server.json: a map of
// server id to its transport-specific fields, keyed differently ("type")
// than the internal ServerConfig ("transport") so admin-managed and
// file-managed servers share one runtime type.
type mcpServerDoc struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

type mcpServerEntry struct {
	Type    TransportType     `json:"type"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Enabled *bool             `json:"enabled,omitempty"`
}

// LoadServerConfigsFile reads mcp_server.json from path and returns the
// configured backends, defaulted and validated. A config document is
// considered wholly malformed (bad JSON) fatal; an individual entry failing
// validation is reported but does not abort the rest.
func LoadServerConfigsFile(path string) ([]*ServerConfig, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{NewConfigurationError(CodeMissingFile, "reading server config file", map[string]any{"path": path, "error": err.Error()})}
	}
	var doc mcpServerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, []error{NewConfigurationError(CodeInvalidServerConfig, "parsing server config file", map[string]any{"path": path, "error": err.Error()})}
	}

	var errs []error
	out := make([]*ServerConfig, 0, len(doc.MCPServers))
	for id, entry := range doc.MCPServers {
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		cfg := &ServerConfig{
			Name:      id,
			Transport: entry.Type,
			Command:   entry.Command,
			Args:      entry.Args,
			Env:       entry.Env,
			URL:       entry.URL,
			Headers:   entry.Headers,
			Enabled:   enabled,
		}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", id, err))
			continue
		}
		out = append(out, cfg)
	}
	return out, errs
}

// LoadGroupsFile reads group.json: a map of group id to its
// policy. Unknown server references are kept (resolver degrades them with a
// warning), not rejected here.
func LoadGroupsFile(path string) ([]*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigurationError(CodeMissingFile, "reading group config file", map[string]any{"path": path, "error": err.Error()})
	}
	var doc map[string]*Group
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewConfigurationError(CodeInvalidGroupConfig, "parsing group config file", map[string]any{"path": path, "error": err.Error()})
	}
	out := make([]*Group, 0, len(doc))
	for id, g := range doc {
		if g.ID == "" {
			g.ID = id
		}
		out = append(out, g)
	}
	return out, nil
}

// LoadApiToolsFile reads api-tools.json into an ApiToolSet. Its
// field layout already matches adapter.ApiToolConfig, so no translation is
// needed beyond decoding.
func LoadApiToolsFile(path string) (*adapter.ApiToolSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &adapter.ApiToolSet{Version: "1.0"}, nil
		}
		return nil, NewConfigurationError(CodeMissingFile, "reading api tools file", map[string]any{"path": path, "error": err.Error()})
	}
	var set adapter.ApiToolSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, NewConfigurationError(CodeSchemaViolation, "parsing api tools file", map[string]any{"path": path, "error": err.Error()})
	}
	return &set, nil
}

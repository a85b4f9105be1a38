// Package config implements the hub's layered configuration: a Default source, an Env source (MCPHUB_* variables), a
// YAML source (config file), and a CLI source (flag overrides), composed in
// that precedence order through koanf.
package config

import "time"

// ServerConfig binds the hub's HTTP façade.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	BaseURL         string        `koanf:"base_url"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AdminConfig binds the admin surface's access control
// "Global/admin auth layering").
type AdminConfig struct {
	Tokens           []string `koanf:"tokens"`
	AllowIPs         []string `koanf:"allow_ips"`
	TrustedProxies   []string `koanf:"trusted_proxies"`
	GlobalAuthTokens []string `koanf:"global_auth_tokens"`
}

// HubConfig binds the hub core's config-document locations and tunables.
type HubConfig struct {
	ServersFile        string        `koanf:"servers_file"`
	GroupsFile         string        `koanf:"groups_file"`
	APIToolsFile       string        `koanf:"api_tools_file"`
	TraceBufferSize    int           `koanf:"trace_buffer_size"`
	ReconnectBaseDelay time.Duration `koanf:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `koanf:"reconnect_max_delay"`
	ConnectTimeout     time.Duration `koanf:"connect_timeout"`
}

// AdapterConfig binds the API-to-MCP Adapter's defaults.
type AdapterConfig struct {
	DefaultTimeout  time.Duration `koanf:"default_timeout"`
	DefaultRetries  int           `koanf:"default_retries"`
	DefaultCacheTTL time.Duration `koanf:"default_cache_ttl"`
	CacheMaxSize    int           `koanf:"cache_max_size"`
}

// CLIConfig carries process-level flags that don't belong to any one
// subsystem: verbosity and output mode.
type CLIConfig struct {
	Debug bool   `koanf:"debug"`
	Quiet bool   `koanf:"quiet"`
	Mode  string `koanf:"mode"`
}

// Config is the hub's fully-resolved configuration, the output of layering
// every configured Source over Default.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Admin   AdminConfig   `koanf:"admin"`
	Hub     HubConfig     `koanf:"hub"`
	Adapter AdapterConfig `koanf:"adapter"`
	CLI     CLIConfig     `koanf:"cli"`
}

// Default returns the configuration used when no source overrides anything.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Admin: AdminConfig{
			AllowIPs: []string{"127.0.0.1/32", "::1/128"},
		},
		Hub: HubConfig{
			ServersFile:        "mcp_server.json",
			GroupsFile:         "group.json",
			APIToolsFile:       "api-tools.json",
			TraceBufferSize:    1000,
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  10 * time.Second,
			ConnectTimeout:     30 * time.Second,
		},
		Adapter: AdapterConfig{
			DefaultTimeout:  30 * time.Second,
			DefaultRetries:  3,
			DefaultCacheTTL: 5 * time.Minute,
			CacheMaxSize:    1000,
		},
		CLI: CLIConfig{Mode: "text"},
	}
}

// Validate rejects a configuration whose values could never serve a running
// hub: an out-of-range port or a negative timeout/retry count.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return NewValidationError("server.port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout < 0 {
		return NewValidationError("server.shutdown_timeout must not be negative")
	}
	if c.Hub.TraceBufferSize < 1 {
		return NewValidationError("hub.trace_buffer_size must be positive")
	}
	if c.Adapter.DefaultRetries < 0 {
		return NewValidationError("adapter.default_retries must not be negative")
	}
	if c.Adapter.CacheMaxSize < 1 {
		return NewValidationError("adapter.cache_max_size must be positive")
	}
	return nil
}

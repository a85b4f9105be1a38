package mcphub

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sync"
	"time"
)

// TransportType selects the wire transport a backend MCP server speaks.
type TransportType string

const (
	TransportStdio          TransportType = "stdio"
	TransportSSE            TransportType = "sse"
	TransportStreamableHTTP TransportType = "streamable-http"
)

func (t TransportType) IsValid() bool {
	switch t {
	case TransportStdio, TransportSSE, TransportStreamableHTTP:
		return true
	default:
		return false
	}
}

func (t TransportType) String() string { return string(t) }

// ToolFilterMode selects whether a ServerConfig's ToolFilter allow-lists or
// block-lists the tools a backend reports. This supplements the Group
// mechanism with a per-server filter applied before tools ever reach the
// registry.
type ToolFilterMode string

const (
	ToolFilterAllow ToolFilterMode = "allow"
	ToolFilterBlock ToolFilterMode = "block"
)

// ToolFilter narrows the set of tools a backend contributes to the registry.
type ToolFilter struct {
	Mode ToolFilterMode `json:"mode"`
	List []string       `json:"list"`
}

func (f *ToolFilter) Validate() error {
	if f == nil {
		return nil
	}
	switch f.Mode {
	case ToolFilterAllow, ToolFilterBlock:
	default:
		return fmt.Errorf("invalid tool filter mode: %q", f.Mode)
	}
	if len(f.List) == 0 {
		return fmt.Errorf("tool filter list cannot be empty")
	}
	return nil
}

// Allows reports whether name survives this filter (nil filter allows everything).
func (f *ToolFilter) Allows(name string) bool {
	if f == nil {
		return true
	}
	has := slices.Contains(f.List, name)
	if f.Mode == ToolFilterBlock {
		return !has
	}
	return has
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ServerConfig is the immutable descriptor of one configured backend.
type ServerConfig struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Transport   TransportType `json:"transport"`
	Enabled     bool          `json:"enabled"`

	// stdio
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// sse / streamable-http
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
	// MaxReconnects overrides the lifecycle manager's unbounded reconnect
	// policy for this server only; zero (the default) means unbounded
	// attempts for as long as the server stays enabled.
	MaxReconnects int `json:"maxReconnects,omitempty"`
	// ReconnectDelay overrides the lifecycle manager's initial backoff delay
	// for this server only; zero means the process-wide default applies.
	ReconnectDelay      time.Duration     `json:"reconnectDelay,omitempty"`
	AutoReconnect       bool              `json:"autoReconnect,omitempty"`
	HealthCheckEnabled  bool              `json:"healthCheckEnabled,omitempty"`
	HealthCheckInterval time.Duration     `json:"healthCheckInterval,omitempty"`
	LogEnabled          bool              `json:"logEnabled,omitempty"`
	ToolFilter          *ToolFilter       `json:"toolFilter,omitempty"`
	Tags                map[string]string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

func (d *ServerConfig) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !nameRE.MatchString(d.Name) {
		return fmt.Errorf("name must match [A-Za-z0-9_-]+")
	}
	if !d.Transport.IsValid() {
		return fmt.Errorf("invalid transport type: %q", d.Transport)
	}
	switch d.Transport {
	case TransportStdio:
		if d.Command == "" {
			return fmt.Errorf("command is required for stdio transport")
		}
	case TransportSSE, TransportStreamableHTTP:
		if d.URL == "" {
			return fmt.Errorf("url is required for %s transport", d.Transport)
		}
	}
	if d.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if d.MaxReconnects < 0 {
		return fmt.Errorf("maxReconnects cannot be negative")
	}
	if err := d.ToolFilter.Validate(); err != nil {
		return fmt.Errorf("tool filter validation failed: %w", err)
	}
	return nil
}

// SetDefaults fills zero-valued optional fields. Stdio transports get no
// default network timeout (they are not subject to request/response RTT in
// the same way); SSE/HTTP transports default to 30s.
func (d *ServerConfig) SetDefaults() {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	if d.Transport != TransportStdio && d.Timeout == 0 {
		d.Timeout = 30 * time.Second
	}
	if d.HealthCheckInterval == 0 {
		d.HealthCheckInterval = 30 * time.Second
	}
	if d.Headers == nil {
		d.Headers = make(map[string]string)
	}
	if d.Tags == nil {
		d.Tags = make(map[string]string)
	}
	if d.Transport == TransportStdio && d.Env == nil {
		d.Env = make(map[string]string)
	}
}

// Clone returns a deep copy safe for independent mutation.
func (d *ServerConfig) Clone() *ServerConfig {
	clone := *d
	clone.Args = slices.Clone(d.Args)
	clone.Env = maps.Clone(d.Env)
	clone.Headers = maps.Clone(d.Headers)
	clone.Tags = maps.Clone(d.Tags)
	if d.ToolFilter != nil {
		f := *d.ToolFilter
		f.List = slices.Clone(d.ToolFilter.List)
		clone.ToolFilter = &f
	}
	return &clone
}

// GetNamespace returns the storage/tracing namespace key for this server.
func (d *ServerConfig) GetNamespace() string {
	return "mcphub:" + d.Name
}

func (d *ServerConfig) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// FromJSON parses and validates a ServerConfig document.
func FromJSON(data []byte) (*ServerConfig, error) {
	var def ServerConfig
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("invalid server config json: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}
	return &def, nil
}

// ConnectionStatus is the Server Lifecycle Manager's state-machine value.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// ServerStatus is the mutable runtime status of one ServerConnection,
// safe for concurrent access.
type ServerStatus struct {
	mu sync.Mutex `json:"-"`

	Name              string           `json:"name"`
	Status            ConnectionStatus `json:"status"`
	LastConnected     *time.Time       `json:"lastConnected,omitempty"`
	LastError         string           `json:"lastError,omitempty"`
	LastErrorTime     *time.Time       `json:"lastErrorTime,omitempty"`
	ReconnectAttempts int              `json:"reconnectAttempts"`
	TotalRequests     int64            `json:"totalRequests"`
	TotalErrors       int64            `json:"totalErrors"`
	AvgResponseTime   time.Duration    `json:"avgResponseTime"`
	UpTime            time.Duration    `json:"upTime"`
}

func NewServerStatus(name string) *ServerStatus {
	return &ServerStatus{Name: name, Status: StatusDisconnected}
}

// UpdateStatus transitions the status machine and records connect/error bookkeeping.
func (s *ServerStatus) UpdateStatus(status ConnectionStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = status
	switch status {
	case StatusConnected:
		now := time.Now()
		s.LastConnected = &now
		s.LastError = ""
		s.LastErrorTime = nil
		s.ReconnectAttempts = 0
	case StatusError:
		s.LastError = errMsg
		now := time.Now()
		s.LastErrorTime = &now
		s.TotalErrors++
	case StatusConnecting:
		s.ReconnectAttempts++
	case StatusDisconnected:
	}
}

// RecordRequest updates the request counter and an exponential moving average
// of response time (alpha = 0.3, matching the smoothing the lifecycle manager
// uses for its dispatch metrics).
func (s *ServerStatus) RecordRequest(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalRequests++
	if s.TotalRequests == 1 {
		s.AvgResponseTime = d
		return
	}
	const alpha = 0.3
	s.AvgResponseTime = time.Duration(alpha*float64(d) + (1-alpha)*float64(s.AvgResponseTime))
}

func (s *ServerStatus) IncrementErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalErrors++
}

// CalculateUpTime returns elapsed connected time, zero if not connected.
func (s *ServerStatus) CalculateUpTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upTimeLocked()
}

func (s *ServerStatus) upTimeLocked() time.Duration {
	if s.Status != StatusConnected || s.LastConnected == nil {
		return 0
	}
	return time.Since(*s.LastConnected)
}

// SafeCopy returns an independent snapshot with UpTime populated.
func (s *ServerStatus) SafeCopy() *ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := &ServerStatus{
		Name:              s.Name,
		Status:            s.Status,
		ReconnectAttempts: s.ReconnectAttempts,
		TotalRequests:     s.TotalRequests,
		TotalErrors:       s.TotalErrors,
		AvgResponseTime:   s.AvgResponseTime,
		LastError:         s.LastError,
		UpTime:            s.upTimeLocked(),
	}
	if s.LastConnected != nil {
		t := *s.LastConnected
		cp.LastConnected = &t
	}
	if s.LastErrorTime != nil {
		t := *s.LastErrorTime
		cp.LastErrorTime = &t
	}
	return cp
}

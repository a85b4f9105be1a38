package mcphub

import "time"

// Config configures the hub's HTTP surface: bind address, trusted proxy
// list for client-IP resolution, and the admin/global auth token sets.
type Config struct {
	Host            string
	Port            string
	BaseURL         string
	ShutdownTimeout time.Duration

	// TrustedProxies lists exact IPs or CIDRs allowed to set
	// X-Forwarded-For/X-Real-IP; requests from anywhere else have those
	// headers ignored.
	TrustedProxies []string

	// AllowIPs restricts the /admin/* surface to callers whose resolved
	// client IP matches one of these exact IPs or CIDRs. Empty means no
	// IP restriction is enforced (token auth still applies).
	AllowIPs []string

	// AdminTokens authorize the /admin/* server-management surface.
	AdminTokens []string
	// GlobalAuthTokens are accepted on the /admin/* surface alongside
	// AdminTokens; the tool routes carry no bearer-token check.
	GlobalAuthTokens []string

	StorageConfig *StorageConfig
	Lifecycle     *LifecycleConfig
	TraceCapacity int
}

func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            "8080",
		ShutdownTimeout: 10 * time.Second,
		StorageConfig:   DefaultStorageConfig(),
		Lifecycle:       DefaultLifecycleConfig(),
		TraceCapacity:   defaultTraceCapacity,
	}
}

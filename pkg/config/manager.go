package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/knadh/koanf/v2"
)

// Validator optionally checks a freshly-loaded Config beyond the structural
// bounds Config.Validate already enforces (e.g. cross-field or environment
// checks a caller wants applied at every reload).
type Validator func(*Config) error

// Manager owns the process's live Config, guarded by a read-write latch so
// concurrent readers never block on a reload.
type Manager struct {
	mu       sync.RWMutex
	cfg      *Config
	watchers []chan *Config
}

// NewManager returns an empty Manager; call Load before Get.
func NewManager() *Manager {
	return &Manager{}
}

// Load applies sources in order over an empty config (Default() values enter
// only through NewDefaultProvider), validates the result, and installs it as
// the current config, notifying any Watch subscribers.
func (m *Manager) Load(_ context.Context, validate Validator, sources ...Source) (*Config, error) {
	k := koanf.New(".")
	for _, src := range sources {
		if err := src.Apply(k); err != nil {
			return nil, fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(cfg); err != nil {
			return nil, err
		}
	}

	m.Set(cfg)
	return cfg, nil
}

// Get returns the current config. Callers must not mutate the returned
// value; Set installs a new one rather than patching in place.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Set installs cfg as current and notifies every Watch subscriber
// (non-blocking: a slow subscriber drops the notification rather than
// stalling the reload).
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	watchers := append([]chan *Config(nil), m.watchers...)
	m.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- cfg:
		default:
		}
	}
}

// Watch returns a channel that receives every subsequent Set. The channel
// is unbuffered-safe for a slow consumer (sends are non-blocking, so stale
// reads are possible by design — callers wanting every value should poll Get).
func (m *Manager) Watch() <-chan *Config {
	ch := make(chan *Config, 1)
	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()
	return ch
}

// Close releases Manager resources. It exists for symmetry with other
// long-lived components' Init/Shutdown lifecycle and is a
// no-op today since Manager holds no background goroutines or file handles.
func (m *Manager) Close(_ context.Context) error {
	return nil
}

// --- process-wide accessor ---

var global = NewManager()

// Initialize loads the process-wide configuration from sources in order and
// installs it as the value Get/Set/Watch operate on.
func Initialize(ctx context.Context, validate Validator, sources ...Source) error {
	_, err := global.Load(ctx, validate, sources...)
	return err
}

// Get returns the process-wide configuration. Panics if Initialize was never
// called, since every caller of Get assumes a fully-loaded config exists.
func Get() *Config {
	cfg := global.Get()
	if cfg == nil {
		panic("config: Get called before Initialize")
	}
	return cfg
}

// Set installs a new process-wide configuration directly, bypassing the
// source stack (used by admin-triggered reload handlers that already have a
// validated Config in hand).
func Set(cfg *Config) { global.Set(cfg) }

// Watch subscribes to process-wide configuration changes.
func Watch() <-chan *Config { return global.Watch() }

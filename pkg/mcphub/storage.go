package mcphub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage persists ServerConfig documents and their last-known status. The
// hub's own group/adapter configuration is file-owned; Storage manages the
// admin-registered server documents only, not group or adapter documents.
type Storage interface {
	SaveServerConfig(cfg *ServerConfig) error
	LoadServerConfig(name string) (*ServerConfig, error)
	DeleteServerConfig(name string) error
	ListServerConfigs() ([]*ServerConfig, error)

	SaveStatus(status *ServerStatus) error
	LoadStatus(name string) (*ServerStatus, error)

	Ping() error
	Close() error
}

// StorageType selects a Storage implementation.
type StorageType string

const (
	StorageTypeMemory StorageType = "memory"
	StorageTypeFile   StorageType = "file"
)

// StorageConfig configures NewStorage.
type StorageConfig struct {
	Type StorageType
	// Dir is the directory FileStorage persists JSON documents under.
	Dir string
}

func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{Type: StorageTypeMemory}
}

// NewStorage builds the Storage implementation named by config.Type.
func NewStorage(config *StorageConfig) (Storage, error) {
	if config == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	switch config.Type {
	case StorageTypeMemory, "":
		return NewMemoryStorage(), nil
	case StorageTypeFile:
		return NewFileStorage(config.Dir)
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", config.Type)
	}
}

// MemoryStorage is an in-process, non-durable Storage, primarily used in
// tests and single-shot invocations.
type MemoryStorage struct {
	mu       sync.RWMutex
	configs  map[string]*ServerConfig
	statuses map[string]*ServerStatus
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		configs:  make(map[string]*ServerConfig),
		statuses: make(map[string]*ServerStatus),
	}
}

func (s *MemoryStorage) SaveServerConfig(cfg *ServerConfig) error {
	if cfg == nil {
		return fmt.Errorf("cannot save nil server config")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.Name] = cfg.Clone()
	return nil
}

func (s *MemoryStorage) LoadServerConfig(name string) (*ServerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[name]
	if !ok {
		return nil, fmt.Errorf("server config %q not found", name)
	}
	return cfg.Clone(), nil
}

func (s *MemoryStorage) DeleteServerConfig(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[name]; !ok {
		return fmt.Errorf("server config %q not found", name)
	}
	delete(s.configs, name)
	delete(s.statuses, name)
	return nil
}

func (s *MemoryStorage) ListServerConfigs() ([]*ServerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ServerConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg.Clone())
	}
	return out, nil
}

func (s *MemoryStorage) SaveStatus(status *ServerStatus) error {
	if status == nil {
		return fmt.Errorf("cannot save nil status")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.Name] = status.SafeCopy()
	return nil
}

func (s *MemoryStorage) LoadStatus(name string) (*ServerStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[name]
	if !ok {
		return nil, fmt.Errorf("status for %q not found", name)
	}
	return status.SafeCopy(), nil
}

func (s *MemoryStorage) Ping() error  { return nil }
func (s *MemoryStorage) Close() error { return nil }

// FileStorage persists each ServerConfig/ServerStatus as one JSON file under
// Dir, for single-process deployments that want restarts to remember
// admin-registered backends without an external dependency.
type FileStorage struct {
	mu  sync.Mutex
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("file storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) configPath(name string) string { return filepath.Join(f.dir, name+".server.json") }
func (f *FileStorage) statusPath(name string) string  { return filepath.Join(f.dir, name+".status.json") }

func (f *FileStorage) SaveServerConfig(cfg *ServerConfig) error {
	if cfg == nil {
		return fmt.Errorf("cannot save nil server config")
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return os.WriteFile(f.configPath(cfg.Name), data, 0o644)
}

func (f *FileStorage) LoadServerConfig(name string) (*ServerConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.configPath(name))
	if err != nil {
		return nil, fmt.Errorf("server config %q not found: %w", name, err)
	}
	var cfg ServerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (f *FileStorage) DeleteServerConfig(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.configPath(name)); err != nil {
		return fmt.Errorf("server config %q not found: %w", name, err)
	}
	_ = os.Remove(f.statusPath(name))
	return nil
}

func (f *FileStorage) ListServerConfigs() ([]*ServerConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []*ServerConfig
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" || !hasSuffix(e.Name(), ".server.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			continue
		}
		var cfg ServerConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			continue
		}
		out = append(out, &cfg)
	}
	return out, nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func (f *FileStorage) SaveStatus(status *ServerStatus) error {
	if status == nil {
		return fmt.Errorf("cannot save nil status")
	}
	cp := status.SafeCopy()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return os.WriteFile(f.statusPath(cp.Name), data, 0o644)
}

func (f *FileStorage) LoadStatus(name string) (*ServerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.statusPath(name))
	if err != nil {
		return nil, fmt.Errorf("status for %q not found: %w", name, err)
	}
	var status ServerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (f *FileStorage) Ping() error  { return nil }
func (f *FileStorage) Close() error { return nil }

package mcphub

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcphub-io/mcphub/pkg/logger"
)

// RegistryEvent is the kind of change delivered to registry observers.
type RegistryEvent string

const (
	EventAdded   RegistryEvent = "added"
	EventUpdated RegistryEvent = "updated"
	EventRemoved RegistryEvent = "removed"
	EventCleared RegistryEvent = "cleared"
)

// Observer receives synchronous registry event notifications.
type Observer func(ctx context.Context, event RegistryEvent, tool *Tool)

// Registry is the in-memory index of tools keyed by name.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*Tool
	observers []Observer
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds or replaces a tool. Names must match [A-Za-z0-9_-]+.
func (r *Registry) Register(ctx context.Context, tool *Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if tool.Name == "" || !nameRE.MatchString(tool.Name) {
		return fmt.Errorf("invalid tool name: %q", tool.Name)
	}

	r.mu.Lock()
	_, existed := r.tools[tool.Name]
	r.tools[tool.Name] = tool
	r.mu.Unlock()

	if existed {
		r.notify(ctx, EventUpdated, tool)
	} else {
		r.notify(ctx, EventAdded, tool)
	}
	return nil
}

// Unregister removes a tool by name, returning whether it existed.
func (r *Registry) Unregister(ctx context.Context, name string) bool {
	r.mu.Lock()
	tool, ok := r.tools[name]
	if ok {
		delete(r.tools, name)
	}
	r.mu.Unlock()

	if ok {
		r.notify(ctx, EventRemoved, tool)
	}
	return ok
}

// UnregisterServer removes every tool whose origin is the given server, used
// by the lifecycle manager before it tears a connection down.
func (r *Registry) UnregisterServer(ctx context.Context, serverID string) {
	r.mu.Lock()
	var removed []*Tool
	for name, t := range r.tools {
		if t.Origin.Kind == OriginBackend && t.Origin.ServerID == serverID {
			removed = append(removed, t)
			delete(r.tools, name)
		}
	}
	r.mu.Unlock()

	for _, t := range removed {
		r.notify(ctx, EventRemoved, t)
	}
}

func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

func (r *Registry) Filter(predicate func(*Tool) bool) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Tool
	for _, t := range r.tools {
		if predicate(t) {
			out = append(out, t)
		}
	}
	return out
}

// Clear removes every tool and emits a single "cleared" event.
func (r *Registry) Clear(ctx context.Context) {
	r.mu.Lock()
	r.tools = make(map[string]*Tool)
	r.mu.Unlock()
	r.notify(ctx, EventCleared, nil)
}

// Subscribe registers an observer, delivered synchronously on every mutation.
func (r *Registry) Subscribe(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// notify calls every observer; a failing observer is logged and does not
// abort delivery to the rest.
func (r *Registry) notify(ctx context.Context, event RegistryEvent, tool *Tool) {
	r.mu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	log := logger.FromContext(ctx)
	for _, obs := range observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("registry observer panicked", "event", event, "recover", rec)
				}
			}()
			obs(ctx, event, tool)
		}()
	}
}

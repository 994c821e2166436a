package transport

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maintains a mapping of transport names to their client factories and capabilities.
// Client packages should register themselves using Register.
type Registry struct {
	mu           sync.RWMutex
	factories    map[string]ClientFactory
	capabilities map[string]Capabilities
}

// DefaultRegistry is the global transport registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new transport registry.
func NewRegistry() *Registry {
	return &Registry{
		factories:    make(map[string]ClientFactory),
		capabilities: make(map[string]Capabilities),
	}
}

// Register adds a client factory to the registry.
// The name should match the PubSubSystem config value (e.g., "pubsub", "channel").
func (r *Registry) Register(name string, factory ClientFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// RegisterWithCapabilities adds a client factory and its capabilities to the registry.
func (r *Registry) RegisterWithCapabilities(name string, factory ClientFactory, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	r.capabilities[name] = caps
}

// GetCapabilities returns the capabilities for a registered transport.
// Returns a zero Capabilities struct if the transport is unknown.
func (r *Registry) GetCapabilities(name string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caps, ok := r.capabilities[name]; ok {
		return caps
	}
	return Capabilities{Name: name}
}

// Factory returns the client factory registered under name.
func (r *Registry) Factory(name string) (ClientFactory, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown transport: %q (registered: %v)", name, r.Names())
	}
	return factory, nil
}

// Names returns the sorted list of registered transport names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has returns true if a transport is registered with the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Register adds a client factory to the default registry.
func Register(name string, factory ClientFactory) {
	DefaultRegistry.Register(name, factory)
}

// RegisterWithCapabilities adds a client factory and its capabilities to the default registry.
func RegisterWithCapabilities(name string, factory ClientFactory, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, factory, caps)
}

// Lookup returns the client factory registered under name in the default registry.
func Lookup(name string) (ClientFactory, error) {
	return DefaultRegistry.Factory(name)
}

// GetCapabilities returns the capabilities for a transport by name.
// Returns a zero Capabilities struct if the transport is unknown.
func GetCapabilities(name string) Capabilities {
	return DefaultRegistry.GetCapabilities(name)
}

package store

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
)

var (
	registry = map[string]Factory{}
	regLock  sync.RWMutex
)

// Factory validates backend-specific configuration and builds a store from
// it. Backends register a Factory under their name in an init function.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Interface, error)
	Valid(config json.RawMessage) error
}

// Register makes a backend available under name. Registering the same name
// twice replaces the earlier factory.
func Register(name string, impl Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = impl
}

// Get looks up the factory for a backend.
func Get(name string) (Factory, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[name]
	return result, ok
}

// Methods lists the registered backend names in sorted order.
func Methods() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates an engine instance.
type Factory func() Engine

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register registers an engine factory under the given name. Implementations
// register themselves from init; a duplicate name is a programming error.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("engine %q already registered", name))
	}
	registry[name] = factory
}

// Create instantiates the named engine.
func Create(name string) (Engine, error) {
	registryMu.RLock()
	factory, exists := registry[name]
	registryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("engine %q not registered", name)
	}
	return factory(), nil
}

// List returns the registered engine names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

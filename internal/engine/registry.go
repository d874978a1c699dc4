package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/ugp/internal/model"
)

// DuplicateEngineError is returned when a name is registered twice
type DuplicateEngineError struct {
	Name string
}

func (e *DuplicateEngineError) Error() string {
	return fmt.Sprintf("engine %q already registered", e.Name)
}

// Is matches ErrConfiguration
func (e *DuplicateEngineError) Is(target error) bool {
	return target == model.ErrConfiguration
}

// UnknownEngineError is returned when resolving a name nobody registered
type UnknownEngineError struct {
	Name      string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine: %s (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Is matches ErrConfiguration
func (e *UnknownEngineError) Is(target error) bool {
	return target == model.ErrConfiguration
}

// Registry maps engine names to factories.
// Populate it once at startup; afterwards it is only read.
type Registry struct {
	mu          sync.RWMutex
	factories   map[string]Factory
	defaultName string
}

// NewRegistry creates an empty registry that resolves "" to defaultName
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		factories:   make(map[string]Factory),
		defaultName: defaultName,
	}
}

// Register adds factory under name. A duplicate name leaves the first registration in place.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return &model.ConfigError{Field: "engine name", Value: `""`, Reason: "must not be empty"}
	}
	if factory == nil {
		return &model.ConfigError{Field: "engine factory", Value: name, Reason: "must not be nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return &DuplicateEngineError{Name: name}
	}
	r.factories[name] = factory
	return nil
}

// Resolve returns the factory for name, or for the default when name is empty
func (r *Registry) Resolve(name string) (Factory, error) {
	target := name
	if target == "" {
		target = r.defaultName
	}

	r.mu.RLock()
	factory, ok := r.factories[target]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnknownEngineError{Name: target, Available: r.Available()}
	}
	return factory, nil
}

// Available returns registered names in lexicographic order
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the name resolved for an empty request
func (r *Registry) Default() string {
	return r.defaultName
}

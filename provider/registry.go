package provider

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrNotRegistered is returned for a backend name the registry does not know.
	ErrNotRegistered = errors.New("provider not registered")

	// ErrUnavailable is returned when a backend is registered but cannot be
	// used (no credentials, CLI missing).
	ErrUnavailable = errors.New("provider not available")
)

// Registry maps backend names to providers. Names are kept sorted so every
// listing comes out in the same order.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Provider
	names  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Provider)}
}

// Register adds p, replacing any provider of the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.byName[name]; !exists {
		i, _ := slices.BinarySearch(r.names, name)
		r.names = slices.Insert(r.names, i, name)
	}
	r.byName[name] = p
}

// Get returns the provider registered under name. The error wraps
// ErrNotRegistered.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return p, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

// List returns every provider, sorted by name.
func (r *Registry) List() []Provider {
	return r.filter(func(Provider) bool { return true })
}

// Available returns the providers that can currently serve requests.
func (r *Registry) Available() []Provider {
	return r.filter(Provider.Available)
}

func (r *Registry) filter(keep func(Provider) bool) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.names))
	for _, name := range r.names {
		if p := r.byName[name]; keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Resolve picks the backend for one debate role. An empty model falls back
// to the provider default when the provider exposes one.
func (r *Registry) Resolve(name, model string) (Provider, string, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, "", err
	}
	if !p.Available() {
		return nil, "", fmt.Errorf("%w: %s", ErrUnavailable, name)
	}
	if model == "" {
		if d, ok := p.(interface{ DefaultModel() string }); ok {
			model = d.DefaultModel()
		}
	}
	return p, model, nil
}

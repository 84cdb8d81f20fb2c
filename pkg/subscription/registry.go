package subscription

import (
	"errors"
	"fmt"
	"sync"
)

// Factory constructs a provider. Construction may be expensive (HTTP clients,
// DB handles), so the registry invokes each factory at most once per process.
type Factory func() (Provider, error)

// ProviderSpec binds a provider ID to its construction function. A nil New
// marks the provider administratively disabled: it keeps its place in the
// configuration but is skipped during iteration, distinct from an ID that was
// never configured at all.
type ProviderSpec struct {
	ID  string
	New Factory
}

// Registry resolves provider IDs to lazily constructed singleton instances.
// It is built once at startup from an ordered configuration and passed into
// the Service; iteration order is the configuration order and is stable
// across calls.
type Registry struct {
	defaultID string
	order     []string
	specs     map[string]ProviderSpec

	mu        sync.Mutex
	instances map[string]Provider
}

// NewRegistry builds a registry from ordered provider specs. defaultID must
// name one of the specs.
func NewRegistry(defaultID string, specs []ProviderSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, errors.Join(ErrProviderMisconfigured, errors.New("no providers configured"))
	}

	r := &Registry{
		defaultID: defaultID,
		order:     make([]string, 0, len(specs)),
		specs:     make(map[string]ProviderSpec, len(specs)),
		instances: make(map[string]Provider),
	}

	for _, spec := range specs {
		if spec.ID == "" {
			return nil, errors.Join(ErrProviderMisconfigured, errors.New("provider ID must not be empty"))
		}
		if _, exists := r.specs[spec.ID]; exists {
			return nil, errors.Join(ErrProviderMisconfigured,
				fmt.Errorf("duplicate provider ID %q", spec.ID))
		}
		r.specs[spec.ID] = spec
		r.order = append(r.order, spec.ID)
	}

	if _, exists := r.specs[defaultID]; !exists {
		return nil, errors.Join(ErrProviderMisconfigured,
			fmt.Errorf("default provider %q is not configured", defaultID))
	}

	return r, nil
}

// DefaultID returns the configured default provider ID.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// IDs returns the enabled provider IDs in configuration order. Disabled
// providers (nil factory) are skipped.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.specs[id].New != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Get resolves a provider ID to its singleton instance, constructing it on
// first use. An empty ID resolves the default provider. Unknown or disabled
// IDs return ErrProviderNotConfigured; a failing factory returns
// ErrProviderMisconfigured.
func (r *Registry) Get(id string) (Provider, error) {
	if id == "" {
		id = r.defaultID
	}

	spec, exists := r.specs[id]
	if !exists || spec.New == nil {
		return nil, errors.Join(ErrProviderNotConfigured, fmt.Errorf("provider %q", id))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[id]; ok {
		return p, nil
	}

	p, err := spec.New()
	if err != nil {
		return nil, errors.Join(ErrProviderMisconfigured,
			fmt.Errorf("failed to construct provider %q", id), err)
	}
	if p == nil {
		return nil, errors.Join(ErrProviderMisconfigured,
			fmt.Errorf("factory for provider %q returned nil", id))
	}

	r.instances[id] = p
	return p, nil
}

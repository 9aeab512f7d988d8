// Package sdk is the normalization adapter SDK: per-vendor transforms
// from raw catalog payloads to canonical items, plus the registration,
// scaffolding, and validation tooling around them.
package sdk

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lensly/catalog-service/internal/types"
)

// Adapter transforms one vendor's raw payload into normalized items.
// Transform must be pure: no I/O, no retained references to raw.
type Adapter interface {
	Slug() string
	Transform(raw json.RawMessage) ([]types.NormalizedItem, error)
}

// FixtureProvider is optionally implemented by adapters that ship a
// sample payload; validation uses it for the round-trip check.
type FixtureProvider interface {
	Fixture() json.RawMessage
}

// Registry holds adapter registrations keyed by vendor slug. It is an
// explicit value passed to the engine so tests can isolate registrations;
// Default is the process-wide instance built-in adapters register into.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// Default is the process-wide registry populated at init by the
// built-in vendor adapters.
var Default = NewRegistry()

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register registers an adapter under a slug. Registration is idempotent
// for the same adapter; registering a different adapter under an existing
// slug is a startup error.
func (r *Registry) Register(slug string, adapter Adapter) error {
	if slug == "" || adapter == nil {
		return fmt.Errorf("adapter registration requires a slug and an adapter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.adapters[slug]; ok {
		if existing == adapter {
			return nil
		}
		return fmt.Errorf("adapter already registered for %q with a different implementation", slug)
	}
	r.adapters[slug] = adapter
	return nil
}

// MustRegister is Register for process-init paths where a duplicate
// registration is a programming error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter.Slug(), adapter); err != nil {
		panic(err)
	}
}

// Get retrieves the adapter for a slug.
func (r *Registry) Get(slug string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[slug]
	return adapter, ok
}

// Slugs returns all registered slugs, sorted.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slugs := make([]string, 0, len(r.adapters))
	for slug := range r.adapters {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

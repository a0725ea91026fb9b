package plugins

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

// Func analyzes one chunk. It must not retain chunk and must return in bounded time.
type Func func(chunk []float64, params Params) (models.Values, error)

// Descriptor registers a plugin under Name.
type Descriptor struct {
	Name          string
	Invoke        Func
	DefaultParams Params
	Description   string
}

// Registry is a concurrency-safe set of descriptors keyed by name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Descriptor
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Descriptor)}
}

// Register adds d. A second registration under the same name is rejected with [shared.ErrDuplicatePlugin].
func (r *Registry) Register(d Descriptor) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: empty name", shared.ErrInvalidPlugin)
	}
	if d.Invoke == nil {
		return fmt.Errorf("%w: %s has no function", shared.ErrInvalidPlugin, name)
	}

	d.Name = name
	d.DefaultParams = d.DefaultParams.Clone()
	if d.Description == "" {
		d.Description = "No description available"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("%w: %s", shared.ErrDuplicatePlugin, name)
	}
	r.plugins[name] = d
	return nil
}

// MustRegister is [Registry.Register] for process-start wiring; it panics on error.
func (r *Registry) MustRegister(descriptors ...Descriptor) *Registry {
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Get looks up a plugin. The boolean is false when name is not registered.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.plugins[strings.TrimSpace(name)]
	return d, ok
}

// List returns a name to description snapshot.
func (r *Registry) List() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.plugins))
	for name, d := range r.plugins {
		out[name] = d.Description
	}
	return out
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

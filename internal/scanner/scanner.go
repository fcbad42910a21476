package scanner

import (
	"fmt"
	"sort"

	"NewsSum/internal/ports"
)

// Registry keeps a mapping from headline source names to their adapters.
type Registry struct {
	sources map[string]ports.HeadlineSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.HeadlineSource{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source ports.HeadlineSource) {
	if r.sources == nil {
		r.sources = map[string]ports.HeadlineSource{}
	}
	r.sources[source.Name()] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.HeadlineSource, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("headline source %s is not registered", name)
}

// Names lists registered sources in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

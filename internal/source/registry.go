package source

import (
	"context"
	"fmt"

	"InterviewNotifier/internal/domain"
)

// Source is one input-mode strategy (CSV file, store readback, etc.).
type Source interface {
	Name() string
	Rows(ctx context.Context) ([]domain.Row, error)
}

// Registry keeps a mapping from input-mode names to their implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[src.Name()] = src
}

// Resolve returns a source by mode name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("input mode %s is not registered", name)
}

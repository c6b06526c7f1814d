package source

import (
	"fmt"
	"log/slog"
	"net/http"

	"PostPilot/internal/config"
	"PostPilot/internal/ports"
)

// Builder constructs a provider from its config entry.
type Builder func(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) ports.SourceProvider

// Registry keeps a mapping from provider kinds to their builders.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: map[string]Builder{}}
}

// Register adds or replaces a builder for a provider kind.
func (r *Registry) Register(kind string, builder Builder) {
	if r.builders == nil {
		r.builders = map[string]Builder{}
	}
	r.builders[kind] = builder
}

// Build resolves the kind named by cfg and constructs the provider.
func (r *Registry) Build(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) (ports.SourceProvider, error) {
	builder, ok := r.builders[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("provider kind %s is not registered", cfg.Kind)
	}
	return builder(cfg, client, logger), nil
}

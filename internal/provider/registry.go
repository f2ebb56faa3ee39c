package provider

import (
	"fmt"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/models"
)

// Constructor builds a handler for one provider configuration.
type Constructor func(p *models.Provider, deps Deps) Handler

// Registry maps provider types to handler constructors.
type Registry struct {
	ctors map[models.ProviderType]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[models.ProviderType]Constructor)}
}

func (r *Registry) Register(t models.ProviderType, ctor Constructor) {
	r.ctors[t] = ctor
}

// Handler instantiates the handler matching the provider's type.
func (r *Registry) Handler(p *models.Provider, deps Deps) (Handler, error) {
	ctor, ok := r.ctors[p.Type]
	if !ok {
		return nil, apperrors.ConfigError(
			fmt.Sprintf("no handler registered for provider type %q", p.Type), nil).
			WithContext("provider_id", p.ID)
	}
	return ctor(p, deps), nil
}

// Types lists the registered provider types.
func (r *Registry) Types() []models.ProviderType {
	types := make([]models.ProviderType, 0, len(r.ctors))
	for t := range r.ctors {
		types = append(types, t)
	}
	return types
}

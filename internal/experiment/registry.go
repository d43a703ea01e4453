package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/decayfit/internal/model"
)

type Registry struct {
	models map[string]func() model.Model
}

func NewRegistry() *Registry {
	r := &Registry{
		models: make(map[string]func() model.Model),
	}

	r.Register("double_exp", func() model.Model { return model.NewDoubleExp() })
	r.Register("single_exp", func() model.Model { return model.NewSingleExp() })

	return r
}

// Register adds or replaces a model factory.
func (r *Registry) Register(name string, fn func() model.Model) {
	r.models[name] = fn
}

func (r *Registry) GetModel(name string) (model.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

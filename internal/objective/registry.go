package objective

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknown is returned when an objective name is not registered.
var ErrUnknown = errors.New("unknown objective")

// Info describes a registered objective.
type Info struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Evaluator   Evaluator `json:"-"`
}

// Registry holds named objectives.
type Registry struct {
	mu         sync.RWMutex
	objectives map[string]Info
}

// NewRegistry creates an empty objective registry.
func NewRegistry() *Registry {
	return &Registry{
		objectives: make(map[string]Info),
	}
}

// NewDefaultRegistry creates a registry holding the built-in objectives.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for name, info := range Builtins {
		r.Register(name, info.Description, info.Evaluator)
	}
	return r
}

// Register adds an objective under the given name, replacing any previous one.
func (r *Registry) Register(name, description string, e Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objectives[name] = Info{Name: name, Description: description, Evaluator: e}
}

// Resolve returns the evaluator registered under name.
func (r *Registry) Resolve(name string) (Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.objectives[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return info.Evaluator, nil
}

// List returns all registered objectives sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.objectives))
	for _, info := range r.objectives {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

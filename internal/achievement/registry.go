package achievement

import (
	"fmt"

	"github.com/achievement-engine/internal/domain"
)

// Definition is a registered achievement together with its rule
type Definition struct {
	ID          int    `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Rule        Rule   `json:"-"`
}

// Registry is an ordered, immutable-after-startup mapping from achievement ID to Definition.
// Registration is not synchronized; build the registry before sharing it.
type Registry struct {
	defs  map[int]Definition
	order []int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{defs: make(map[int]Definition)}
}

// Register adds a definition. A duplicate ID or a nil rule is a configuration error.
func (r *Registry) Register(def Definition) error {
	if def.Rule == nil {
		return fmt.Errorf("%w: achievement %d has no rule", domain.ErrConfiguration, def.ID)
	}
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("%w: achievement %d registered twice", domain.ErrConfiguration, def.ID)
	}
	r.defs[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// Get returns the definition registered under id
func (r *Registry) Get(id int) (Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// IDs returns every registered ID in insertion order
func (r *Registry) IDs() []int {
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns every definition in insertion order
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.order))
	for i, id := range r.order {
		out[i] = r.defs[id]
	}
	return out
}

// Len returns the number of registered achievements
func (r *Registry) Len() int {
	return len(r.order)
}

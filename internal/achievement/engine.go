package achievement

import (
	"fmt"
	"math"

	"github.com/achievement-engine/internal/domain"
)

// Set is a set of achievement IDs
type Set map[int]struct{}

// NewSet builds a set from ids
func NewSet(ids ...int) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set is empty.
func (s Set) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Add inserts ids into the set
func (s Set) Add(ids ...int) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Engine evaluates scores against a registry.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	registry *Registry
}

// NewEngine creates an engine over a fully built registry
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry returns the registry the engine evaluates against
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evaluate returns the IDs of achievements that the play satisfies and that are not in owned,
// in registry order. The result is never nil. Invalid input fails the whole call with
// domain.ErrInvalidInput and no partial result.
func (e *Engine) Evaluate(session *domain.Session, beatmap *domain.Beatmap, score *domain.Score, owned Set) ([]int, error) {
	if err := validateInput(session, beatmap, score); err != nil {
		return nil, err
	}

	unlocked := make([]int, 0)
	for _, id := range e.registry.order {
		if owned.Has(id) {
			continue
		}
		if e.registry.defs[id].Rule.Matches(session, beatmap, score) {
			unlocked = append(unlocked, id)
		}
	}
	return unlocked, nil
}

func validateInput(session *domain.Session, beatmap *domain.Beatmap, score *domain.Score) error {
	switch {
	case session == nil:
		return fmt.Errorf("%w: missing session", domain.ErrInvalidInput)
	case beatmap == nil:
		return fmt.Errorf("%w: missing beatmap", domain.ErrInvalidInput)
	case score == nil:
		return fmt.Errorf("%w: missing score", domain.ErrInvalidInput)
	case math.IsNaN(beatmap.StarRating) || math.IsInf(beatmap.StarRating, 0) || beatmap.StarRating < 0:
		return fmt.Errorf("%w: star rating %v", domain.ErrInvalidInput, beatmap.StarRating)
	case !score.GameMode.Valid():
		return fmt.Errorf("%w: game mode %d", domain.ErrInvalidInput, score.GameMode)
	}
	return nil
}

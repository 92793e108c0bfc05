package achievement

import (
	"fmt"
	"math"

	"github.com/achievement-engine/internal/domain"
)

// Rule decides whether a single play satisfies an achievement.
// Implementations hold only immutable configuration and never read external state.
type Rule interface {
	Matches(session *domain.Session, beatmap *domain.Beatmap, score *domain.Score) bool
}

// Unbounded marks a combo threshold with no upper limit
const Unbounded uint32 = 0

// Band is a half-open star rating interval [Low, High)
type Band struct {
	Low  float64
	High float64
}

// StarBand returns the band [n, n+1)
func StarBand(n int) Band {
	return Band{Low: float64(n), High: float64(n + 1)}
}

// Contains reports whether rating falls inside the band
func (b Band) Contains(rating float64) bool {
	return b.Low <= rating && rating < b.High
}

func (b Band) validate() error {
	if math.IsNaN(b.Low) || math.IsNaN(b.High) || math.IsInf(b.Low, 0) || math.IsInf(b.High, 0) {
		return fmt.Errorf("%w: band bounds must be finite", domain.ErrConfiguration)
	}
	if b.Low < 0 {
		return fmt.Errorf("%w: band lower bound %.2f is negative", domain.ErrConfiguration, b.Low)
	}
	if b.Low >= b.High {
		return fmt.Errorf("%w: empty band [%.2f, %.2f)", domain.ErrConfiguration, b.Low, b.High)
	}
	return nil
}

func validateMode(mode domain.GameMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown game mode %d", domain.ErrConfiguration, mode)
	}
	return nil
}

// PassInBand matches a pass in mode on a beatmap inside Band with none of Excluded set
type PassInBand struct {
	Mode     domain.GameMode
	Band     Band
	Excluded domain.Mods
}

// NewPassInBand validates and builds a PassInBand rule
func NewPassInBand(mode domain.GameMode, band Band, excluded domain.Mods) (*PassInBand, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}
	if err := band.validate(); err != nil {
		return nil, err
	}
	return &PassInBand{Mode: mode, Band: band, Excluded: excluded}, nil
}

// Matches implements Rule
func (r *PassInBand) Matches(_ *domain.Session, beatmap *domain.Beatmap, score *domain.Score) bool {
	return score.GameMode == r.Mode &&
		r.Band.Contains(beatmap.StarRating) &&
		!anySet(score.Mods, r.Excluded)
}

// anySet reports whether any single flag of set is present in mods
func anySet(mods, set domain.Mods) bool {
	for bit := domain.Mods(1); bit != 0 && bit <= set; bit <<= 1 {
		if set.Has(bit) && mods.Has(bit) {
			return true
		}
	}
	return false
}

// FullComboInBand matches a full combo in mode on a beatmap inside Band
type FullComboInBand struct {
	Mode domain.GameMode
	Band Band
}

// NewFullComboInBand validates and builds a FullComboInBand rule
func NewFullComboInBand(mode domain.GameMode, band Band) (*FullComboInBand, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}
	if err := band.validate(); err != nil {
		return nil, err
	}
	return &FullComboInBand{Mode: mode, Band: band}, nil
}

// Matches implements Rule
func (r *FullComboInBand) Matches(_ *domain.Session, beatmap *domain.Beatmap, score *domain.Score) bool {
	return score.FullCombo &&
		score.GameMode == r.Mode &&
		r.Band.Contains(beatmap.StarRating)
}

// ComboThreshold matches a highest combo in [Low, High), or [Low, ∞) when High is Unbounded
type ComboThreshold struct {
	Mode domain.GameMode
	Low  uint32
	High uint32
}

// NewComboThreshold validates and builds a ComboThreshold rule
func NewComboThreshold(mode domain.GameMode, low, high uint32) (*ComboThreshold, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}
	if high != Unbounded && high <= low {
		return nil, fmt.Errorf("%w: combo range [%d, %d) is empty", domain.ErrConfiguration, low, high)
	}
	return &ComboThreshold{Mode: mode, Low: low, High: high}, nil
}

// Matches implements Rule
func (r *ComboThreshold) Matches(_ *domain.Session, _ *domain.Beatmap, score *domain.Score) bool {
	if score.GameMode != r.Mode || score.HighestCombo < r.Low {
		return false
	}
	return r.High == Unbounded || score.HighestCombo < r.High
}

// ModifierPresent matches a play with Flag set, or with exactly Flag when Exact is true
type ModifierPresent struct {
	Flag  domain.Mods
	Exact bool
}

// NewModifierPresent validates and builds a ModifierPresent rule
func NewModifierPresent(flag domain.Mods, exact bool) (*ModifierPresent, error) {
	if flag == domain.NoMod {
		return nil, fmt.Errorf("%w: modifier flag must be non-zero", domain.ErrConfiguration)
	}
	return &ModifierPresent{Flag: flag, Exact: exact}, nil
}

// Matches implements Rule
func (r *ModifierPresent) Matches(_ *domain.Session, _ *domain.Beatmap, score *domain.Score) bool {
	if r.Exact {
		return score.Mods == r.Flag
	}
	return score.Mods.Has(r.Flag)
}

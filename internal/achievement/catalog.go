package achievement

import (
	"fmt"
	"strings"

	"github.com/achievement-engine/internal/domain"
)

type template int

const (
	templatePass template = iota
	templateFullCombo
	templateCombo
	templateModifier
)

// passExcluded is the modifier set that disqualifies a play from a pass award
const passExcluded = domain.NoFail

// catalogRow expands into one achievement per band, combo range or flag.
// IDs are assigned consecutively starting at firstID.
type catalogRow struct {
	template template
	mode     domain.GameMode
	firstID  int
	bands    int      // star bands [1,2) .. [bands, bands+1)
	combos   []uint32 // consecutive lower bounds; the last range is open-ended
	flag     domain.Mods
	exact    bool
}

// catalog is the single source of truth for achievement semantics.
// Taiko, catch and mania stop at 8 stars.
var catalog = []catalogRow{
	{template: templatePass, mode: domain.ModeOsu, firstID: 1, bands: 10},
	{template: templateFullCombo, mode: domain.ModeOsu, firstID: 11, bands: 10},
	{template: templateCombo, mode: domain.ModeOsu, firstID: 21, combos: []uint32{500, 750, 1000, 2000}},
	{template: templatePass, mode: domain.ModeTaiko, firstID: 25, bands: 8},
	{template: templateFullCombo, mode: domain.ModeTaiko, firstID: 33, bands: 8},
	{template: templatePass, mode: domain.ModeCatch, firstID: 41, bands: 8},
	{template: templateFullCombo, mode: domain.ModeCatch, firstID: 49, bands: 8},
	{template: templatePass, mode: domain.ModeMania, firstID: 57, bands: 8},
	{template: templateFullCombo, mode: domain.ModeMania, firstID: 65, bands: 8},
	// SuddenDeath has always required the modifier on its own.
	{template: templateModifier, firstID: 73, flag: domain.SuddenDeath, exact: true},
	{template: templateModifier, firstID: 74, flag: domain.Hidden},
	{template: templateModifier, firstID: 75, flag: domain.Perfect},
	{template: templateModifier, firstID: 76, flag: domain.HardRock},
	{template: templateModifier, firstID: 77, flag: domain.DoubleTime},
	{template: templateModifier, firstID: 78, flag: domain.Flashlight},
	{template: templateModifier, firstID: 79, flag: domain.Easy},
	{template: templateModifier, firstID: 80, flag: domain.NoFail},
	{template: templateModifier, firstID: 81, flag: domain.Nightcore},
	{template: templateModifier, firstID: 82, flag: domain.HalfTime},
	{template: templateModifier, firstID: 83, flag: domain.SpunOut},
}

// NewDefaultRegistry builds the registry from the built-in catalog.
// An error here means the catalog itself is wrong and startup must abort.
func NewDefaultRegistry() (*Registry, error) {
	return buildRegistry(catalog)
}

func buildRegistry(rows []catalogRow) (*Registry, error) {
	reg := NewRegistry()
	for _, row := range rows {
		defs, err := row.expand()
		if err != nil {
			return nil, fmt.Errorf("expanding catalog row at id %d: %w", row.firstID, err)
		}
		for _, def := range defs {
			if err := reg.Register(def); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

func (row catalogRow) expand() ([]Definition, error) {
	switch row.template {
	case templatePass, templateFullCombo:
		return row.expandBands()
	case templateCombo:
		return row.expandCombos()
	case templateModifier:
		return row.expandModifier()
	default:
		return nil, fmt.Errorf("%w: unknown template %d", domain.ErrConfiguration, row.template)
	}
}

func (row catalogRow) expandBands() ([]Definition, error) {
	if row.bands <= 0 {
		return nil, fmt.Errorf("%w: band count must be positive", domain.ErrConfiguration)
	}

	defs := make([]Definition, 0, row.bands)
	for n := 1; n <= row.bands; n++ {
		band := StarBand(n)
		def := Definition{ID: row.firstID + n - 1}

		if row.template == templatePass {
			rule, err := NewPassInBand(row.mode, band, passExcluded)
			if err != nil {
				return nil, err
			}
			def.Rule = rule
			def.Key = fmt.Sprintf("%s_pass_%d_star", row.mode, n)
			def.Name = fmt.Sprintf("%s %d Star Pass", row.mode.DisplayName(), n)
			def.Description = fmt.Sprintf("Pass a %d-%d star %s beatmap without %s.",
				n, n+1, row.mode.DisplayName(), passExcluded.Name())
		} else {
			rule, err := NewFullComboInBand(row.mode, band)
			if err != nil {
				return nil, err
			}
			def.Rule = rule
			def.Key = fmt.Sprintf("%s_full_combo_%d_star", row.mode, n)
			def.Name = fmt.Sprintf("%s %d Star Full Combo", row.mode.DisplayName(), n)
			def.Description = fmt.Sprintf("Full combo a %d-%d star %s beatmap.",
				n, n+1, row.mode.DisplayName())
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (row catalogRow) expandCombos() ([]Definition, error) {
	if len(row.combos) == 0 {
		return nil, fmt.Errorf("%w: combo row has no thresholds", domain.ErrConfiguration)
	}

	defs := make([]Definition, 0, len(row.combos))
	for i, low := range row.combos {
		high := Unbounded
		if i+1 < len(row.combos) {
			high = row.combos[i+1]
		}
		rule, err := NewComboThreshold(row.mode, low, high)
		if err != nil {
			return nil, err
		}

		description := fmt.Sprintf("Reach a combo of %d or more in %s.", low, row.mode.DisplayName())
		if high != Unbounded {
			description = fmt.Sprintf("Reach a combo between %d and %d in %s.", low, high-1, row.mode.DisplayName())
		}
		defs = append(defs, Definition{
			ID:          row.firstID + i,
			Key:         fmt.Sprintf("%s_combo_%d", row.mode, low),
			Name:        fmt.Sprintf("%s %d Combo", row.mode.DisplayName(), low),
			Description: description,
			Rule:        rule,
		})
	}
	return defs, nil
}

func (row catalogRow) expandModifier() ([]Definition, error) {
	rule, err := NewModifierPresent(row.flag, row.exact)
	if err != nil {
		return nil, err
	}

	name := row.flag.Name()
	if name == "" {
		name = row.flag.String()
	}
	description := fmt.Sprintf("Set a score with %s enabled.", name)
	if row.exact {
		description = fmt.Sprintf("Set a score with %s as the only modifier.", name)
	}
	return []Definition{{
		ID:          row.firstID,
		Key:         "all_intro_" + strings.ToLower(name),
		Name:        name + " Intro",
		Description: description,
		Rule:        rule,
	}}, nil
}

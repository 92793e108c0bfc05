package achievement

import (
	"testing"

	"github.com/achievement-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Registry ---

func TestRegistryRegister(t *testing.T) {
	rule, err := NewModifierPresent(domain.Hidden, false)
	require.NoError(t, err)

	t.Run("keeps insertion order", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(Definition{ID: 9, Rule: rule}))
		require.NoError(t, reg.Register(Definition{ID: 2, Rule: rule}))
		require.NoError(t, reg.Register(Definition{ID: 5, Rule: rule}))

		assert.Equal(t, []int{9, 2, 5}, reg.IDs())
		assert.Equal(t, 3, reg.Len())
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(Definition{ID: 1, Rule: rule}))

		err := reg.Register(Definition{ID: 1, Rule: rule})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.Equal(t, []int{1}, reg.IDs())
	})

	t.Run("rejects a nil rule", func(t *testing.T) {
		err := NewRegistry().Register(Definition{ID: 1})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("get returns absent for unknown ids", func(t *testing.T) {
		reg := NewRegistry()
		_, ok := reg.Get(42)
		assert.False(t, ok)
	})

	t.Run("IDs returns a copy", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(Definition{ID: 1, Rule: rule}))
		ids := reg.IDs()
		ids[0] = 99
		assert.Equal(t, []int{1}, reg.IDs())
	})
}

// --- catalog ---

func TestDefaultRegistry(t *testing.T) {
	reg, err := NewDefaultRegistry()
	require.NoError(t, err)

	t.Run("registers ids 1 through 83 in order", func(t *testing.T) {
		ids := reg.IDs()
		require.Len(t, ids, 83)
		for i, id := range ids {
			assert.Equal(t, i+1, id)
		}
	})

	t.Run("keys are unique", func(t *testing.T) {
		seen := make(map[string]int)
		for _, def := range reg.Definitions() {
			prev, dup := seen[def.Key]
			assert.False(t, dup, "key %q used by %d and %d", def.Key, prev, def.ID)
			seen[def.Key] = def.ID
		}
	})

	t.Run("rows map to the expected templates", func(t *testing.T) {
		expectations := []struct {
			id   int
			key  string
			rule Rule
		}{
			{1, "osu_pass_1_star", &PassInBand{Mode: domain.ModeOsu, Band: StarBand(1), Excluded: domain.NoFail}},
			{10, "osu_pass_10_star", &PassInBand{Mode: domain.ModeOsu, Band: StarBand(10), Excluded: domain.NoFail}},
			{15, "osu_full_combo_5_star", &FullComboInBand{Mode: domain.ModeOsu, Band: StarBand(5)}},
			{21, "osu_combo_500", &ComboThreshold{Mode: domain.ModeOsu, Low: 500, High: 750}},
			{24, "osu_combo_2000", &ComboThreshold{Mode: domain.ModeOsu, Low: 2000, High: Unbounded}},
			{32, "taiko_pass_8_star", &PassInBand{Mode: domain.ModeTaiko, Band: StarBand(8), Excluded: domain.NoFail}},
			{49, "ctb_full_combo_1_star", &FullComboInBand{Mode: domain.ModeCatch, Band: StarBand(1)}},
			{57, "mania_pass_1_star", &PassInBand{Mode: domain.ModeMania, Band: StarBand(1), Excluded: domain.NoFail}},
			{72, "mania_full_combo_8_star", &FullComboInBand{Mode: domain.ModeMania, Band: StarBand(8)}},
			{73, "all_intro_suddendeath", &ModifierPresent{Flag: domain.SuddenDeath, Exact: true}},
			{75, "all_intro_perfect", &ModifierPresent{Flag: domain.Perfect}},
			{81, "all_intro_nightcore", &ModifierPresent{Flag: domain.Nightcore}},
			{83, "all_intro_spunout", &ModifierPresent{Flag: domain.SpunOut}},
		}

		for _, e := range expectations {
			def, ok := reg.Get(e.id)
			require.True(t, ok, "id %d missing", e.id)
			assert.Equal(t, e.key, def.Key)
			assert.Equal(t, e.rule, def.Rule)
			assert.NotEmpty(t, def.Name)
			assert.NotEmpty(t, def.Description)
		}
	})
}

func TestBuildRegistryRejectsOverlappingRows(t *testing.T) {
	rows := []catalogRow{
		{template: templatePass, mode: domain.ModeOsu, firstID: 1, bands: 3},
		{template: templateFullCombo, mode: domain.ModeOsu, firstID: 3, bands: 3},
	}
	_, err := buildRegistry(rows)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBuildRegistryRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		row  catalogRow
	}{
		{"no bands", catalogRow{template: templatePass, mode: domain.ModeOsu, firstID: 1}},
		{"no combos", catalogRow{template: templateCombo, mode: domain.ModeOsu, firstID: 1}},
		{"unsorted combos", catalogRow{template: templateCombo, mode: domain.ModeOsu, firstID: 1, combos: []uint32{750, 500}}},
		{"zero flag", catalogRow{template: templateModifier, firstID: 1}},
		{"unknown mode", catalogRow{template: templateFullCombo, mode: domain.GameMode(8), firstID: 1, bands: 2}},
		{"unknown template", catalogRow{template: template(99), firstID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildRegistry([]catalogRow{tt.row})
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

package domain

// GameMode identifies the ruleset a score was played in
type GameMode uint8

const (
	ModeOsu   GameMode = 0
	ModeTaiko GameMode = 1
	ModeCatch GameMode = 2
	ModeMania GameMode = 3
)

// Valid reports whether the mode is one of the four known rulesets
func (m GameMode) Valid() bool {
	return m <= ModeMania
}

// String returns the lowercase ruleset name used in achievement keys
func (m GameMode) String() string {
	switch m {
	case ModeOsu:
		return "osu"
	case ModeTaiko:
		return "taiko"
	case ModeCatch:
		return "ctb"
	case ModeMania:
		return "mania"
	default:
		return "unknown"
	}
}

// DisplayName returns the name shown to players
func (m GameMode) DisplayName() string {
	switch m {
	case ModeOsu:
		return "osu!"
	case ModeTaiko:
		return "osu!taiko"
	case ModeCatch:
		return "osu!catch"
	case ModeMania:
		return "osu!mania"
	default:
		return "unknown"
	}
}

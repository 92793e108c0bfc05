package domain

import "strings"

// Mods is the bitmask of gameplay modifiers applied to a play
type Mods uint32

const (
	NoFail      Mods = 1 << 0
	Easy        Mods = 1 << 1
	TouchDevice Mods = 1 << 2
	Hidden      Mods = 1 << 3
	HardRock    Mods = 1 << 4
	SuddenDeath Mods = 1 << 5
	DoubleTime  Mods = 1 << 6
	Relax       Mods = 1 << 7
	HalfTime    Mods = 1 << 8
	Nightcore   Mods = 1 << 9
	Flashlight  Mods = 1 << 10
	Autoplay    Mods = 1 << 11
	SpunOut     Mods = 1 << 12
	Autopilot   Mods = 1 << 13
	Perfect     Mods = 1 << 14
)

// NoMod is the empty modifier set
const NoMod Mods = 0

var modAcronyms = []struct {
	flag Mods
	name string
}{
	{NoFail, "NF"},
	{Easy, "EZ"},
	{TouchDevice, "TD"},
	{Hidden, "HD"},
	{HardRock, "HR"},
	{SuddenDeath, "SD"},
	{DoubleTime, "DT"},
	{Relax, "RX"},
	{HalfTime, "HT"},
	{Nightcore, "NC"},
	{Flashlight, "FL"},
	{Autoplay, "AT"},
	{SpunOut, "SO"},
	{Autopilot, "AP"},
	{Perfect, "PF"},
}

// Has reports whether every bit of flag is set in m.
// Bits are tested literally: Nightcore does not imply DoubleTime.
func (m Mods) Has(flag Mods) bool {
	return m&flag == flag
}

// String renders the known flags as acronyms, e.g. "HDHR". Unknown bits are ignored.
func (m Mods) String() string {
	if m == NoMod {
		return "NM"
	}
	var b strings.Builder
	for _, mod := range modAcronyms {
		if m.Has(mod.flag) {
			b.WriteString(mod.name)
		}
	}
	if b.Len() == 0 {
		return "NM"
	}
	return b.String()
}

// Name returns the long name of a single flag, or "" if flag is not a known single modifier
func (m Mods) Name() string {
	return modNames[m]
}

var modNames = map[Mods]string{
	NoFail:      "NoFail",
	Easy:        "Easy",
	TouchDevice: "TouchDevice",
	Hidden:      "Hidden",
	HardRock:    "HardRock",
	SuddenDeath: "SuddenDeath",
	DoubleTime:  "DoubleTime",
	Relax:       "Relax",
	HalfTime:    "HalfTime",
	Nightcore:   "Nightcore",
	Flashlight:  "Flashlight",
	Autoplay:    "Autoplay",
	SpunOut:     "SpunOut",
	Autopilot:   "Autopilot",
	Perfect:     "Perfect",
}

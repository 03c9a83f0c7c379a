package autosave

import (
	"fmt"
	"strings"

	"github.com/SteamServerUI/AutoSaveManager/config"
)

// ModeID identifies a host game mode.
type ModeID uint32

const (
	ModeNone ModeID = iota
	ModeCell
	ModeCreature
	ModeTribe
	ModeCiv
	ModeSpace
	ModeEditor
	ModeLoading
)

var modeNames = map[ModeID]string{
	ModeNone:     "none",
	ModeCell:     "cell",
	ModeCreature: "creature",
	ModeTribe:    "tribe",
	ModeCiv:      "civ",
	ModeSpace:    "space",
	ModeEditor:   "editor",
	ModeLoading:  "loading",
}

// modeFlags maps every in-game mode that may autosave to its config flag.
var modeFlags = map[ModeID]string{
	ModeCell:     config.KeySaveInCell,
	ModeCreature: config.KeySaveInCreature,
	ModeTribe:    config.KeySaveInTribal,
	ModeCiv:      config.KeySaveInCivilization,
	ModeSpace:    config.KeySaveInSpace,
}

func (m ModeID) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%#x)", uint32(m))
}

// Recognized reports whether m is one of the in-game modes that can autosave at all.
func (m ModeID) Recognized() bool {
	_, ok := modeFlags[m]
	return ok
}

// FlagKey returns the config key that enables autosave in m, or "" for unrecognized modes.
func (m ModeID) FlagKey() string {
	return modeFlags[m]
}

// ParseMode resolves a mode by its name, case-insensitively.
func ParseMode(name string) (ModeID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, n := range modeNames {
		if n == name {
			return id, nil
		}
	}
	return ModeNone, fmt.Errorf("unknown game mode %q", name)
}

// Package config reads and validates the autosave settings stored in an INI file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SteamServerUI/AutoSaveManager/global"
	"gopkg.in/ini.v1"
)

// Keys stored in the config section.
const (
	KeyInterval           = "IntervalInMinutes"
	KeyMaxBackups         = "MaximumAmountOfBackupSaves"
	KeySaveInCell         = "SaveInCellStage"
	KeySaveInCreature     = "SaveInCreatureStage"
	KeySaveInTribal       = "SaveInTribalStage"
	KeySaveInCivilization = "SaveInCivilizationStage"
	KeySaveInSpace        = "SaveInSpaceStage"
)

// Defaults holds the values written to a freshly created config file, in file order.
var Defaults = []struct {
	Key   string
	Value string
}{
	{KeyInterval, "10"},
	{KeyMaxBackups, "5"},
	{KeySaveInCell, "1"},
	{KeySaveInCreature, "1"},
	{KeySaveInTribal, "1"},
	{KeySaveInCivilization, "1"},
	{KeySaveInSpace, "1"},
}

// Store is a key/value string config with caller supplied defaults.
type Store interface {
	GetString(key, def string) string
}

// INIStore is a Store backed by a single section of an INI file.
type INIStore struct {
	path    string
	section string

	mu   sync.Mutex
	file *ini.File
}

// OpenINI loads the INI file at path, creating it with Defaults when it does not exist.
func OpenINI(path string) (*INIStore, error) {
	s := &INIStore{
		path:    path,
		section: global.ConfigSection,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, fmt.Errorf("error creating config directory for %s: %w", path, err)
		}
		s.file = ini.Empty()
		sec := s.file.Section(s.section)
		for _, d := range Defaults {
			sec.Key(d.Key).SetValue(d.Value)
		}
		if err := s.file.SaveTo(path); err != nil {
			return nil, fmt.Errorf("error writing default config %s: %w", path, err)
		}
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("error checking config file %s: %w", path, err)
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	s.file = f
	return s, nil
}

// Path returns the file backing the store.
func (s *INIStore) Path() string {
	return s.path
}

// GetString returns the value for key, or def when the key is absent.
func (s *INIStore) GetString(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.file.Section(s.section)
	if !sec.HasKey(key) {
		return def
	}
	return sec.Key(key).String()
}

// SetValue stores value under key and writes the file.
func (s *INIStore) SetValue(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.file.Section(s.section).Key(key).SetValue(value)
	if err := s.file.SaveTo(s.path); err != nil {
		return fmt.Errorf("failed to save config file %s: %w", s.path, err)
	}
	return nil
}

// MapStore is an in-memory Store, handy for embedding hosts that keep settings elsewhere.
type MapStore map[string]string

// GetString implements Store.
func (m MapStore) GetString(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

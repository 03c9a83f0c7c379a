package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConfigError reports a numeric setting that is missing or not a positive integer.
// It is terminal for the autosave feature: callers disable it and tell the user once.
type ConfigError struct {
	Key   string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s is invalid (%q), autosave disabled", e.Key, e.Value)
}

// Settings are the numeric values read once at startup.
type Settings struct {
	Interval   time.Duration
	MaxBackups int
}

// Load reads and validates the numeric settings from store.
func Load(store Store) (Settings, error) {
	minutes, err := positiveInt(store, KeyInterval, "10")
	if err != nil {
		return Settings{}, err
	}
	maxBackups, err := positiveInt(store, KeyMaxBackups, "5")
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Interval:   time.Duration(minutes) * time.Minute,
		MaxBackups: maxBackups,
	}, nil
}

// FlagEnabled reports whether the boolean flag under key is on. Only "0" turns a flag off.
func FlagEnabled(store Store, key string) bool {
	return strings.TrimSpace(store.GetString(key, "1")) != "0"
}

func positiveInt(store Store, key, def string) (int, error) {
	raw := store.GetString(key, def)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, &ConfigError{Key: key, Value: raw}
	}
	return n, nil
}

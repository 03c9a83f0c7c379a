package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/SteamServerUI/PluginLib"
	"github.com/sirupsen/logrus"
)

// Default host API route and command used to ask the game server for a save.
const (
	DefaultSaveRoute   = "/api/v2/command"
	DefaultSaveCommand = "SAVE"
)

// pluginLevel maps logrus levels to the level names SteamServerUI accepts.
func pluginLevel(level logrus.Level) string {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return "Debug"
	case logrus.InfoLevel:
		return "Info"
	case logrus.WarnLevel:
		return "Warn"
	default:
		return "Error"
	}
}

// PluginLogHook forwards log entries to the SteamServerUI host log.
type PluginLogHook struct {
	MinLevel logrus.Level
}

// Levels implements logrus.Hook.
func (h *PluginLogHook) Levels() []logrus.Level {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= h.MinLevel {
			levels = append(levels, l)
		}
	}
	return levels
}

// Fire implements logrus.Hook.
func (h *PluginLogHook) Fire(entry *logrus.Entry) error {
	return PluginLib.Log(formatPluginMessage(entry), pluginLevel(entry.Level))
}

// formatPluginMessage renders the instance tag first, like the host's own plugins do,
// followed by the message and the remaining fields in key order.
func formatPluginMessage(entry *logrus.Entry) string {
	var b strings.Builder
	if id, ok := entry.Data["instance"]; ok {
		fmt.Fprintf(&b, "%v: ", id)
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "instance" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	return b.String()
}

// PluginSave returns a native save routine that asks the SteamServerUI host to run command.
func PluginSave(route, command string) func() error {
	if route == "" {
		route = DefaultSaveRoute
	}
	if command == "" {
		command = DefaultSaveCommand
	}
	return func() error {
		var resp PluginLib.SettingsResponse
		payload := map[string]string{"command": command}
		if _, err := PluginLib.Post(route, &payload, &resp); err != nil {
			return fmt.Errorf("failed to send %s to host: %w", command, err)
		}
		return nil
	}
}

// Notifier shows a message to the player.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// LogNotifier reports messages as errors on a log entry.
func LogNotifier(log *logrus.Entry) Notifier {
	return NotifierFunc(func(msg string) {
		log.Errorln(msg)
	})
}

// PluginNotifier reports messages in the SteamServerUI host log.
func PluginNotifier() Notifier {
	return NotifierFunc(func(msg string) {
		PluginLib.Log(msg, "Error")
	})
}

// OnceNotifier passes only the first message on.
type OnceNotifier struct {
	next Notifier
	once sync.Once
}

// NewOnceNotifier wraps next so the player is told only once.
func NewOnceNotifier(next Notifier) *OnceNotifier {
	return &OnceNotifier{next: next}
}

// Notify implements Notifier.
func (n *OnceNotifier) Notify(msg string) {
	n.once.Do(func() {
		n.next.Notify(msg)
	})
}

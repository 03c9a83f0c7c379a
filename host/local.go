// Package host provides the game-side collaborators of the autosave scheduler: a settable host
// environment, a watcher that reports saves written to disk, and the SteamServerUI plugin bridge.
package host

import (
	"sync"

	"github.com/SteamServerUI/AutoSaveManager/autosave"
	"github.com/sirupsen/logrus"
)

// EventSink receives mode changes and events. *autosave.Scheduler implements it.
type EventSink interface {
	OnModeEntered(prev, next autosave.ModeID)
	HandleEvent(ev autosave.Event) bool
}

// Local is a host environment whose state is pushed in by the embedding program.
// State changes are forwarded to subscribed sinks after the host lock is released.
type Local struct {
	mu       sync.Mutex
	mode     autosave.ModeID
	paused   bool
	onPlanet bool
	save     func() error
	sinks    []EventSink
	log      *logrus.Entry
}

// NewLocal creates a host in ModeNone. save runs the native save; nil makes TriggerSave a no-op.
func NewLocal(save func() error, log *logrus.Entry) *Local {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Local{save: save, log: log}
}

// Subscribe registers a sink for mode changes and events.
func (l *Local) Subscribe(sink EventSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

func (l *Local) subscribers() []EventSink {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]EventSink(nil), l.sinks...)
}

// SetMode switches the game mode and tells subscribers about it.
func (l *Local) SetMode(mode autosave.ModeID) {
	l.mu.Lock()
	prev := l.mode
	l.mode = mode
	l.mu.Unlock()

	for _, s := range l.subscribers() {
		s.OnModeEntered(prev, mode)
	}
}

// SetPaused changes the pause state. Only actual changes are forwarded.
func (l *Local) SetPaused(paused bool) {
	l.mu.Lock()
	changed := l.paused != paused
	l.paused = paused
	l.mu.Unlock()

	if !changed {
		return
	}
	l.dispatch(autosave.PauseEvent(paused))
}

// SetOnPlanet sets whether the player is on a planet surface during space travel.
func (l *Local) SetOnPlanet(onPlanet bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onPlanet = onPlanet
}

// ReportSave tells subscribers that a save just happened.
func (l *Local) ReportSave() {
	l.dispatch(autosave.SaveEvent())
}

func (l *Local) dispatch(ev autosave.Event) {
	for _, s := range l.subscribers() {
		s.HandleEvent(ev)
	}
}

// CurrentMode implements autosave.Host.
func (l *Local) CurrentMode() autosave.ModeID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// OnPlanet implements autosave.Host. Planet context only exists in space.
func (l *Local) OnPlanet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode == autosave.ModeSpace && l.onPlanet
}

// Paused reports the current pause state.
func (l *Local) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// TriggerSave implements autosave.Host. Failures are logged only; the scheduler does not see them.
func (l *Local) TriggerSave() {
	if l.save == nil {
		l.log.Warnln("No native save routine attached, save skipped")
		return
	}
	if err := l.save(); err != nil {
		l.log.WithField("err", err).Errorln("Native save failed")
	}
}

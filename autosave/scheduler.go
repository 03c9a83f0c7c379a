// Package autosave decides when a running game should be backed up and saved.
package autosave

import (
	"errors"
	"sync"
	"time"

	"github.com/SteamServerUI/AutoSaveManager/config"
	"github.com/sirupsen/logrus"
)

// RetryDelay is how long the scheduler waits after a failed backup before trying again.
const RetryDelay = time.Minute

// Host is the game process the scheduler is embedded in.
type Host interface {
	CurrentMode() ModeID
	// OnPlanet reports a space-travel context with the player on a planet surface,
	// where the host itself refuses to save.
	OnPlanet() bool
	// TriggerSave starts the host's native save. Its outcome is not reported back.
	TriggerSave()
}

// BackupFunc copies the current save somewhere safe before the host overwrites it.
type BackupFunc func() error

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// State is the scheduler's position in its state machine.
type State int

const (
	StateIneligible State = iota
	StateArmed
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StatePaused:
		return "paused"
	default:
		return "ineligible"
	}
}

// TickResult tells what a Tick did.
type TickResult int

const (
	TickIdle TickResult = iota
	TickSuppressed
	TickNotDue
	TickSaved
	TickBackupFailed
)

func (r TickResult) String() string {
	switch r {
	case TickSuppressed:
		return "suppressed"
	case TickNotDue:
		return "not-due"
	case TickSaved:
		return "saved"
	case TickBackupFailed:
		return "backup-failed"
	default:
		return "idle"
	}
}

// ScheduleState is a read-only copy of the scheduler state.
// PausedRemaining is only meaningful while IsPaused is set.
type ScheduleState struct {
	State            State
	NextSaveDeadline time.Time
	PausedRemaining  time.Duration
	IsEligible       bool
	IsPaused         bool
}

// Options configures a Scheduler. Config, Host, Backup and a positive Interval are required.
type Options struct {
	Config   config.Store
	Host     Host
	Backup   BackupFunc
	Interval time.Duration
	Clock    Clock
	Guard    *WindowGuard
	Logger   *logrus.Entry
}

// Scheduler is the autosave state machine. It is ineligible until a saving mode is entered,
// armed while counting down to the next save, and paused with the remaining time frozen.
type Scheduler struct {
	cfg      config.Store
	host     Host
	backup   BackupFunc
	interval time.Duration
	clock    Clock
	guard    *WindowGuard
	log      *logrus.Entry

	mu        sync.Mutex
	state     State
	deadline  time.Time
	remaining time.Duration
}

// New creates an ineligible Scheduler.
func New(opts Options) (*Scheduler, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("autosave: config store is required")
	case opts.Host == nil:
		return nil, errors.New("autosave: host is required")
	case opts.Backup == nil:
		return nil, errors.New("autosave: backup function is required")
	case opts.Interval <= 0:
		return nil, errors.New("autosave: interval must be positive")
	}

	s := &Scheduler{
		cfg:      opts.Config,
		host:     opts.Host,
		backup:   opts.Backup,
		interval: opts.Interval,
		clock:    opts.Clock,
		guard:    opts.Guard,
		log:      opts.Logger,
		state:    StateIneligible,
	}
	if s.clock == nil {
		s.clock = ClockFunc(time.Now)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return s, nil
}

// Attach syncs the scheduler with the mode the host is already in.
func (s *Scheduler) Attach() {
	s.OnModeEntered(ModeNone, s.host.CurrentMode())
}

// OnModeEntered arms the scheduler for recognized modes whose config flag is on,
// and makes it ineligible otherwise. The flag is read from the store on every call.
func (s *Scheduler) OnModeEntered(prev, next ModeID) {
	eligible := next.Recognized() && config.FlagEnabled(s.cfg, next.FlagKey())
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.log.WithFields(logrus.Fields{"from": prev, "to": next})
	s.remaining = 0
	if !eligible {
		s.state = StateIneligible
		entry.Debugln("Autosave not permitted in this mode")
		return
	}

	s.state = StateArmed
	s.deadline = now.Add(s.interval)
	entry.WithField("next", s.deadline).Debugln("Autosave armed")
}

// HandledEvents returns the events HandleEvent reacts to.
func (s *Scheduler) HandledEvents() []EventID {
	return []EventID{EventSave, EventPauseToggled}
}

// HandleEvent applies a host event. It never consumes the event exclusively and always
// returns false so other listeners see it too.
func (s *Scheduler) HandleEvent(ev Event) bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIneligible {
		return false
	}

	switch ev.ID {
	case EventSave:
		if s.state == StateArmed {
			s.deadline = now.Add(s.interval)
			s.log.WithField("next", s.deadline).Debugln("Save detected, countdown restarted")
		}
	case EventPauseToggled:
		switch {
		case ev.Paused && s.state == StateArmed:
			// whole seconds only, each pause cycle may lose up to a second
			s.remaining = s.deadline.Sub(now).Truncate(time.Second)
			s.state = StatePaused
			s.log.WithField("remaining", s.remaining).Debugln("Autosave paused")
		case !ev.Paused && s.state == StatePaused:
			s.deadline = now.Add(s.remaining)
			s.remaining = 0
			s.state = StateArmed
			s.log.WithField("next", s.deadline).Debugln("Autosave resumed")
		}
	}

	return false
}

// Update runs Tick with the scheduler's clock.
func (s *Scheduler) Update() TickResult {
	return s.Tick(s.clock.Now())
}

// Tick backs up and saves when the deadline has passed. A suppressed tick leaves the deadline
// alone so the save happens as soon as the suppression ends. A failed backup skips the host
// save and retries after RetryDelay.
func (s *Scheduler) Tick(now time.Time) TickResult {
	s.mu.Lock()

	if s.state != StateArmed {
		s.mu.Unlock()
		return TickIdle
	}
	if s.host.OnPlanet() || (s.guard != nil && !s.guard.Allows()) {
		s.mu.Unlock()
		return TickSuppressed
	}
	if now.Before(s.deadline) {
		s.mu.Unlock()
		return TickNotDue
	}

	if err := s.backup(); err != nil {
		s.deadline = now.Add(RetryDelay)
		s.log.WithFields(logrus.Fields{
			"err":   err,
			"retry": s.deadline,
		}).Errorln("Backup failed, skipping save")
		s.mu.Unlock()
		return TickBackupFailed
	}

	s.deadline = now.Add(s.interval)
	s.log.WithField("next", s.deadline).Infoln("Backup done, triggering save")
	s.mu.Unlock()

	// the host may report the save back through HandleEvent, so the lock must be released
	s.host.TriggerSave()
	return TickSaved
}

// Snapshot returns the current schedule state.
func (s *Scheduler) Snapshot() ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ScheduleState{
		State:            s.state,
		NextSaveDeadline: s.deadline,
		PausedRemaining:  s.remaining,
		IsEligible:       s.state != StateIneligible,
		IsPaused:         s.state == StatePaused,
	}
}

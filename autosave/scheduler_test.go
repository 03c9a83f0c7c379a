package autosave

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SteamServerUI/AutoSaveManager/config"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type fakeHost struct {
	mode     ModeID
	onPlanet bool
	saves    int
	onSave   func()
}

func (h *fakeHost) CurrentMode() ModeID { return h.mode }
func (h *fakeHost) OnPlanet() bool      { return h.onPlanet }
func (h *fakeHost) TriggerSave() {
	h.saves++
	if h.onSave != nil {
		h.onSave()
	}
}

type fakeBackup struct {
	calls int
	err   error
}

func (b *fakeBackup) Run() error {
	b.calls++
	return b.err
}

type fixture struct {
	clock   *fakeClock
	host    *fakeHost
	backup  *fakeBackup
	store   config.MapStore
	hook    *logtest.Hook
	sched   *Scheduler
	started time.Time
}

const testInterval = 10 * time.Minute

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		clock:   &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		host:    &fakeHost{},
		backup:  &fakeBackup{},
		store:   config.MapStore{},
		hook:    hook,
		started: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	sched, err := New(Options{
		Config:   f.store,
		Host:     f.host,
		Backup:   f.backup.Run,
		Interval: testInterval,
		Clock:    f.clock,
		Logger:   logrus.NewEntry(logger),
	})
	require.NoError(t, err)
	f.sched = sched
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	host := &fakeHost{}
	backup := func() error { return nil }
	store := config.MapStore{}

	tests := []struct {
		name string
		opts Options
	}{
		{"no config", Options{Host: host, Backup: backup, Interval: time.Minute}},
		{"no host", Options{Config: store, Backup: backup, Interval: time.Minute}},
		{"no backup", Options{Config: store, Host: host, Interval: time.Minute}},
		{"zero interval", Options{Config: store, Host: host, Backup: backup}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.opts)
			assert.Error(t, err)
		})
	}
}

func TestNew_StartsIneligible(t *testing.T) {
	f := newFixture(t)
	snap := f.sched.Snapshot()
	assert.Equal(t, StateIneligible, snap.State)
	assert.False(t, snap.IsEligible)
	assert.False(t, snap.IsPaused)
}

func TestOnModeEntered(t *testing.T) {
	tests := []struct {
		name     string
		mode     ModeID
		flags    config.MapStore
		eligible bool
	}{
		{"cell default flag", ModeCell, nil, true},
		{"creature", ModeCreature, nil, true},
		{"tribe", ModeTribe, nil, true},
		{"civ", ModeCiv, nil, true},
		{"space", ModeSpace, nil, true},
		{"space disabled", ModeSpace, config.MapStore{config.KeySaveInSpace: "0"}, false},
		{"tribe disabled", ModeTribe, config.MapStore{config.KeySaveInTribal: "0"}, false},
		{"other flag off does not matter", ModeCiv, config.MapStore{config.KeySaveInCell: "0"}, true},
		{"editor", ModeEditor, nil, false},
		{"loading", ModeLoading, nil, false},
		{"none", ModeNone, nil, false},
		{"unknown id", ModeID(0xdeadbeef), nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			for k, v := range tc.flags {
				f.store[k] = v
			}

			f.sched.OnModeEntered(ModeNone, tc.mode)

			snap := f.sched.Snapshot()
			assert.Equal(t, tc.eligible, snap.IsEligible)
			if tc.eligible {
				assert.Equal(t, StateArmed, snap.State)
				assert.Equal(t, f.started.Add(testInterval), snap.NextSaveDeadline)
			} else {
				assert.Equal(t, StateIneligible, snap.State)
			}
		})
	}
}

func TestOnModeEntered_ReadsFlagsEachTime(t *testing.T) {
	f := newFixture(t)

	f.sched.OnModeEntered(ModeNone, ModeCreature)
	require.True(t, f.sched.Snapshot().IsEligible)

	f.store[config.KeySaveInCreature] = "0"
	f.sched.OnModeEntered(ModeCreature, ModeCreature)
	assert.False(t, f.sched.Snapshot().IsEligible)
}

func TestTick_BeforeDeadlineNeverSaves(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeNone, ModeCell)

	for i := 0; i < 599; i++ {
		now := f.clock.Advance(time.Second)
		assert.Equal(t, TickNotDue, f.sched.Tick(now))
	}

	assert.Zero(t, f.backup.calls)
	assert.Zero(t, f.host.saves)
}

func TestTick_SavesAtDeadline(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeNone, ModeCiv)

	now := f.clock.Advance(testInterval)
	assert.Equal(t, TickSaved, f.sched.Tick(now))

	assert.Equal(t, 1, f.backup.calls)
	assert.Equal(t, 1, f.host.saves)
	assert.Equal(t, now.Add(testInterval), f.sched.Snapshot().NextSaveDeadline)

	// the next tick is not due again
	assert.Equal(t, TickNotDue, f.sched.Tick(f.clock.Advance(time.Second)))
	assert.Equal(t, 1, f.backup.calls)
}

func TestTick_BackupFailureRetriesInOneMinute(t *testing.T) {
	f := newFixture(t)
	f.backup.err = errors.New("disk full")
	f.sched.OnModeEntered(ModeNone, ModeCell)

	now := f.clock.Advance(testInterval + 5*time.Second)
	assert.Equal(t, TickBackupFailed, f.sched.Tick(now))

	assert.Equal(t, 1, f.backup.calls)
	assert.Zero(t, f.host.saves, "host save must not run after a failed backup")
	assert.Equal(t, now.Add(RetryDelay), f.sched.Snapshot().NextSaveDeadline)

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Backup failed, skipping save", entry.Message)

	// the retry succeeds once the disk recovers
	f.backup.err = nil
	assert.Equal(t, TickNotDue, f.sched.Tick(f.clock.Advance(30*time.Second)))
	assert.Equal(t, TickSaved, f.sched.Tick(f.clock.Advance(30*time.Second)))
	assert.Equal(t, 1, f.host.saves)
}

func TestTick_UnrecognizedModeNeverBacksUp(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeCell, ModeID(42))

	for i := 0; i < 10; i++ {
		assert.Equal(t, TickIdle, f.sched.Tick(f.clock.Advance(time.Hour)))
	}
	assert.Zero(t, f.backup.calls)
	assert.Zero(t, f.host.saves)
}

func TestTick_OnPlanetSuppressesWithoutReset(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeCiv, ModeSpace)
	deadline := f.sched.Snapshot().NextSaveDeadline

	f.host.onPlanet = true
	for i := 0; i < 3; i++ {
		assert.Equal(t, TickSuppressed, f.sched.Tick(f.clock.Advance(testInterval)))
	}
	assert.Zero(t, f.backup.calls)
	assert.Equal(t, deadline, f.sched.Snapshot().NextSaveDeadline)

	f.host.onPlanet = false
	assert.Equal(t, TickSaved, f.sched.Tick(f.clock.Advance(time.Second)))
	assert.Equal(t, 1, f.host.saves)
}

func TestHandleEvent_SaveResetsDeadline(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeNone, ModeTribe)

	now := f.clock.Advance(7 * time.Minute)
	assert.False(t, f.sched.HandleEvent(SaveEvent()))
	assert.Equal(t, now.Add(testInterval), f.sched.Snapshot().NextSaveDeadline)

	// the old deadline passing no longer triggers anything
	assert.Equal(t, TickNotDue, f.sched.Tick(f.clock.Advance(5*time.Minute)))
}

func TestHandleEvent_IgnoredWhileIneligible(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.sched.HandleEvent(SaveEvent()))
	assert.False(t, f.sched.HandleEvent(PauseEvent(true)))

	snap := f.sched.Snapshot()
	assert.Equal(t, StateIneligible, snap.State)
	assert.True(t, snap.NextSaveDeadline.IsZero())
}

func TestPauseResume_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeNone, ModeCreature)
	deadline := f.sched.Snapshot().NextSaveDeadline

	f.clock.Advance(1500 * time.Millisecond)
	assert.False(t, f.sched.HandleEvent(PauseEvent(true)))

	snap := f.sched.Snapshot()
	assert.Equal(t, StatePaused, snap.State)
	assert.True(t, snap.IsPaused)
	assert.True(t, snap.IsEligible)
	assert.Equal(t, testInterval-2*time.Second, snap.PausedRemaining, "remaining is truncated to whole seconds")

	assert.False(t, f.sched.HandleEvent(PauseEvent(false)))
	snap = f.sched.Snapshot()
	assert.Equal(t, StateArmed, snap.State)
	assert.WithinDuration(t, deadline, snap.NextSaveDeadline, time.Second)
}

func TestPause_FreezesCountdown(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeNone, ModeCell)

	f.clock.Advance(4 * time.Minute)
	f.sched.HandleEvent(PauseEvent(true))

	// an hour paused: ticks do nothing and saves do not reset anything
	assert.Equal(t, TickIdle, f.sched.Tick(f.clock.Advance(time.Hour)))
	f.sched.HandleEvent(SaveEvent())
	assert.Zero(t, f.backup.calls)

	resumed := f.clock.Now()
	f.sched.HandleEvent(PauseEvent(false))
	assert.Equal(t, resumed.Add(6*time.Minute), f.sched.Snapshot().NextSaveDeadline)

	assert.Equal(t, TickNotDue, f.sched.Tick(f.clock.Advance(5*time.Minute)))
	assert.Equal(t, TickSaved, f.sched.Tick(f.clock.Advance(time.Minute)))
}

func TestPause_RepeatedTogglesAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeNone, ModeCell)

	// resume while armed does nothing
	f.sched.HandleEvent(PauseEvent(false))
	assert.Equal(t, f.started.Add(testInterval), f.sched.Snapshot().NextSaveDeadline)

	f.sched.HandleEvent(PauseEvent(true))
	f.clock.Advance(time.Minute)
	f.sched.HandleEvent(PauseEvent(true))
	assert.Equal(t, testInterval, f.sched.Snapshot().PausedRemaining)
}

func TestModeEntered_ClearsPause(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeNone, ModeCell)
	f.sched.HandleEvent(PauseEvent(true))

	now := f.clock.Advance(time.Minute)
	f.sched.OnModeEntered(ModeCell, ModeCreature)

	snap := f.sched.Snapshot()
	assert.Equal(t, StateArmed, snap.State)
	assert.Zero(t, snap.PausedRemaining)
	assert.Equal(t, now.Add(testInterval), snap.NextSaveDeadline)
}

func TestTick_HostSaveMayReportBack(t *testing.T) {
	f := newFixture(t)
	f.host.onSave = func() {
		// a host that reports its own save synchronously must not deadlock
		f.sched.HandleEvent(SaveEvent())
	}
	f.sched.OnModeEntered(ModeNone, ModeCell)

	now := f.clock.Advance(testInterval)
	assert.Equal(t, TickSaved, f.sched.Tick(now))
	assert.Equal(t, now.Add(testInterval), f.sched.Snapshot().NextSaveDeadline)
}

func TestUpdate_UsesClock(t *testing.T) {
	f := newFixture(t)
	f.sched.OnModeEntered(ModeNone, ModeCell)

	assert.Equal(t, TickNotDue, f.sched.Update())
	f.clock.Advance(testInterval)
	assert.Equal(t, TickSaved, f.sched.Update())
}

func TestAttach_UsesHostMode(t *testing.T) {
	f := newFixture(t)
	f.host.mode = ModeSpace

	f.sched.Attach()
	assert.True(t, f.sched.Snapshot().IsEligible)

	f.host.mode = ModeEditor
	f.sched.Attach()
	assert.False(t, f.sched.Snapshot().IsEligible)
}

func TestHandledEvents(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []EventID{EventSave, EventPauseToggled}, f.sched.HandledEvents())
}

func TestTick_WindowGuardSuppresses(t *testing.T) {
	f := newFixture(t)
	root := newTestWindow(0, true, nil)
	newTestWindow(WindowOptionsButton, true, root)
	msg := newTestWindow(WindowMessageBox, true, root)

	f.sched.guard = DefaultWindowGuard(&testSource{main: root})
	f.sched.OnModeEntered(ModeNone, ModeCell)

	assert.Equal(t, TickSuppressed, f.sched.Tick(f.clock.Advance(testInterval)))

	msg.visible = false
	assert.Equal(t, TickSaved, f.sched.Tick(f.clock.Advance(time.Second)))
}

package autosave

// EventID identifies a host event the scheduler listens to.
type EventID uint32

const (
	// EventSave fires after the host or the user performed a save.
	EventSave EventID = iota + 1
	// EventPauseToggled fires when the game is paused or resumed.
	EventPauseToggled
)

func (id EventID) String() string {
	switch id {
	case EventSave:
		return "save"
	case EventPauseToggled:
		return "pause-toggled"
	default:
		return "unknown"
	}
}

// Event is a host notification. Paused is only meaningful for EventPauseToggled.
type Event struct {
	ID     EventID
	Paused bool
}

// SaveEvent returns the event sent after a save happened.
func SaveEvent() Event {
	return Event{ID: EventSave}
}

// PauseEvent returns the event sent when the pause state changes.
func PauseEvent(paused bool) Event {
	return Event{ID: EventPauseToggled, Paused: paused}
}

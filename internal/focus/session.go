// Package focus tracks a single active focus session. The source of truth is
// wall-clock elapsed time, never tick counts, so state recomputed after any
// suspension is always correct.
package focus

import (
	"errors"
	"time"
)

// Mode selects the timer direction.
type Mode string

const (
	// ModeCountdown counts down from a fixed duration to zero.
	ModeCountdown Mode = "countdown"
	// ModeCountUp counts indefinitely up from zero.
	ModeCountUp Mode = "countup"
)

// State is the session lifecycle position.
type State int

const (
	Idle State = iota
	Running
	Paused
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Transition errors. Persistence and notification failures are never
// surfaced here; invalid transitions are.
var (
	ErrSessionActive = errors.New("focus session already active")
	ErrNotRunning    = errors.New("no running focus session")
	ErrNotPaused     = errors.New("no paused focus session")
)

// Snapshot is the read-only view handed to observers and the UI layer.
type Snapshot struct {
	State           State
	Title           string
	Mode            Mode
	StartTime       time.Time
	InitialDuration int // seconds, countdown only
	Elapsed         int // seconds
	Remaining       int // seconds, countdown only
	ExternalRef     string
	Completed       bool
	PendingAlert    bool
	CompletionTime  time.Time
}

// Key-value keys. Names are kept from earlier app versions so an upgrade
// restores a session recorded before it.
const (
	keyTimerState      = "FocusTimerState"
	keyInitialDuration = "initialTimerDuration"
	keyCompletionTime  = "countdownCompletionTime"
)

// persistedState is the JSON snapshot written to the key-value area.
type persistedState struct {
	Title        string `json:"title"`
	Mode         Mode   `json:"timeMode"`
	Remaining    int    `json:"timeRemaining"`
	Elapsed      int    `json:"timeElapsed"`
	StartTime    int64  `json:"startTime"` // epoch seconds; 0 means no session
	Active       bool   `json:"isActive"`
	PendingAlert bool   `json:"pendingAlert"`
	Completed    bool   `json:"isCompleted"`
	ExternalRef  string `json:"reminderId,omitempty"`
}

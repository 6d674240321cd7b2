package focus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jiangjiax/goalify-client/internal/logging"
	"github.com/jiangjiax/goalify-client/internal/repositories/metadata"
	"github.com/jiangjiax/goalify-client/internal/timex"
)

// Manager is the focus-timer state machine. All state lives behind one mutex;
// the ticking goroutine, the UI and the restore path all funnel through it.
//
// Snapshot writes are best-effort: a failed save is logged and ignored,
// because wall-clock recomputation on the next restore is the real recovery
// mechanism.
type Manager struct {
	store    metadata.Repository
	clock    timex.Clock
	notifier Notifier
	log      logging.Logger

	mu              sync.Mutex
	state           State
	title           string
	mode            Mode
	startTime       time.Time
	initialDuration int
	elapsed         int
	remaining       int
	externalRef     string
	completed       bool
	pendingAlert    bool
	completionTime  time.Time

	// stop is non-nil exactly while the tick cadence runs.
	stop chan struct{}

	onChange func(Snapshot)
}

func NewManager(store metadata.Repository, clock timex.Clock, notifier Notifier, log logging.Logger) *Manager {
	return &Manager{
		store:    store,
		clock:    clock,
		notifier: notifier,
		log:      log,
		state:    Idle,
	}
}

// SetOnChange registers a state-change observer. The callback runs outside
// the manager's lock and must not be changed while a session is active.
func (m *Manager) SetOnChange(fn func(Snapshot)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Start begins a new session. Only valid when no session exists. The snapshot
// is persisted before the first tick so a crash right after start is
// recoverable.
func (m *Manager) Start(ctx context.Context, title string, mode Mode, duration int, externalRef string) error {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrSessionActive, m.state)
	}

	now := m.clock.Now()
	m.title = title
	m.mode = mode
	m.externalRef = externalRef
	m.startTime = now
	m.elapsed = 0
	m.completed = false
	m.pendingAlert = false
	m.completionTime = time.Time{}
	if mode == ModeCountdown {
		m.initialDuration = duration
		m.remaining = duration
	} else {
		m.initialDuration = 0
		m.remaining = 0
	}
	m.state = Running

	// The initial duration is the anchor for drift-free recomputation; the
	// watchdog stamp lets a background wake-up detect completion without the
	// snapshot.
	if mode == ModeCountdown {
		m.setKVLocked(ctx, keyInitialDuration, []byte(strconv.Itoa(duration)))
		m.setKVLocked(ctx, keyCompletionTime, []byte(strconv.FormatInt(now.Unix()+int64(duration), 10)))
	}
	m.saveLocked(ctx)
	m.startCadenceLocked()

	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
	return nil
}

// Pause freezes a running session. Elapsed/remaining stay at their current
// values until Resume.
func (m *Manager) Pause(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Running {
		m.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotRunning, m.state)
	}
	m.state = Paused
	m.stopCadenceLocked()
	m.saveLocked(ctx)

	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
	return nil
}

// Resume continues a paused session. The restore path restarts its own
// cadence, so Resume only ever applies to a locally-paused session.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Paused {
		m.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotPaused, m.state)
	}
	m.state = Running
	m.startCadenceLocked()
	m.saveLocked(ctx)

	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
	return nil
}

// Cancel discards the session and returns to idle.
func (m *Manager) Cancel(ctx context.Context) {
	m.clear(ctx)
}

// Complete ends the session and returns to idle. Callers wanting the session
// interval must read FocusTimeToRecord first.
func (m *Manager) Complete(ctx context.Context) {
	m.clear(ctx)
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	m.stopCadenceLocked()
	m.state = Idle
	m.title = ""
	m.mode = ""
	m.startTime = time.Time{}
	m.initialDuration = 0
	m.elapsed = 0
	m.remaining = 0
	m.externalRef = ""
	m.completed = false
	m.pendingAlert = false
	m.completionTime = time.Time{}

	for _, key := range []string{keyTimerState, keyInitialDuration, keyCompletionTime} {
		if err := m.store.Delete(ctx, key); err != nil {
			m.log.Warn(ctx, "clearing focus state failed", "key", key, "error", err)
		}
	}

	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
}

// Tick recomputes the session from the wall clock. The internal cadence calls
// it once a second; a background wake-up collaborator may call it directly.
// Missed ticks cause no drift because nothing accumulates.
func (m *Manager) Tick(ctx context.Context) {
	m.mu.Lock()
	if m.state != Running {
		m.mu.Unlock()
		return
	}
	m.recomputeLocked(ctx)
	m.saveLocked(ctx)

	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
}

// Restore rebuilds the session from the persisted snapshot after a process
// restart. A snapshot without a start time is ignored. A countdown that ran
// out entirely while the process was down completes retroactively, raising
// the pending alert the user has not seen yet.
func (m *Manager) Restore(ctx context.Context) {
	m.mu.Lock()

	b, err := m.store.Get(ctx, keyTimerState)
	if err != nil {
		m.log.Warn(ctx, "reading focus snapshot failed", "error", err)
		m.mu.Unlock()
		return
	}
	if len(b) == 0 {
		m.mu.Unlock()
		return
	}

	var ps persistedState
	if err := json.Unmarshal(b, &ps); err != nil {
		m.log.Warn(ctx, "focus snapshot corrupt, dropping", "error", err)
		_ = m.store.Delete(ctx, keyTimerState)
		m.mu.Unlock()
		return
	}
	if ps.StartTime == 0 {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	m.title = ps.Title
	m.mode = ps.Mode
	m.externalRef = ps.ExternalRef
	m.startTime = time.Unix(ps.StartTime, 0)
	m.completed = ps.Completed
	m.pendingAlert = ps.PendingAlert
	m.elapsed = int(now.Sub(m.startTime).Seconds())

	if m.mode == ModeCountdown {
		m.initialDuration = m.readInitialDurationLocked(ctx, ps)
		rem := m.initialDuration - m.elapsed
		if rem < 0 {
			rem = 0
		}
		m.remaining = rem
	}

	switch {
	case m.completed:
		m.state = Completed
	case m.mode == ModeCountdown && m.remaining == 0:
		// The countdown finished while we were not running.
		m.state = Running
		m.completeCountdownLocked(ctx, now)
	case ps.Active:
		m.state = Running
		m.startCadenceLocked()
		m.saveLocked(ctx)
	default:
		m.state = Paused
	}

	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
}

// ResumeFromBackground refreshes state once after the host resurfaces the
// process (foreground transition, background task). It repairs a cadence
// that should be running but is not.
func (m *Manager) ResumeFromBackground(ctx context.Context) {
	m.mu.Lock()
	if m.startTime.IsZero() {
		m.mu.Unlock()
		return
	}

	if m.state == Running {
		m.recomputeLocked(ctx)
		m.saveLocked(ctx)
		if m.state == Running && m.stop == nil {
			m.startCadenceLocked()
		}
	}

	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
}

// CheckCountdownCompletion consults the watchdog stamp written at start and
// completes the countdown if its deadline has passed. It only inspects the
// in-memory session; on a fresh process Restore must run first, since it is
// the one that rehydrates the mode and start time.
func (m *Manager) CheckCountdownCompletion(ctx context.Context) {
	m.mu.Lock()
	if m.mode != ModeCountdown || m.completed {
		m.mu.Unlock()
		return
	}

	b, err := m.store.Get(ctx, keyCompletionTime)
	if err != nil || len(b) == 0 {
		m.mu.Unlock()
		return
	}
	deadline, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		m.mu.Unlock()
		return
	}

	if !m.clock.Now().Before(time.Unix(deadline, 0)) {
		m.remaining = 0
		m.completeCountdownLocked(ctx, m.clock.Now())
	}

	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.emit(snap)
}

// FocusTimeToRecord derives the (start, end) interval to record for the
// session. Completed countdowns use the actual completion time, falling back
// to start+duration when it was never captured; everything else ends now.
func (m *Manager) FocusTimeToRecord() (start, end time.Time, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startTime.IsZero() {
		return time.Time{}, time.Time{}, false
	}

	if m.mode == ModeCountdown && m.completed {
		end = m.completionTime
		if end.IsZero() {
			end = m.startTime.Add(time.Duration(m.initialDuration) * time.Second)
		}
		return m.startTime, end, true
	}
	return m.startTime, m.clock.Now(), true
}

// ConsumePendingAlert hands the completion alert to the UI exactly once.
func (m *Manager) ConsumePendingAlert(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pendingAlert {
		return false
	}
	m.pendingAlert = false
	m.saveLocked(ctx)
	return true
}

// FormattedTime renders the display value: remaining for countdowns, elapsed
// for count-ups, as mm:ss.
func (m *Manager) FormattedTime() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.elapsed
	if m.mode == ModeCountdown {
		v = m.remaining
	}
	return fmt.Sprintf("%02d:%02d", v/60, v%60)
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) recomputeLocked(ctx context.Context) {
	now := m.clock.Now()
	if m.startTime.IsZero() {
		return
	}

	m.elapsed = int(now.Sub(m.startTime).Seconds())

	if m.mode == ModeCountdown {
		rem := m.initialDuration - m.elapsed
		if rem < 0 {
			rem = 0
		}
		m.remaining = rem
		if rem == 0 && !m.completed {
			m.completeCountdownLocked(ctx, now)
		}
	}
}

// completeCountdownLocked is the countdown-complete transition. Idempotent:
// re-evaluating after it fired neither re-raises the alert nor touches an
// already-stopped cadence.
func (m *Manager) completeCountdownLocked(ctx context.Context, now time.Time) {
	if m.completed {
		return
	}
	m.completed = true
	m.completionTime = now
	m.pendingAlert = true
	m.state = Completed
	m.stopCadenceLocked()
	m.saveLocked(ctx)

	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, "Focus complete", "You finished your focus session."); err != nil {
			m.log.Warn(ctx, "completion notification failed", "error", err)
		}
	}
}

func (m *Manager) startCadenceLocked() {
	if m.stop != nil {
		return
	}
	stop := make(chan struct{})
	m.stop = stop

	ticker := time.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Tick(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

func (m *Manager) stopCadenceLocked() {
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *Manager) saveLocked(ctx context.Context) {
	var startEpoch int64
	if !m.startTime.IsZero() {
		startEpoch = m.startTime.Unix()
	}
	ps := persistedState{
		Title:        m.title,
		Mode:         m.mode,
		Remaining:    m.remaining,
		Elapsed:      m.elapsed,
		StartTime:    startEpoch,
		Active:       m.state == Running,
		PendingAlert: m.pendingAlert,
		Completed:    m.completed,
		ExternalRef:  m.externalRef,
	}
	b, err := json.Marshal(ps)
	if err != nil {
		m.log.Warn(ctx, "encoding focus snapshot failed", "error", err)
		return
	}
	m.setKVLocked(ctx, keyTimerState, b)
}

func (m *Manager) setKVLocked(ctx context.Context, key string, value []byte) {
	if err := m.store.Set(ctx, key, value); err != nil {
		m.log.Warn(ctx, "persisting focus state failed", "key", key, "error", err)
	}
}

func (m *Manager) readInitialDurationLocked(ctx context.Context, ps persistedState) int {
	b, err := m.store.Get(ctx, keyInitialDuration)
	if err == nil && len(b) > 0 {
		if v, err := strconv.Atoi(string(b)); err == nil {
			return v
		}
	}
	// Older snapshots lack the separate key; reconstruct from the frozen pair.
	return ps.Elapsed + ps.Remaining
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:           m.state,
		Title:           m.title,
		Mode:            m.mode,
		StartTime:       m.startTime,
		InitialDuration: m.initialDuration,
		Elapsed:         m.elapsed,
		Remaining:       m.remaining,
		ExternalRef:     m.externalRef,
		Completed:       m.completed,
		PendingAlert:    m.pendingAlert,
		CompletionTime:  m.completionTime,
	}
}

func (m *Manager) emit(snap Snapshot) {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

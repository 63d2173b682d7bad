// Package engagement detects learner inactivity during a session.
//
// A Detector moves idle -> waiting after IdleTimeout without interaction,
// then waiting -> detected after a further ConfirmTimeout. Any interaction
// collapses it back to idle and restarts the idle window. Exactly one timer
// is armed at a time; every transition cancels the previous one.
package engagement

import (
	"sync"
	"time"
)

// State is the detector's position in the inactivity lifecycle.
type State int

const (
	StateIdle     State = iota // learner presumed engaged
	StateWaiting               // IdleTimeout elapsed without interaction
	StateDetected              // ConfirmTimeout elapsed while waiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateDetected:
		return "detected"
	}
	return "unknown"
}

const (
	// DefaultIdleTimeout is the idle window outside learning sessions.
	DefaultIdleTimeout = 15 * time.Second

	// SessionIdleTimeout is the idle window used during learning sessions.
	SessionIdleTimeout = 10 * time.Second

	// DefaultConfirmTimeout is the extra inactivity needed to move from
	// waiting to detected.
	DefaultConfirmTimeout = 5 * time.Second
)

// Config configures a Detector.
type Config struct {
	// IdleTimeout is T1, the idle -> waiting delay.
	IdleTimeout time.Duration

	// ConfirmTimeout is T2, the waiting -> detected delay.
	ConfirmTimeout time.Duration

	// Clock schedules timers. Defaults to SystemClock.
	Clock Clock

	// OnChange, if set, is called after every state change, outside the
	// detector's lock.
	OnChange func(State)
}

// Detector is a timer-owning inactivity state machine. It is safe for
// concurrent use.
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	state   State
	timer   Timer
	gen     uint64
	stopped bool
}

// New returns an idle detector. No timer runs until Start.
func New(cfg Config) *Detector {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	return &Detector{cfg: cfg}
}

// Start arms the idle timer.
func (d *Detector) Start() {
	d.transition(StateIdle)
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// RegisterInteraction records learner activity: the detector returns to
// idle from any state and the idle window restarts.
func (d *Detector) RegisterInteraction() {
	d.transition(StateIdle)
}

// Reset returns the detector to idle. Used when the learner dismisses the
// checkpoint.
func (d *Detector) Reset() {
	d.transition(StateIdle)
}

// Stop cancels the live timer. A stopped detector ignores further calls.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.cancelLocked()
}

func (d *Detector) transition(to State) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	changed := d.state != to
	d.state = to
	d.cancelLocked()
	d.armLocked()
	d.mu.Unlock()

	if changed && d.cfg.OnChange != nil {
		d.cfg.OnChange(to)
	}
}

func (d *Detector) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// armLocked arms the timer that leads out of the current state.
func (d *Detector) armLocked() {
	var (
		delay time.Duration
		next  State
	)
	switch d.state {
	case StateIdle:
		delay, next = d.cfg.IdleTimeout, StateWaiting
	case StateWaiting:
		delay, next = d.cfg.ConfirmTimeout, StateDetected
	default:
		return
	}
	gen := d.gen
	d.timer = d.cfg.Clock.AfterFunc(delay, func() { d.fire(gen, next) })
}

// fire advances the machine unless the timer was superseded.
func (d *Detector) fire(gen uint64, to State) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.state = to
	d.gen++
	d.armLocked()
	d.mu.Unlock()

	if d.cfg.OnChange != nil {
		d.cfg.OnChange(to)
	}
}

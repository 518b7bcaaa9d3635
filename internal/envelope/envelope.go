package envelope

import (
	"log"
	"sync"
	"time"
)

// #region envelope

// Envelope bounds how much and what kind of autonomous behavior is currently
// permitted. One instance per run, explicitly passed to every consumer.
//
// Transitions are asymmetric on purpose: widening (→ Expand, Tighten → Normal)
// requires the qualifying condition to hold for the full hysteresis window,
// narrowing (→ Tighten) commits immediately.
type Envelope struct {
	mu  sync.Mutex
	cfg Config

	state  State
	score  float64
	cap    float64
	seeded bool

	frozen           bool
	lastTransitionAt time.Time
	expandSince      time.Time // zero when the expand condition is not currently held
	calmSince        time.Time // zero when the tighten condition was violated more recently

	onTransition func(Transition)
}

// New creates an envelope in Normal state with cap 1.0.
func New(cfg Config, now time.Time) *Envelope {
	return &Envelope{
		cfg:              cfg,
		state:            StateNormal,
		cap:              1.0,
		lastTransitionAt: now,
	}
}

// OnTransition registers a hook invoked (outside the lock) for every state
// or cap change. Used to feed the audit log.
func (e *Envelope) OnTransition(fn func(Transition)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTransition = fn
}

// #endregion envelope

// #region tick

// Tick consumes one trust/consistency sample and advances the state machine.
// Returns the state after the sample is absorbed.
func (e *Envelope) Tick(now time.Time, trust, consistency float64) State {
	trust = clamp01(trust)
	consistency = clamp01(consistency)

	e.mu.Lock()

	e.updateScore(trust, consistency)

	if e.frozen {
		st := e.state
		e.mu.Unlock()
		return st
	}

	var fired *Transition

	tightenHit := trust < e.cfg.TightenTrust || consistency < e.cfg.TightenConsistency
	expandHit := trust > e.cfg.ExpandTrust && consistency > e.cfg.ExpandConsistency

	switch {
	case tightenHit:
		// Safety bias: no hysteresis on the way down, and the debounce re-arms.
		e.expandSince = time.Time{}
		e.calmSince = time.Time{}
		if e.state != StateTighten {
			fired = e.transitionLocked(StateTighten, now)
		}

	default:
		if e.calmSince.IsZero() {
			e.calmSince = now
		}
		if expandHit {
			if e.expandSince.IsZero() {
				e.expandSince = now
			}
		} else {
			e.expandSince = time.Time{}
			if e.state == StateExpand {
				fired = e.transitionLocked(StateNormal, now)
			}
		}

		window := time.Duration(e.cfg.HysteresisWindowMs) * time.Millisecond
		switch e.state {
		case StateTighten:
			if now.Sub(e.calmSince) >= window {
				fired = e.transitionLocked(StateNormal, now)
			}
		case StateNormal:
			if expandHit &&
				now.Sub(e.expandSince) >= window &&
				now.Sub(e.lastTransitionAt) >= window {
				fired = e.transitionLocked(StateExpand, now)
			}
		}
	}

	st := e.state
	hook := e.onTransition
	e.mu.Unlock()

	if fired != nil && hook != nil {
		hook(*fired)
	}
	return st
}

// updateScore smooths min(trust, consistency) into the autonomy score.
// Caller holds the lock.
func (e *Envelope) updateScore(trust, consistency float64) {
	sample := trust
	if consistency < sample {
		sample = consistency
	}
	if !e.seeded {
		e.score = sample
		e.seeded = true
		return
	}
	e.score = e.cfg.ScoreAlpha*sample + (1-e.cfg.ScoreAlpha)*e.score
}

// transitionLocked commits a state change. Caller holds the lock.
func (e *Envelope) transitionLocked(to State, now time.Time) *Transition {
	t := Transition{From: e.state, To: to, Score: e.score, Cap: e.cap, At: now}
	log.Printf("[ENV] %s -> %s score=%.3f cap=%.3f", e.state, to, e.score, e.cap)
	e.state = to
	e.lastTransitionAt = now
	e.expandSince = time.Time{}
	if to == StateTighten {
		e.calmSince = time.Time{}
	} else {
		e.calmSince = now
	}
	return &t
}

// #endregion tick

// #region freeze

// Freeze latches the envelope into Freeze. Only an explicit Unfreeze exits it;
// all other transitions are suppressed while latched.
func (e *Envelope) Freeze(now time.Time) {
	e.mu.Lock()
	var fired *Transition
	if !e.frozen {
		e.frozen = true
		fired = e.transitionLocked(StateFreeze, now)
	}
	hook := e.onTransition
	e.mu.Unlock()

	if fired != nil && hook != nil {
		hook(*fired)
	}
}

// Unfreeze clears the latch. The envelope always exits into Tighten with the
// debounce re-armed, so recovery from a veto is never a shortcut to Expand.
func (e *Envelope) Unfreeze(now time.Time) {
	e.mu.Lock()
	var fired *Transition
	if e.frozen {
		e.frozen = false
		fired = e.transitionLocked(StateTighten, now)
	}
	hook := e.onTransition
	e.mu.Unlock()

	if fired != nil && hook != nil {
		hook(*fired)
	}
}

// Frozen reports whether the freeze latch is set.
func (e *Envelope) Frozen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frozen
}

// #endregion freeze

// #region cap

// ApplyAutonomyCap sets the multiplicative ceiling on the autonomy score.
// Called only by the reputation gate. Input is clamped to [0,1]; applying
// the same value twice is a no-op.
func (e *Envelope) ApplyAutonomyCap(m float64) {
	m = clamp01(m)

	e.mu.Lock()
	if e.cap == m {
		e.mu.Unlock()
		return
	}
	e.cap = m
	t := Transition{From: e.state, To: e.state, Score: e.score, Cap: m, At: time.Now()}
	hook := e.onTransition
	e.mu.Unlock()

	log.Printf("[ENV] cap=%.3f", m)
	if hook != nil {
		hook(t)
	}
}

// #endregion cap

// #region snapshot

// Snapshot returns a consistent read of state, score, cap, and the effective
// autonomy. Effective is always recomputed from score and cap.
func (e *Envelope) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:     e.state,
		Score:     e.score,
		Cap:       e.cap,
		Effective: e.score * e.cap,
	}
}

// #endregion snapshot

// #region helpers

// clamp01 restricts v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers

// Package replay re-runs a recorded sequence of governance events through
// the envelope, the reputation gate, and scheduler admission, entirely
// in-memory. Identical inputs produce identical transition sequences, which
// makes incident traces reproducible offline.
package replay

import (
	"context"
	"time"

	"autogov/internal/envelope"
	"autogov/internal/gate"
	"autogov/internal/scheduler"
	"autogov/internal/task"
	"autogov/internal/telemetry"
)

// #region types

// EventType names the kinds of recorded events a trace can carry.
type EventType string

const (
	EventSignal   EventType = "signal"   // trust/consistency sample into the envelope
	EventOutcome  EventType = "outcome"  // revision outcome, triggers a gate pass
	EventSubmit   EventType = "submit"   // admission attempt at a given risk level
	EventFreeze   EventType = "freeze"   // operator veto
	EventUnfreeze EventType = "unfreeze" // veto release
)

// Event is one recorded governance event. AtMs is the offset from the start
// of the trace.
type Event struct {
	AtMs int64
	Type EventType

	// signal
	Trust       float64
	Consistency float64

	// outcome
	Class telemetry.OutcomeClass

	// submit
	Risk task.RiskLevel
}

// ReplayConfig bundles the component configs for a replay run.
type ReplayConfig struct {
	Envelope  envelope.Config
	Gate      gate.Config
	Scheduler scheduler.Config
}

// DefaultReplayConfig returns the production defaults for all stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Envelope:  envelope.DefaultConfig(),
		Gate:      gate.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
	}
}

// Result captures the system reading after one event is absorbed.
type Result struct {
	Index     int
	Type      EventType
	State     envelope.State
	Score     float64
	Cap       float64
	Effective float64

	// submit events
	Admitted bool

	// outcome events
	GateApplied bool
}

// Summary aggregates one replay run.
type Summary struct {
	Events         int
	Transitions    int
	Admitted       int
	Rejected       int
	FinalState     envelope.State
	FinalEffective float64
}

// #endregion types

// #region outcome-window

// outcomeWindow is the in-memory stand-in for the telemetry store's outcome
// history during replay.
type outcomeWindow struct {
	outcomes []telemetry.RevisionOutcome
}

// RecentOutcomes returns up to n outcomes, most recent first.
func (w *outcomeWindow) RecentOutcomes(runID string, n int) ([]telemetry.RevisionOutcome, error) {
	if n > len(w.outcomes) {
		n = len(w.outcomes)
	}
	out := make([]telemetry.RevisionOutcome, 0, n)
	for i := len(w.outcomes) - 1; i >= len(w.outcomes)-n; i-- {
		out = append(out, w.outcomes[i])
	}
	return out, nil
}

// #endregion outcome-window

// #region replay

// probeBody is the task body used for admission probes; replayed submits
// are never ticked, so it never runs.
func probeBody(ctx context.Context, tc task.Context) error { return nil }

// Replay runs events through a fresh envelope, gate, and scheduler. The
// trace clock starts at the Unix epoch; only offsets matter.
func Replay(events []Event, cfg ReplayConfig) ([]Result, Summary) {
	base := time.Unix(0, 0)

	env := envelope.New(cfg.Envelope, base)
	transitions := 0
	env.OnTransition(func(envelope.Transition) { transitions++ })

	window := &outcomeWindow{}
	g := gate.New(window, env, cfg.Gate)
	sched := scheduler.New(cfg.Scheduler, env)

	results := make([]Result, 0, len(events))
	var sum Summary

	for i, ev := range events {
		now := base.Add(time.Duration(ev.AtMs) * time.Millisecond)
		r := Result{Index: i, Type: ev.Type}

		switch ev.Type {
		case EventSignal:
			env.Tick(now, ev.Trust, ev.Consistency)

		case EventOutcome:
			window.outcomes = append(window.outcomes, telemetry.RevisionOutcome{Class: ev.Class})
			gr, err := g.Evaluate("replay", 0)
			if err == nil {
				r.GateApplied = gr.Applied
			}

		case EventSubmit:
			t := task.Task{
				Kind:      task.KindAction,
				Risk:      ev.Risk,
				Priority:  1,
				Tag:       "replay-probe",
				CreatedAt: now,
				Exec:      probeBody,
			}
			if _, err := sched.Submit(t); err == nil {
				r.Admitted = true
				sum.Admitted++
			} else {
				sum.Rejected++
			}

		case EventFreeze:
			env.Freeze(now)

		case EventUnfreeze:
			env.Unfreeze(now)
		}

		snap := env.Snapshot()
		r.State = snap.State
		r.Score = snap.Score
		r.Cap = snap.Cap
		r.Effective = snap.Effective
		results = append(results, r)
	}

	final := env.Snapshot()
	sum.Events = len(events)
	sum.Transitions = transitions
	sum.FinalState = final.State
	sum.FinalEffective = final.Effective
	return results, sum
}

// #endregion replay

// Package governor wires the telemetry store, autonomy envelope, task
// scheduler, signal producer, outcome evaluator, reputation gate, and the
// recurring-task producer into one running system.
package governor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"autogov/internal/config"
	"autogov/internal/cron"
	"autogov/internal/envelope"
	"autogov/internal/evaluator"
	"autogov/internal/gate"
	"autogov/internal/scheduler"
	"autogov/internal/signals"
	"autogov/internal/task"
	"autogov/internal/telemetry"
)

// #region governor

// Governor owns one run of the governed agent core.
type Governor struct {
	cfg   config.Config
	runID string

	store    *telemetry.Store
	env      *envelope.Envelope
	sched    *scheduler.Scheduler
	producer *signals.Producer
	eval     *evaluator.Evaluator
	gate     *gate.Gate
	cron     *cron.Producer

	bodies map[string]task.ExecFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a governor from config. The telemetry store is opened here;
// Close releases it.
func New(cfg config.Config) (*Governor, error) {
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	store, err := telemetry.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open telemetry store: %w", err)
	}

	env := envelope.New(cfg.Envelope, time.Now())
	env.OnTransition(func(t envelope.Transition) {
		if err := store.LogEnvelopeTransition(telemetry.EnvelopeTransition{
			RunID: runID,
			From:  string(t.From),
			To:    string(t.To),
			Score: t.Score,
			Cap:   t.Cap,
			TsMs:  telemetry.ToMs(t.At),
		}); err != nil {
			log.Printf("[GOV] envelope audit write failed: %v", err)
		}
	})

	sched := scheduler.New(cfg.Scheduler, env)
	producer := signals.NewProducer(cfg.Signals)
	sched.OnPostExec(producer.ObserveTask)

	g := &Governor{
		cfg:      cfg,
		runID:    runID,
		store:    store,
		env:      env,
		sched:    sched,
		producer: producer,
		eval:     evaluator.New(store, cfg.Evaluator),
		gate:     gate.New(store, env, cfg.Gate),
		cron:     cron.NewProducer(sched, cfg.CronInterval()),
		bodies:   make(map[string]task.ExecFunc),
	}
	return g, nil
}

// RunID returns the identifier tying this run's telemetry together.
func (g *Governor) RunID() string { return g.runID }

// Close releases the telemetry store. Call after Stop.
func (g *Governor) Close() error { return g.store.Close() }

// #endregion governor

// #region schedules

// SetScheduleBody binds an execution body to a config-declared schedule name.
// Must be called before Start. Schedules without a bound body get the
// built-in reflection body.
func (g *Governor) SetScheduleBody(name string, fn task.ExecFunc) {
	g.bodies[name] = fn
}

// reflectionBody is the default body for config-declared schedules: it
// records the current autonomy level as a motivation sample.
func (g *Governor) reflectionBody(ctx context.Context, tc task.Context) error {
	snap := g.env.Snapshot()
	return g.store.InsertMotivation(telemetry.MotivationSample{
		RunID:     g.runID,
		TsMs:      telemetry.ToMs(tc.Timestamp),
		Drive:     "reflection",
		Intensity: snap.Effective,
	})
}

// registerSchedules turns config schedule specs into cron entries.
func (g *Governor) registerSchedules() error {
	for _, spec := range g.cfg.Schedules {
		body, ok := g.bodies[spec.Name]
		if !ok {
			body = g.reflectionBody
		}
		err := g.cron.Add(cron.Schedule{
			Name:     spec.Name,
			Expr:     spec.Expr,
			Kind:     task.Kind(spec.Kind),
			Risk:     task.ParseRiskLevel(spec.Risk),
			Priority: spec.Priority,
			Tag:      spec.Tag,
			Params:   spec.Params,
			Exec:     body,
		})
		if err != nil {
			return fmt.Errorf("register schedule: %w", err)
		}
	}
	return nil
}

// #endregion schedules

// #region lifecycle

// Start launches the run loops: scheduler ticks, signal sampling into the
// envelope, and the evaluator + gate pass. Blocks until loops are started,
// not until they finish.
func (g *Governor) Start(ctx context.Context) error {
	if err := g.registerSchedules(); err != nil {
		return err
	}

	ctx, g.cancel = context.WithCancel(ctx)

	g.wg.Add(1)
	go g.tickLoop(ctx)

	g.wg.Add(1)
	go g.signalLoop(ctx)

	g.wg.Add(1)
	go g.evaluateLoop(ctx)

	g.cron.Start(ctx)

	log.Printf("[GOV] started run=%s db=%s", g.runID, g.cfg.DBPath)
	return nil
}

// Stop shuts down the loops and waits for in-flight task bodies.
func (g *Governor) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.cron.Stop()
	g.wg.Wait()
	g.sched.Wait()
	log.Printf("[GOV] stopped run=%s", g.runID)
}

func (g *Governor) tickLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.sched.Tick(now)
		}
	}
}

// signalLoop samples trust/consistency, advances the envelope, and records
// the sample so the evaluator has telemetry to judge revisions against.
func (g *Governor) signalLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cfg.SignalInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sample := g.producer.Produce(now)
			g.env.Tick(now, sample.Trust, sample.Consistency)

			if err := g.store.InsertMetric(telemetry.MetricSample{
				RunID:     g.runID,
				TsMs:      telemetry.ToMs(now),
				Trust:     sample.Trust,
				ErrorRate: 1 - sample.Trust,
			}); err != nil {
				log.Printf("[GOV] metric write failed: %v", err)
			}
		}
	}
}

func (g *Governor) evaluateLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cfg.EvaluateInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := g.eval.RunPass(g.runID, now); err != nil {
				log.Printf("[GOV] evaluator pass failed: %v", err)
			}
			if _, err := g.gate.Evaluate(g.runID, g.cfg.GateWindow); err != nil {
				log.Printf("[GOV] gate evaluation failed: %v", err)
			}
		}
	}
}

// #endregion lifecycle

// #region api

// Submit admits a task through the scheduler.
func (g *Governor) Submit(t task.Task) (task.ID, error) { return g.sched.Submit(t) }

// Cancel cancels a task.
func (g *Governor) Cancel(id task.ID) error { return g.sched.Cancel(id) }

// Suspend parks a pending task.
func (g *Governor) Suspend(id task.ID) error { return g.sched.Suspend(id) }

// Resume returns a suspended task to pending.
func (g *Governor) Resume(id task.ID) error { return g.sched.Resume(id) }

// Get returns a copy of a task.
func (g *Governor) Get(id task.ID) (task.Task, error) { return g.sched.Get(id) }

// Stats returns scheduler counts.
func (g *Governor) Stats() scheduler.Stats { return g.sched.Stats() }

// Snapshot returns the current envelope reading.
func (g *Governor) Snapshot() envelope.Snapshot { return g.env.Snapshot() }

// Freeze latches the envelope; an operator veto.
func (g *Governor) Freeze() { g.env.Freeze(time.Now()) }

// Unfreeze releases the veto. The envelope re-enters through Tighten.
func (g *Governor) Unfreeze() { g.env.Unfreeze(time.Now()) }

// RecordRevision registers a self-revision for later outcome evaluation and
// returns its id. The revision is judged once its evaluation window elapses.
func (g *Governor) RecordRevision(deltaJSON, driver string, preMagnitude, postMagnitude float64) (string, error) {
	rev := telemetry.SelfRevision{
		ID:            uuid.NewString(),
		RunID:         g.runID,
		AppliedAtMs:   telemetry.ToMs(time.Now()),
		DeltaJSON:     deltaJSON,
		Driver:        driver,
		PreMagnitude:  preMagnitude,
		PostMagnitude: postMagnitude,
	}
	if err := g.store.InsertRevision(rev); err != nil {
		return "", fmt.Errorf("record revision: %w", err)
	}
	log.Printf("[GOV] revision %s recorded driver=%s", rev.ID, driver)
	return rev.ID, nil
}

// RecordReward records a reward event for evaluation windows.
func (g *Governor) RecordReward(magnitude float64) error {
	return g.store.InsertReward(telemetry.RewardEvent{
		RunID:     g.runID,
		TsMs:      telemetry.ToMs(time.Now()),
		Magnitude: magnitude,
	})
}

// Outcomes returns the most recent n revision outcomes.
func (g *Governor) Outcomes(n int) ([]telemetry.RevisionOutcome, error) {
	return g.store.RecentOutcomes(g.runID, n)
}

// EnvelopeHistory returns the most recent envelope transitions.
func (g *Governor) EnvelopeHistory(limit int) ([]telemetry.EnvelopeTransition, error) {
	return g.store.EnvelopeTransitions(g.runID, limit)
}

// #endregion api

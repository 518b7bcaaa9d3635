// Package scheduler admits, orders, and executes tasks under the autonomy
// envelope. Admission, lifecycle transitions, and selection are serialized
// behind one mutex; task bodies run on a bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"autogov/internal/envelope"
	"autogov/internal/task"
)

// #region interfaces

// EnvelopeReader is the scheduler's read-only view of the autonomy envelope.
// This is the enforcement point: every admission consults it.
type EnvelopeReader interface {
	Snapshot() envelope.Snapshot
}

// PreExecFunc runs just before a task body, with a copy of the task.
type PreExecFunc func(t task.Task, tc task.Context)

// PostExecFunc runs after a task reaches a terminal state. err is nil on
// success, the body's error on failure, and ErrDeadlineExceeded on auto-fail.
type PostExecFunc func(t task.Task, err error)

// #endregion interfaces

// #region config

// Config holds scheduler tuning knobs.
type Config struct {
	AgingRatePerSec float64 `yaml:"aging_rate_per_sec"` // priority points added per second waited
	MaxPriority     float64 `yaml:"max_priority"`       // aging ceiling and deadline-promotion value
	DeadlineSlackMs int64   `yaml:"deadline_slack_ms"`  // promote when deadline - now falls below this
	FailExpired     bool    `yaml:"fail_expired"`       // auto-fail pending tasks whose deadline passed
	HighRiskFloor   float64 `yaml:"high_risk_floor"`    // minimum effective autonomy for High risk
	Workers         int     `yaml:"workers"`            // worker pool size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AgingRatePerSec: 1.0,
		MaxPriority:     100.0,
		DeadlineSlackMs: 5000,
		FailExpired:     true,
		HighRiskFloor:   0.6,
		Workers:         4,
	}
}

// #endregion config

// #region stats

// Stats is a snapshot of task counts. Terminal counts are cumulative and
// survive Reap, so they are monotonically non-decreasing.
type Stats struct {
	Pending   int
	Scheduled int
	Running   int
	Suspended int
	Completed int
	Cancelled int
	Failed    int
}

// #endregion stats

// #region entry

// entry is the scheduler-owned state for one task.
type entry struct {
	t         task.Task
	exec      task.ExecFunc
	effective float64
	ctx       context.Context
	cancel    context.CancelFunc
}

// #endregion entry

// #region scheduler

// Scheduler is the single writer to all task tables.
type Scheduler struct {
	mu  sync.Mutex
	cfg Config
	env EnvelopeReader

	nextID    task.ID
	entries   map[task.ID]*entry
	completed map[task.ID]bool // ids that reached Completed; survives Reap so dependents stay runnable

	cycle    int64
	lastTick time.Time

	slots chan struct{}
	wg    sync.WaitGroup

	preExec  []PreExecFunc
	postExec []PostExecFunc

	doneCompleted int
	doneCancelled int
	doneFailed    int
}

// New creates a scheduler gated by the given envelope.
func New(cfg Config, env EnvelopeReader) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Scheduler{
		cfg:       cfg,
		env:       env,
		entries:   make(map[task.ID]*entry),
		completed: make(map[task.ID]bool),
		slots:     make(chan struct{}, cfg.Workers),
	}
}

// OnPreExec registers a callback invoked before each task body.
func (s *Scheduler) OnPreExec(fn PreExecFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preExec = append(s.preExec, fn)
}

// OnPostExec registers a callback invoked after each terminal transition.
func (s *Scheduler) OnPostExec(fn PostExecFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postExec = append(s.postExec, fn)
}

// #endregion scheduler

// #region submit

// Submit admits a task. Admission is gated by the envelope:
// Low risk is always admitted, Medium requires the envelope not be in
// Tighten (or Freeze), High requires Expand with effective autonomy at or
// above the configured floor. Dependency cycles are rejected here and the
// task never enters the queue.
func (s *Scheduler) Submit(t task.Task) (task.ID, error) {
	if t.Exec == nil {
		return 0, fmt.Errorf("submit %q: %w", t.Tag, task.ErrNilExec)
	}

	snap := s.env.Snapshot()
	if err := admit(t.Risk, snap, s.cfg.HighRiskFloor); err != nil {
		log.Printf("[SCHED] reject %q risk=%s state=%s effective=%.3f",
			t.Tag, t.Risk, snap.State, snap.Effective)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID + 1
	if cyclic(id, t.DependsOn, s.entries) {
		return 0, fmt.Errorf("submit %q: %w", t.Tag, task.ErrCyclicDependency)
	}
	s.nextID = id

	t.ID = id
	t.Status = task.StatusPending
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.entries[id] = &entry{
		t:         t,
		exec:      t.Exec,
		effective: t.Priority,
		ctx:       ctx,
		cancel:    cancel,
	}
	return id, nil
}

// admit applies the envelope admission rule for one risk level.
func admit(risk task.RiskLevel, snap envelope.Snapshot, floor float64) error {
	switch risk {
	case task.RiskLow:
		return nil
	case task.RiskMedium:
		// Freeze admits only low-risk work.
		if snap.State == envelope.StateTighten || snap.State == envelope.StateFreeze {
			return task.ErrAdmissionDenied
		}
		return nil
	default:
		if snap.State != envelope.StateExpand || snap.Effective < floor {
			return task.ErrAdmissionDenied
		}
		return nil
	}
}

// cyclic walks the dependency graph from deps looking for newID. Dependencies
// may reference ids not yet submitted (producers submit out of order); a
// cycle is detected the moment the closing edge arrives.
func cyclic(newID task.ID, deps []task.ID, entries map[task.ID]*entry) bool {
	visited := make(map[task.ID]bool)
	stack := append([]task.ID(nil), deps...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == newID {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		if e, ok := entries[id]; ok {
			stack = append(stack, e.t.DependsOn...)
		}
	}
	return false
}

// #endregion submit

// #region lifecycle

// Cancel cancels a task. Pending, Scheduled, and Suspended tasks transition
// to Cancelled immediately; a Running task only has its cooperative
// cancellation flag set — the body decides when to stop.
func (s *Scheduler) Cancel(id task.ID) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("cancel %d: %w", id, task.ErrUnknownTask)
	}

	if e.t.Status == task.StatusRunning {
		e.cancel()
		s.mu.Unlock()
		return nil
	}

	if !task.CanTransition(e.t.Status, task.StatusCancelled) {
		s.mu.Unlock()
		return fmt.Errorf("cancel %d from %s: %w", id, e.t.Status, task.ErrInvalidStateTransition)
	}
	e.t.Status = task.StatusCancelled
	e.cancel()
	s.doneCancelled++
	s.mu.Unlock()

	log.Printf("[SCHED] task %d cancelled", id)
	return nil
}

// Suspend parks a Pending task. It keeps its dependencies and priority.
func (s *Scheduler) Suspend(id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("suspend %d: %w", id, task.ErrUnknownTask)
	}
	if e.t.Status != task.StatusPending {
		return fmt.Errorf("suspend %d from %s: %w", id, e.t.Status, task.ErrInvalidStateTransition)
	}
	e.t.Status = task.StatusSuspended
	return nil
}

// Resume returns a Suspended task to Pending.
func (s *Scheduler) Resume(id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("resume %d: %w", id, task.ErrUnknownTask)
	}
	if e.t.Status != task.StatusSuspended {
		return fmt.Errorf("resume %d from %s: %w", id, e.t.Status, task.ErrInvalidStateTransition)
	}
	e.t.Status = task.StatusPending
	return nil
}

// #endregion lifecycle

// #region tick

// Tick is the single entry point for time advancement. Under one critical
// section it ages pending priorities, promotes or fails deadline-pressed
// tasks, and selects at most one runnable task for dispatch. Returns the
// dispatched id, or ok=false when nothing was dispatched.
func (s *Scheduler) Tick(now time.Time) (task.ID, bool) {
	var expired []task.Task

	s.mu.Lock()
	s.cycle++
	var delta time.Duration
	if !s.lastTick.IsZero() {
		delta = now.Sub(s.lastTick)
	}
	s.lastTick = now

	slack := time.Duration(s.cfg.DeadlineSlackMs) * time.Millisecond
	for _, e := range s.entries {
		if e.t.Status != task.StatusPending {
			continue
		}

		wait := now.Sub(e.t.CreatedAt).Seconds()
		if wait < 0 {
			wait = 0
		}
		eff := e.t.Priority + s.cfg.AgingRatePerSec*wait
		if eff > s.cfg.MaxPriority {
			eff = s.cfg.MaxPriority
		}

		if !e.t.Deadline.IsZero() {
			switch {
			case now.After(e.t.Deadline) && s.cfg.FailExpired:
				e.t.Status = task.StatusFailed
				e.t.Err = task.ErrDeadlineExceeded.Error()
				s.doneFailed++
				expired = append(expired, e.t)
				continue
			case e.t.Deadline.Sub(now) <= slack:
				eff = s.cfg.MaxPriority
			}
		}
		e.effective = eff
	}

	var best *entry
	for _, e := range s.entries {
		if e.t.Status != task.StatusPending || !s.depsMetLocked(e) {
			continue
		}
		if best == nil || better(e, best) {
			best = e
		}
	}

	var dispatched task.ID
	ok := false
	if best != nil {
		select {
		case s.slots <- struct{}{}:
			best.t.Status = task.StatusScheduled
			tc := task.Context{
				Timestamp:  now,
				Cycle:      s.cycle,
				DeltaTime:  delta,
				Parameters: best.t.Params,
				Tag:        best.t.Tag,
			}
			s.wg.Add(1)
			go s.run(best, tc)
			dispatched = best.t.ID
			ok = true
		default:
			// Worker pool saturated; selection retries next tick.
		}
	}

	callbacks := append([]PostExecFunc(nil), s.postExec...)
	s.mu.Unlock()

	for _, t := range expired {
		log.Printf("[SCHED] task %d failed: deadline exceeded", t.ID)
		for _, fn := range callbacks {
			fn(t, task.ErrDeadlineExceeded)
		}
	}
	return dispatched, ok
}

// depsMetLocked reports whether every dependency has reached Completed.
// Caller holds the lock.
func (s *Scheduler) depsMetLocked(e *entry) bool {
	for _, dep := range e.t.DependsOn {
		if !s.completed[dep] {
			return false
		}
	}
	return true
}

// better orders candidates: highest effective priority, then earliest
// created-at, then lowest id. Deterministic given a fixed aging snapshot.
func better(a, b *entry) bool {
	if a.effective != b.effective {
		return a.effective > b.effective
	}
	if !a.t.CreatedAt.Equal(b.t.CreatedAt) {
		return a.t.CreatedAt.Before(b.t.CreatedAt)
	}
	return a.t.ID < b.t.ID
}

// #endregion tick

// #region run

// run executes one task body on a worker slot. Failures and panics are
// isolated to the task; they never take down the scheduler loop.
func (s *Scheduler) run(e *entry, tc task.Context) {
	defer s.wg.Done()
	defer func() { <-s.slots }()

	s.mu.Lock()
	if e.t.Status != task.StatusScheduled {
		// Cancelled between dispatch and start; never execute.
		s.mu.Unlock()
		return
	}
	e.t.Status = task.StatusRunning
	snapshot := e.t
	ctx := e.ctx
	pre := append([]PreExecFunc(nil), s.preExec...)
	post := append([]PostExecFunc(nil), s.postExec...)
	s.mu.Unlock()

	for _, fn := range pre {
		fn(snapshot, tc)
	}

	err := runBody(ctx, e.exec, tc)

	s.mu.Lock()
	final := task.StatusCompleted
	switch {
	case ctx.Err() != nil:
		final = task.StatusCancelled
	case err != nil:
		final = task.StatusFailed
		e.t.Err = err.Error()
	}
	if task.CanTransition(e.t.Status, final) {
		e.t.Status = final
		switch final {
		case task.StatusCompleted:
			s.completed[e.t.ID] = true
			s.doneCompleted++
		case task.StatusCancelled:
			s.doneCancelled++
		case task.StatusFailed:
			s.doneFailed++
		}
	}
	snapshot = e.t
	s.mu.Unlock()

	if err != nil {
		log.Printf("[SCHED] task %d %s: %v", snapshot.ID, snapshot.Status, err)
	}
	for _, fn := range post {
		fn(snapshot, err)
	}
}

// runBody invokes the task body with panic isolation.
func runBody(ctx context.Context, exec task.ExecFunc, tc task.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return exec(ctx, tc)
}

// #endregion run

// #region queries

// Get returns a copy of the task with the given id.
func (s *Scheduler) Get(id task.ID) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return task.Task{}, fmt.Errorf("get %d: %w", id, task.ErrUnknownTask)
	}
	return e.t, nil
}

// Stats returns current counts. Terminal counts are cumulative.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Completed: s.doneCompleted,
		Cancelled: s.doneCancelled,
		Failed:    s.doneFailed,
	}
	for _, e := range s.entries {
		switch e.t.Status {
		case task.StatusPending:
			st.Pending++
		case task.StatusScheduled:
			st.Scheduled++
		case task.StatusRunning:
			st.Running++
		case task.StatusSuspended:
			st.Suspended++
		}
	}
	return st
}

// Reap removes terminal tasks from the active tables and returns how many
// were collected. Completed ids stay known so dependents remain runnable.
func (s *Scheduler) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.entries {
		if e.t.Status.Terminal() {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Wait blocks until all in-flight task bodies have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// #endregion queries

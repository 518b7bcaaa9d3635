// Package cron submits recurring tasks on cron schedules. Reflection and
// maintenance work enters the scheduler this way; everything it submits
// still goes through normal envelope admission.
package cron

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"autogov/internal/task"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// #region types

// Schedule describes one recurring task.
type Schedule struct {
	Name     string
	Expr     string // 5-field cron expression
	Kind     task.Kind
	Risk     task.RiskLevel
	Priority float64
	Tag      string
	Params   map[string]string
	Exec     task.ExecFunc
}

// Submitter is the slice of the scheduler the producer needs.
type Submitter interface {
	Submit(t task.Task) (task.ID, error)
}

type entry struct {
	spec    Schedule
	sched   cronlib.Schedule
	nextRun time.Time
}

// #endregion types

// #region producer

// Producer fires due schedules into the task scheduler.
type Producer struct {
	sub      Submitter
	interval time.Duration

	mu      sync.Mutex
	entries []*entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProducer creates a producer submitting into sub, checking for due
// schedules every interval (default one minute).
func NewProducer(sub Submitter, interval time.Duration) *Producer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Producer{sub: sub, interval: interval}
}

// Add registers a schedule. The expression is validated here so a bad config
// fails at startup, not at fire time.
func (p *Producer) Add(s Schedule) error {
	if s.Exec == nil {
		return fmt.Errorf("schedule %q: %w", s.Name, task.ErrNilExec)
	}
	sched, err := cronParser.Parse(s.Expr)
	if err != nil {
		return fmt.Errorf("schedule %q: parse %q: %w", s.Name, s.Expr, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, &entry{
		spec:    s,
		sched:   sched,
		nextRun: sched.Next(time.Now()),
	})
	return nil
}

// #endregion producer

// #region loop

// Start begins the producer loop in a background goroutine.
func (p *Producer) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)
	log.Printf("[CRON] producer started interval=%s schedules=%d", p.interval, len(p.entries))
}

// Stop cancels the loop and waits for it to exit.
func (p *Producer) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	log.Printf("[CRON] producer stopped")
}

func (p *Producer) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Fire(time.Now())
		}
	}
}

// #endregion loop

// #region fire

// Fire submits every schedule that is due at now and advances its next run.
// Admission denials are expected under a narrow envelope; the schedule just
// fires again at its next due time.
func (p *Producer) Fire(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	fired := 0
	for _, e := range p.entries {
		if e.nextRun.After(now) {
			continue
		}
		e.nextRun = e.sched.Next(now)

		t := task.Task{
			Kind:     e.spec.Kind,
			Priority: e.spec.Priority,
			Risk:     e.spec.Risk,
			Tag:      e.spec.Tag,
			Params:   e.spec.Params,
			Exec:     e.spec.Exec,
		}
		id, err := p.sub.Submit(t)
		if err != nil {
			log.Printf("[CRON] schedule %q not admitted: %v", e.spec.Name, err)
			continue
		}
		log.Printf("[CRON] schedule %q fired task=%d next=%s", e.spec.Name, id, e.nextRun.Format(time.RFC3339))
		fired++
	}
	return fired
}

// NextRunTime parses expr and returns the next run time after the given time.
func NextRunTime(expr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

// #endregion fire

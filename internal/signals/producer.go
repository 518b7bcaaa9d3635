// Package signals derives the trust and consistency signals the autonomy
// envelope consumes. Evidence is the stream of task outcomes: trust is the
// windowed success ratio, consistency is one minus the scaled spread of
// those outcomes.
package signals

import (
	"sync"
	"time"

	"autogov/internal/task"
)

// #region producer

type observation struct {
	at      time.Time
	success bool
}

// Producer folds task outcomes into envelope signals.
type Producer struct {
	mu  sync.Mutex
	cfg Config
	obs []observation
}

// NewProducer creates a Producer.
func NewProducer(cfg Config) *Producer {
	return &Producer{cfg: cfg}
}

// #endregion producer

// #region observe

// Observe records one outcome.
func (p *Producer) Observe(now time.Time, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.obs = append(p.obs, observation{at: now, success: success})
}

// ObserveTask adapts the scheduler's post-exec callback. Cancellations are
// not evidence either way and are ignored.
func (p *Producer) ObserveTask(t task.Task, err error) {
	switch t.Status {
	case task.StatusCompleted:
		p.Observe(time.Now(), true)
	case task.StatusFailed:
		p.Observe(time.Now(), false)
	}
}

// #endregion observe

// #region produce

// Produce computes the current sample, discarding observations older than
// the window. With fewer than MinSamples observations it returns Neutral.
func (p *Producer) Produce(now time.Time) Sample {
	window := time.Duration(p.cfg.WindowMs) * time.Millisecond

	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.obs[:0]
	for _, o := range p.obs {
		if now.Sub(o.at) <= window {
			kept = append(kept, o)
		}
	}
	p.obs = kept

	if len(p.obs) < p.cfg.MinSamples {
		return Neutral
	}

	var successes int
	for _, o := range p.obs {
		if o.success {
			successes++
		}
	}
	trust := float64(successes) / float64(len(p.obs))

	// Bernoulli variance of the outcome stream: 0 when outcomes agree,
	// 0.25 when they are an even split.
	variance := trust * (1 - trust)
	consistency := clamp(1 - p.cfg.SpreadScale*variance)

	return Sample{Trust: clamp(trust), Consistency: consistency}
}

// #endregion produce

// #region helpers

// clamp restricts v to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers

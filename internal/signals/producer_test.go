package signals

import (
	"testing"
	"time"

	"autogov/internal/task"
)

var t0 = time.Unix(1700000000, 0)

func at(ms int64) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func TestNeutralWithoutEvidence(t *testing.T) {
	p := NewProducer(DefaultConfig())
	if got := p.Produce(t0); got != Neutral {
		t.Fatalf("expected neutral sample, got %+v", got)
	}

	p.Observe(at(0), true)
	p.Observe(at(10), true)
	// Still below MinSamples (3).
	if got := p.Produce(at(20)); got != Neutral {
		t.Fatalf("expected neutral below min samples, got %+v", got)
	}
}

func TestAllSuccesses(t *testing.T) {
	p := NewProducer(DefaultConfig())
	for i := int64(0); i < 5; i++ {
		p.Observe(at(i*100), true)
	}
	got := p.Produce(at(600))
	if got.Trust != 1.0 {
		t.Fatalf("expected trust 1.0, got %f", got.Trust)
	}
	if got.Consistency != 1.0 {
		t.Fatalf("uniform outcomes should give consistency 1.0, got %f", got.Consistency)
	}
}

func TestAllFailures(t *testing.T) {
	p := NewProducer(DefaultConfig())
	for i := int64(0); i < 5; i++ {
		p.Observe(at(i*100), false)
	}
	got := p.Produce(at(600))
	if got.Trust != 0 {
		t.Fatalf("expected trust 0, got %f", got.Trust)
	}
	if got.Consistency != 1.0 {
		t.Fatalf("uniform failures are still consistent, got %f", got.Consistency)
	}
}

func TestMixedOutcomesLowerConsistency(t *testing.T) {
	p := NewProducer(DefaultConfig())
	for i := int64(0); i < 4; i++ {
		p.Observe(at(i*100), i%2 == 0)
	}
	got := p.Produce(at(500))
	if got.Trust != 0.5 {
		t.Fatalf("expected trust 0.5, got %f", got.Trust)
	}
	// Even split: variance 0.25, scale 4 -> consistency 0.
	if got.Consistency != 0 {
		t.Fatalf("expected consistency 0 for even split, got %f", got.Consistency)
	}
}

func TestWindowPrunesOldObservations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowMs = 1000
	p := NewProducer(cfg)

	for i := int64(0); i < 5; i++ {
		p.Observe(at(i*10), false)
	}
	// All failures fall out of the window; only fresh successes remain.
	for i := int64(0); i < 3; i++ {
		p.Observe(at(2000+i*10), true)
	}

	got := p.Produce(at(2100))
	if got.Trust != 1.0 {
		t.Fatalf("stale failures should be pruned, got trust %f", got.Trust)
	}
}

func TestObserveTaskIgnoresCancellations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 1
	p := NewProducer(cfg)

	p.ObserveTask(task.Task{Status: task.StatusCancelled}, nil)
	if got := p.Produce(time.Now()); got != Neutral {
		t.Fatalf("cancellation counted as evidence: %+v", got)
	}

	p.ObserveTask(task.Task{Status: task.StatusCompleted}, nil)
	if got := p.Produce(time.Now()); got.Trust != 1.0 {
		t.Fatalf("expected trust 1.0 after completion, got %f", got.Trust)
	}
}

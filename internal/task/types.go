package task

import (
	"context"
	"time"
)

// #region id

// ID is a scheduler-assigned, monotonically increasing task identifier.
type ID int64

// #endregion id

// #region kind

// Kind classifies what layer of the agent a task belongs to.
type Kind string

const (
	KindGoal       Kind = "goal"
	KindPlan       Kind = "plan"
	KindAction     Kind = "action"
	KindReflection Kind = "reflection"
)

// #endregion kind

// #region risk

// RiskLevel orders tasks by how much autonomy their execution requires.
// Higher values need a wider envelope to be admitted.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

// String returns the lowercase name of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseRiskLevel maps a lowercase name back to a RiskLevel.
// Unknown names map to RiskHigh so a typo never widens admission.
func ParseRiskLevel(s string) RiskLevel {
	switch s {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskHigh
	}
}

// #endregion risk

// #region status

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// legalTransitions defines the legal lifecycle moves.
// Each key is a source status, the value is the set of valid targets.
var legalTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusScheduled: true,
		StatusSuspended: true,
		StatusCancelled: true,
		StatusFailed:    true, // deadline auto-fail only
	},
	StatusScheduled: {
		StatusRunning:   true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true, // cooperative cancellation observed by the body
	},
	StatusSuspended: {
		StatusPending:   true,
		StatusCancelled: true,
	},
}

// CanTransition checks whether from → to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	targets, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// #endregion status

// #region context

// Context is the immutable snapshot handed to a task body at execution time.
type Context struct {
	Timestamp  time.Time
	Cycle      int64
	DeltaTime  time.Duration
	Parameters map[string]string
	Tag        string
}

// #endregion context

// #region exec

// ExecFunc is the injected execution behavior of a task. The scheduler cancels
// ctx on Cancel; the body is responsible for observing it.
type ExecFunc func(ctx context.Context, tc Context) error

// #endregion exec

// #region task

// Task is a unit of schedulable work. Once submitted it is owned exclusively
// by the scheduler; callers only ever see copies.
type Task struct {
	ID        ID
	Kind      Kind
	Priority  float64
	Risk      RiskLevel
	Status    Status
	DependsOn []ID
	Deadline  time.Time // zero means no deadline
	CreatedAt time.Time
	Params    map[string]string
	Tag       string
	Exec      ExecFunc
	Err       string // populated on failure
}

// #endregion task

// #region constructors

// NewGoal builds a Goal task with the given body.
func NewGoal(tag string, priority float64, risk RiskLevel, exec ExecFunc) Task {
	return Task{Kind: KindGoal, Tag: tag, Priority: priority, Risk: risk, Exec: exec}
}

// NewPlan builds a Plan task with the given body.
func NewPlan(tag string, priority float64, risk RiskLevel, exec ExecFunc) Task {
	return Task{Kind: KindPlan, Tag: tag, Priority: priority, Risk: risk, Exec: exec}
}

// NewAction builds an Action task with the given body.
func NewAction(tag string, priority float64, risk RiskLevel, exec ExecFunc) Task {
	return Task{Kind: KindAction, Tag: tag, Priority: priority, Risk: risk, Exec: exec}
}

// NewReflection builds a low-risk Reflection task with the given body.
func NewReflection(tag string, priority float64, exec ExecFunc) Task {
	return Task{Kind: KindReflection, Tag: tag, Priority: priority, Risk: RiskLow, Exec: exec}
}

// #endregion constructors

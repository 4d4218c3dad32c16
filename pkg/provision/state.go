package provision

import "time"

type Phase int

const (
	Idle Phase = iota
	Running
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of a planner. Step is the index of the current (or
// failed) step; Cause is set only in the Failed phase.
type State struct {
	Phase Phase
	Step  int
	Cause error
}

type Outcome string

const (
	OutcomeRan     Outcome = "ran"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// StepResult records what happened to one step of an executed plan.
type StepResult struct {
	Index    int
	Method   string
	Title    string
	Outcome  Outcome
	CUDATag  string
	Duration time.Duration
}

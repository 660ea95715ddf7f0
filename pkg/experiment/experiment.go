package experiment

import (
	"fmt"
	"math"
	"time"
)

// Status is the experiment lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed" // terminal
)

// allowedTransitions encodes the lifecycle: draft starts, active and paused
// alternate, completed is terminal.
var allowedTransitions = map[Status][]Status{
	StatusDraft:  {StatusActive},
	StatusActive: {StatusPaused, StatusCompleted},
	StatusPaused: {StatusActive, StatusCompleted},
}

func transitionAllowed(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Variant is one arm of an experiment. Weights across an experiment's
// variants sum to 1.0.
type Variant struct {
	ID     string  `json:"id" yaml:"id"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Experiment is the definition document persisted under
// "experiment:config:<id>".
type Experiment struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name,omitempty" yaml:"name,omitempty"`
	Status            Status            `json:"status" yaml:"status"`
	Variants          []Variant         `json:"variants" yaml:"variants"`
	TrafficAllocation float64           `json:"traffic_allocation" yaml:"traffic_allocation"`
	Targeting         map[string]string `json:"targeting,omitempty" yaml:"targeting,omitempty"`
	StartDate         time.Time         `json:"start_date" yaml:"start_date"`
	EndDate           time.Time         `json:"end_date,omitzero" yaml:"end_date,omitempty"`
}

// weightTolerance absorbs float accumulation error in user-supplied weights.
const weightTolerance = 0.01

// Validate rejects definitions that violate the experiment invariants.
// Invalid definitions are never silently corrected.
func (e *Experiment) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}
	if len(e.Variants) < 2 {
		return ErrTooFewVariants
	}

	sum := 0.0
	for _, v := range e.Variants {
		if v.ID == "" {
			return fmt.Errorf("%w: variant without id", ErrInvalidDefinition)
		}
		if v.Weight < 0 {
			return fmt.Errorf("%w: negative weight on %q", ErrInvalidWeights, v.ID)
		}
		sum += v.Weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: got %.4f", ErrInvalidWeights, sum)
	}

	if e.TrafficAllocation < 0 || e.TrafficAllocation > 1 {
		return ErrInvalidAllocation
	}
	if !e.EndDate.IsZero() && !e.EndDate.After(e.StartDate) {
		return ErrInvalidDates
	}
	return nil
}

// Expired reports whether the experiment is past its end date.
func (e *Experiment) Expired(now time.Time) bool {
	return !e.EndDate.IsZero() && now.After(e.EndDate)
}

// targeted evaluates the targeting predicates: every required attribute must
// be present and equal. No predicates means everyone qualifies.
func (e *Experiment) targeted(attrs map[string]string) bool {
	for key, want := range e.Targeting {
		if attrs[key] != want {
			return false
		}
	}
	return true
}

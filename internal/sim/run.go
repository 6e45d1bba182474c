package sim

import "context"

// RunSummary describes how a driven run ended
type RunSummary struct {
	Steps      int        `json:"steps"`
	Terminated bool       `json:"terminated"`
	Final      *StepStats `json:"final"`
}

// Run hands the initial state to the collectors as step 0, then ticks until
// the simulation stops, maxSteps ticks have run (maxSteps <= 0 means no cap),
// or ctx is cancelled. The neutral-exhaustion stop is not guaranteed for every
// parameter set, so callers normally pass a cap.
func Run(ctx context.Context, s *Simulation, maxSteps int) (*RunSummary, error) {
	if s.StepCount() == 0 {
		if err := s.Publish(); err != nil {
			return s.Summary(), err
		}
	}
	for s.Running() && (maxSteps <= 0 || s.StepCount() < maxSteps) {
		if err := ctx.Err(); err != nil {
			return s.Summary(), err
		}
		if _, err := s.Step(); err != nil {
			return s.Summary(), err
		}
	}
	return s.Summary(), nil
}

// Summary reports the run so far
func (s *Simulation) Summary() *RunSummary {
	return &RunSummary{
		Steps:      s.step,
		Terminated: !s.running,
		Final:      s.last,
	}
}

// Publish hands the latest statistics to the collectors again, typically the
// initial state before the first tick
func (s *Simulation) Publish() error {
	return s.collect(s.last)
}

package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvariantViolation marks programming errors such as a missing edge
// between two agents the graph reported as neighbours.
var ErrInvariantViolation = errors.New("invariant violation")

// Ratio is a quotient that is +Inf when its denominator is zero. It encodes
// as the JSON string "inf" in that case.
type Ratio float64

// NewRatio divides num by den, returning +Inf for a zero denominator
func NewRatio(num, den int) Ratio {
	if den == 0 {
		return Ratio(math.Inf(1))
	}
	return Ratio(float64(num) / float64(den))
}

// IsInf reports whether the ratio is the undefined sentinel
func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 0) }

func (r Ratio) String() string {
	if r.IsInf() {
		return "∞"
	}
	return fmt.Sprintf("%.2f", float64(r))
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.IsInf() {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(r))
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == `"inf"` {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decoding ratio: %w", err)
	}
	*r = Ratio(f)
	return nil
}

// Counts tallies agents by opinion and kind
type Counts struct {
	Conservative int `json:"conservative"`
	Progressive  int `json:"progressive"`
	Neutral      int `json:"neutral"`
	Humans       int `json:"humans"`
	Bots         int `json:"bots"`
}

// Total returns the number of agents counted
func (c Counts) Total() int { return c.Humans + c.Bots }

// CountAgents tallies a population
func CountAgents(agents []*Agent) Counts {
	var c Counts
	for _, a := range agents {
		switch a.Opinion {
		case Conservative:
			c.Conservative++
		case Progressive:
			c.Progressive++
		case Neutral:
			c.Neutral++
		}
		if a.Kind == Bot {
			c.Bots++
		} else {
			c.Humans++
		}
	}
	return c
}

// StepStats is everything the simulation exposes after a tick
type StepStats struct {
	Step          int           `json:"step"`
	Running       bool          `json:"running"`
	Counts        Counts        `json:"counts"`
	ConsProgRatio Ratio         `json:"cons_prog_ratio"`
	Clusters      ClusterReport `json:"clusters"`
	Interactions  []string      `json:"interactions,omitempty"`
}

// Collector receives the statistics of every observed tick
type Collector interface {
	Collect(stats *StepStats) error
}

// CollectorFunc adapts a function to Collector
type CollectorFunc func(stats *StepStats) error

func (f CollectorFunc) Collect(stats *StepStats) error { return f(stats) }

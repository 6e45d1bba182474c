package server

import (
	"context"
	"sync"
	"time"

	"echochamber/internal/graph"
	"echochamber/internal/sim"
)

// Live owns a simulation that is ticked in the background while handlers read it
type Live struct {
	mu  sync.Mutex
	sim *sim.Simulation
}

// NewLive wraps s. Collectors must already be registered on s.
func NewLive(s *sim.Simulation) *Live {
	return &Live{sim: s}
}

// State is a consistent snapshot of the live simulation
type State struct {
	Config sim.Config     `json:"config"`
	Stats  *sim.StepStats `json:"stats"`
	Agents []sim.Agent    `json:"agents"`
	Edges  []graph.Edge   `json:"edges"`
}

// State copies the current agents, ties and statistics
func (l *Live) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	agents := make([]sim.Agent, len(l.sim.Agents()))
	for i, a := range l.sim.Agents() {
		agents[i] = *a
	}
	return State{
		Config: l.sim.Config(),
		Stats:  l.sim.Latest(),
		Agents: agents,
		Edges:  l.sim.Graph().Edges(),
	}
}

// Analyze runs the polarization analysis on the current state
func (l *Live) Analyze(config *sim.AnalyzerConfig) *sim.AnalysisReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sim.Analyze(config)
}

// Step advances one tick
func (l *Live) Step() (*sim.StepStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sim.Step()
}

// Run publishes the initial state, then ticks every interval until the
// simulation stops, maxSteps ticks have run (<= 0 means no cap), or ctx ends.
func (l *Live) Run(ctx context.Context, interval time.Duration, maxSteps int) (*sim.RunSummary, error) {
	l.mu.Lock()
	if l.sim.StepCount() == 0 {
		if err := l.sim.Publish(); err != nil {
			l.mu.Unlock()
			return l.summary(), err
		}
	}
	l.mu.Unlock()

	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		l.mu.Lock()
		done := !l.sim.Running() || (maxSteps > 0 && l.sim.StepCount() >= maxSteps)
		l.mu.Unlock()
		if done {
			return l.summary(), nil
		}

		select {
		case <-ctx.Done():
			return l.summary(), ctx.Err()
		case <-ticker.C:
			if _, err := l.Step(); err != nil {
				return l.summary(), err
			}
		}
	}
}

func (l *Live) summary() *sim.RunSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sim.Summary()
}

// Package sim runs the echo-chamber opinion model: human and bot agents on a
// social graph push their leanings onto neighbours, ties fade as agents
// disengage, and every tick the network is partitioned into connected
// same-opinion clusters.
//
// A Simulation is single-threaded. Agents act one after another in a fresh
// shuffled order each tick, so an agent sees every change made earlier in the
// same tick. Statistics are computed only after all agents have acted.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"

	"echochamber/internal/graph"
	"echochamber/internal/logging"
)

// Config is the construction contract for a simulation
type Config struct {
	Nodes               int            `json:"nodes"`
	AvgDegree           float64        `json:"avg_degree"`
	ConservativeBots    int            `json:"conservative_bots"`
	ProgressiveBots     int            `json:"progressive_bots"`
	PositiveChance      float64        `json:"positive_chance"`
	BecomeNeutralChance float64        `json:"become_neutral_chance"`
	Seed                uint64         `json:"seed"`
	Topology            graph.Topology `json:"topology"`
	Rules               Rules          `json:"rules"`
}

// DefaultConfig mirrors the model's out-of-the-box parameters
func DefaultConfig() Config {
	return Config{
		Nodes:               10,
		AvgDegree:           3,
		ConservativeBots:    1,
		ProgressiveBots:     1,
		PositiveChance:      0.5,
		BecomeNeutralChance: 0.2,
		Seed:                42,
		Topology:            graph.TopologyErdosRenyi,
		Rules:               DefaultRules(),
	}
}

// Normalize clamps out-of-range values instead of rejecting them. Bot counts
// that together exceed the node count are split evenly across the nodes.
func (c Config) Normalize() Config {
	if c.Nodes < 0 {
		c.Nodes = 0
	}
	if c.AvgDegree < 0 {
		c.AvgDegree = 0
	}
	if c.ConservativeBots < 0 {
		c.ConservativeBots = 0
	}
	if c.ProgressiveBots < 0 {
		c.ProgressiveBots = 0
	}
	if c.ConservativeBots+c.ProgressiveBots > c.Nodes {
		c.ProgressiveBots = c.Nodes / 2
		c.ConservativeBots = c.Nodes - c.ProgressiveBots
	}
	c.PositiveChance = clampProb(c.PositiveChance)
	c.BecomeNeutralChance = clampProb(c.BecomeNeutralChance)
	if c.Topology != graph.TopologyPowerLaw {
		c.Topology = graph.TopologyErdosRenyi
	}
	c.Rules = c.Rules.normalize()
	return c
}

// Option configures a Simulation
type Option func(*Simulation)

// WithLogger sets the logger for tick and interaction tracing
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCollector registers a collector called after every tick
func WithCollector(c Collector) Option {
	return func(s *Simulation) { s.collectors = append(s.collectors, c) }
}

// WithBotAssignment places bots on the given nodes instead of sampling them.
// Ids out of range or already assigned are skipped.
func WithBotAssignment(conservative, progressive []int) Option {
	return func(s *Simulation) {
		s.assign = &botAssignment{conservative: conservative, progressive: progressive}
	}
}

// Simulation owns the graph and the agents and advances them tick by tick
type Simulation struct {
	cfg    Config
	graph  *graph.Graph
	agents []*Agent
	order  []*Agent

	shuffleRng *rand.Rand
	drawRng    *rand.Rand

	step    int
	running bool
	log     []string
	last    *StepStats

	assign     *botAssignment
	collectors []Collector
	logger     *slog.Logger
}

// Seeded streams: population setup, activation shuffle, interaction draws
const (
	streamSetup uint64 = iota + 1
	streamShuffle
	streamDraw
)

// New generates a graph for cfg and populates it
func New(cfg Config, opts ...Option) *Simulation {
	cfg = cfg.Normalize()
	setup := rand.New(rand.NewPCG(cfg.Seed, streamSetup))
	g := graph.Generate(cfg.Topology, cfg.Nodes, cfg.AvgDegree, setup)
	return build(cfg, g, setup, opts)
}

// NewWithGraph populates an existing graph. cfg.Nodes is taken from the graph.
func NewWithGraph(cfg Config, g *graph.Graph, opts ...Option) *Simulation {
	cfg.Nodes = g.Order()
	cfg = cfg.Normalize()
	setup := rand.New(rand.NewPCG(cfg.Seed, streamSetup))
	return build(cfg, g, setup, opts)
}

func build(cfg Config, g *graph.Graph, setup *rand.Rand, opts []Option) *Simulation {
	s := &Simulation{
		cfg:        cfg,
		graph:      g,
		shuffleRng: rand.New(rand.NewPCG(cfg.Seed, streamShuffle)),
		drawRng:    rand.New(rand.NewPCG(cfg.Seed, streamDraw)),
		running:    true,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.agents = populate(g.Order(), cfg, setup, s.assign)
	s.order = make([]*Agent, len(s.agents))
	s.last = s.observe(0)
	s.logger.Debug("simulation created",
		"nodes", g.Order(), "edges", g.Size(), "topology", cfg.Topology,
		"conservative_bots", cfg.ConservativeBots, "progressive_bots", cfg.ProgressiveBots,
		"seed", cfg.Seed)
	return s
}

// Config returns the normalized configuration
func (s *Simulation) Config() Config { return s.cfg }

// Graph returns the simulation's graph. Callers must not mutate it while the simulation runs.
func (s *Simulation) Graph() *graph.Graph { return s.graph }

// Agents returns the agents indexed by node id
func (s *Simulation) Agents() []*Agent { return s.agents }

// Running is false once no neutral agents remain
func (s *Simulation) Running() bool { return s.running }

// StepCount returns the number of completed ticks
func (s *Simulation) StepCount() int { return s.step }

// Latest returns the statistics of the most recent tick, or of the initial state
func (s *Simulation) Latest() *StepStats { return s.last }

// Interactions returns the full interaction log
func (s *Simulation) Interactions() []string {
	out := make([]string, len(s.log))
	copy(out, s.log)
	return out
}

// InteractionLog renders the interaction log one entry per line
func (s *Simulation) InteractionLog() string {
	return strings.Join(s.log, "\n")
}

// Opinions returns a snapshot of every agent's opinion, indexed by node id
func (s *Simulation) Opinions() []Opinion {
	out := make([]Opinion, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.Opinion
	}
	return out
}

// --- World ---

func (s *Simulation) Neighbors(id int) []int { return s.graph.Neighbors(id) }

func (s *Simulation) Agent(id int) *Agent {
	if id < 0 || id >= len(s.agents) {
		return nil
	}
	return s.agents[id]
}

// SetVisibility marks from->to, falling back to to->from. It panics if
// neither edge exists: neighbours come from the same graph, so a missing
// edge is a bug.
func (s *Simulation) SetVisibility(from, to int, v graph.Visibility) {
	if s.graph.SetWeight(from, to, v) || s.graph.SetWeight(to, from, v) {
		return
	}
	panic(fmt.Errorf("%w: no edge between %d and %d", ErrInvariantViolation, from, to))
}

func (s *Simulation) Rand() *rand.Rand { return s.drawRng }

func (s *Simulation) Rules() Rules { return s.cfg.Rules }

func (s *Simulation) Record(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.log = append(s.log, line)
	s.logger.Log(context.Background(), logging.LevelTrace, line, "step", s.step)
}

// --- Clock ---

// Step advances one tick: every agent acts once in shuffled order, then the
// clusters are recomputed and handed to the collectors. Once stopped, Step
// returns the last statistics without doing anything.
func (s *Simulation) Step() (*StepStats, error) {
	if !s.running {
		return s.last, nil
	}

	s.step++
	mark := len(s.log)

	copy(s.order, s.agents)
	s.shuffleRng.Shuffle(len(s.order), func(i, j int) {
		s.order[i], s.order[j] = s.order[j], s.order[i]
	})
	for _, a := range s.order {
		a.Step(s)
	}

	stats := s.observe(mark)
	if stats.Counts.Neutral == 0 {
		s.running = false
		stats.Running = false
	}
	s.last = stats

	s.logger.Debug("tick",
		"step", s.step,
		"conservative", stats.Counts.Conservative,
		"progressive", stats.Counts.Progressive,
		"neutral", stats.Counts.Neutral,
		"clusters", stats.Clusters.Count,
		"running", s.running)

	if err := s.collect(stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// observe computes statistics for the current state; interactions are the
// log entries recorded since mark
func (s *Simulation) observe(mark int) *StepStats {
	counts := CountAgents(s.agents)
	var interactions []string
	if mark < len(s.log) {
		interactions = make([]string, len(s.log)-mark)
		copy(interactions, s.log[mark:])
	}
	return &StepStats{
		Step:          s.step,
		Running:       s.running,
		Counts:        counts,
		ConsProgRatio: NewRatio(counts.Conservative, counts.Progressive),
		Clusters:      IdentifyClusters(s.graph, s.Opinions()),
		Interactions:  interactions,
	}
}

func (s *Simulation) collect(stats *StepStats) error {
	for _, c := range s.collectors {
		if err := c.Collect(stats); err != nil {
			return fmt.Errorf("collecting step %d: %w", stats.Step, err)
		}
	}
	return nil
}

package sim

import (
	"math/rand/v2"

	"echochamber/internal/graph"
)

// World is what an agent can see and touch during its turn. The Simulation
// implements it; tests may supply their own.
type World interface {
	// Neighbors returns the ids tied to id, in adjacency order.
	Neighbors(id int) []int
	// Agent returns the agent bound to node id, or nil.
	Agent(id int) *Agent
	// SetVisibility marks the tie between from and to. A missing tie is fatal.
	SetVisibility(from, to int, v graph.Visibility)
	// Rand is the stream every probability check draws from.
	Rand() *rand.Rand
	Rules() Rules
	// Record appends a line to the interaction log.
	Record(format string, args ...any)
}

// Agent is one opinion holder bound to a single graph node.
type Agent struct {
	ID      int     `json:"id"`
	Kind    Kind    `json:"kind"`
	Opinion Opinion `json:"opinion"`

	// Accumulated pressure toward each non-neutral opinion
	HitConservative int `json:"hit_conservative"`
	HitProgressive  int `json:"hit_progressive"`

	// Reach is the number of interactions the agent may attempt per tick.
	Reach int `json:"reach"`

	PositiveChance      float64 `json:"positive_chance"`
	BecomeNeutralChance float64 `json:"become_neutral_chance"`
}

// NewHuman creates a neutral human agent
func NewHuman(id int, rules Rules, positiveChance, becomeNeutralChance float64) *Agent {
	return &Agent{
		ID:                  id,
		Kind:                Human,
		Opinion:             Neutral,
		Reach:               rules.HumanReach,
		PositiveChance:      clampProb(positiveChance),
		BecomeNeutralChance: clampProb(becomeNeutralChance),
	}
}

// NewBot creates a bot holding a fixed opinion
func NewBot(id int, opinion Opinion, rules Rules, positiveChance float64) *Agent {
	return &Agent{
		ID:             id,
		Kind:           Bot,
		Opinion:        opinion,
		Reach:          rules.BotReach,
		PositiveChance: clampProb(positiveChance),
	}
}

// policies selects the turn behaviour by kind
var policies = map[Kind]func(*Agent, World){
	Human: (*Agent).actHuman,
	Bot:   (*Agent).actBot,
}

// Step runs the agent's turn
func (a *Agent) Step(w World) {
	if act, ok := policies[a.Kind]; ok {
		act(a, w)
	}
}

func (a *Agent) actBot(w World) {
	a.positive(w, a.Reach)
	a.reinforceBots(w)
}

func (a *Agent) actHuman(w World) {
	if w.Rand().Float64() < w.Rules().NegativeProbability() {
		a.negative(w, a.Reach)
	} else {
		a.positive(w, a.Reach)
	}
}

// Hits returns the counter tracking pressure toward o. Neutral has none.
func (a *Agent) Hits(o Opinion) int {
	switch o {
	case Conservative:
		return a.HitConservative
	case Progressive:
		return a.HitProgressive
	default:
		return 0
	}
}

// addHits moves the counter for o by delta, reporting whether o has a counter
func (a *Agent) addHits(o Opinion, delta int) bool {
	switch o {
	case Conservative:
		a.HitConservative += delta
	case Progressive:
		a.HitProgressive += delta
	default:
		return false
	}
	return true
}

func (a *Agent) resetHits() {
	a.HitConservative = 0
	a.HitProgressive = 0
}

func (a *Agent) gainReach(inc, max int) {
	a.Reach = clampReach(a.Reach+inc, max)
}

// dissimilarHumans lists human neighbours holding a different opinion
func (a *Agent) dissimilarHumans(w World) []*Agent {
	var out []*Agent
	for _, id := range w.Neighbors(a.ID) {
		n := w.Agent(id)
		if n != nil && n.Kind == Human && n.Opinion != a.Opinion {
			out = append(out, n)
		}
	}
	return out
}

// similarHumans lists human neighbours sharing the agent's opinion
func (a *Agent) similarHumans(w World) []*Agent {
	var out []*Agent
	for _, id := range w.Neighbors(a.ID) {
		n := w.Agent(id)
		if n != nil && n.Kind == Human && n.Opinion == a.Opinion {
			out = append(out, n)
		}
	}
	return out
}

// similarBots lists bot neighbours sharing the agent's opinion
func (a *Agent) similarBots(w World) []*Agent {
	var out []*Agent
	for _, id := range w.Neighbors(a.ID) {
		n := w.Agent(id)
		if n != nil && n.Kind == Bot && n.Opinion == a.Opinion {
			out = append(out, n)
		}
	}
	return out
}

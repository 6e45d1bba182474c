package sim

// Rules are the interaction constants shared by every agent in a simulation.
type Rules struct {
	// HitRequired is the accumulated pressure at which a human adopts an opinion.
	HitRequired int `json:"hit_required" yaml:"hit_required"`

	// MaxReach caps how many interactions one agent may attempt per tick.
	MaxReach int `json:"max_reach" yaml:"max_reach"`

	// HumanReach and BotReach are the starting reach budgets.
	HumanReach int `json:"human_reach" yaml:"human_reach"`
	BotReach   int `json:"bot_reach" yaml:"bot_reach"`

	// ReachIncrement is added to both bots on every bot-to-bot interaction.
	ReachIncrement int `json:"reach_increment" yaml:"reach_increment"`

	// NegativeChance is the probability a human runs a negative interaction
	// instead of a positive one. Nil means the default of 2/7.
	NegativeChance *float64 `json:"negative_chance,omitempty" yaml:"negative_chance,omitempty"`
}

const defaultNegativeChance = 2.0 / 7.0

// Probability returns a pointer to p, for optional rule fields.
func Probability(p float64) *float64 { return &p }

// NegativeProbability is the effective chance of a negative turn
func (r Rules) NegativeProbability() float64 {
	if r.NegativeChance == nil {
		return defaultNegativeChance
	}
	return *r.NegativeChance
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		HitRequired:    10,
		MaxReach:       10,
		HumanReach:     1,
		BotReach:       4,
		ReachIncrement: 1,
		NegativeChance: Probability(defaultNegativeChance),
	}
}

// normalize replaces unset or out-of-range fields with defaults, so a zero
// Rules value means the defaults. NegativeChance is copied, never shared
// with the caller.
func (r Rules) normalize() Rules {
	d := DefaultRules()
	if r.HitRequired <= 0 {
		r.HitRequired = d.HitRequired
	}
	if r.MaxReach <= 0 {
		r.MaxReach = d.MaxReach
	}
	if r.HumanReach <= 0 {
		r.HumanReach = d.HumanReach
	}
	if r.BotReach <= 0 {
		r.BotReach = d.BotReach
	}
	if r.ReachIncrement <= 0 {
		r.ReachIncrement = d.ReachIncrement
	}
	r.NegativeChance = Probability(clampProb(r.NegativeProbability()))
	r.HumanReach = clampReach(r.HumanReach, r.MaxReach)
	r.BotReach = clampReach(r.BotReach, r.MaxReach)
	return r
}

func clampProb(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func clampReach(reach, max int) int {
	if reach < 1 {
		return 1
	}
	if reach > max {
		return max
	}
	return reach
}

// interactionKind is one type of engagement and the pressure it carries
type interactionKind struct {
	verb   string
	weight int
}

var positiveKinds = []interactionKind{
	{"viewed", 1},
	{"liked", 2},
	{"commented on", 3},
	{"shared", 4},
	{"followed", 5},
}

var negativeKinds = []interactionKind{
	{"disliked", -2},
	{"unfollowed", -5},
}

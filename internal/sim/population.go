package sim

import "math/rand/v2"

type botAssignment struct {
	conservative []int
	progressive  []int
}

// populate creates one agent per node. Bots are sampled without replacement
// from a single permutation, conservative first, so the two sets never overlap.
func populate(n int, cfg Config, r *rand.Rand, assign *botAssignment) []*Agent {
	agents := make([]*Agent, n)
	for id := range agents {
		agents[id] = NewHuman(id, cfg.Rules, cfg.PositiveChance, cfg.BecomeNeutralChance)
	}

	var cons, prog []int
	if assign != nil {
		cons, prog = assign.conservative, assign.progressive
	} else {
		perm := r.Perm(n)
		cons = perm[:cfg.ConservativeBots]
		prog = perm[cfg.ConservativeBots : cfg.ConservativeBots+cfg.ProgressiveBots]
	}

	place := func(ids []int, o Opinion) {
		for _, id := range ids {
			if id < 0 || id >= n || agents[id].Kind == Bot {
				continue
			}
			agents[id] = NewBot(id, o, cfg.Rules, cfg.PositiveChance)
		}
	}
	place(cons, Conservative)
	place(prog, Progressive)
	return agents
}

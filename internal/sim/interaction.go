package sim

import "echochamber/internal/graph"

// positive pushes the agent's opinion onto up to limit dissimilar human
// neighbours. Every candidate consumes one attempt whether or not the
// chance roll succeeds.
func (a *Agent) positive(w World, limit int) {
	rules := w.Rules()
	attempts := 0
	for _, n := range a.dissimilarHumans(w) {
		if attempts >= limit {
			break
		}
		attempts++

		if w.Rand().Float64() >= a.PositiveChance {
			continue
		}

		w.SetVisibility(a.ID, n.ID, graph.Dashed)
		kind := positiveKinds[w.Rand().IntN(len(positiveKinds))]
		w.Record("+Agent %d %s %d", a.ID, kind.verb, n.ID)

		// a neutral initiator has nothing to push
		if !n.addHits(a.Opinion, kind.weight) {
			continue
		}
		if n.Hits(a.Opinion) >= rules.HitRequired {
			n.Opinion = a.Opinion
			n.resetHits()
			w.SetVisibility(a.ID, n.ID, graph.Visible)
			w.Record("Agent %d is now %s", n.ID, n.Opinion)
		}
	}
}

// negative pulls away from up to limit same-opinion human neighbours, then
// gives the agent a chance to drop back to neutral after each one. Once the
// agent has gone neutral the rest of its old camp is left alone.
func (a *Agent) negative(w World, limit int) {
	rules := w.Rules()
	held := a.Opinion
	for i, n := range a.similarHumans(w) {
		if i >= limit {
			break
		}

		w.SetVisibility(a.ID, n.ID, graph.Dashed)
		kind := negativeKinds[w.Rand().IntN(len(negativeKinds))]
		a.addHits(n.Opinion, kind.weight)
		w.Record("-Agent %d %s %d", a.ID, kind.verb, n.ID)

		if a.HitConservative < rules.HitRequired || a.HitProgressive < rules.HitRequired {
			n.resetHits()
			w.SetVisibility(a.ID, n.ID, graph.Invisible)
		}

		a.tryGainNeutrality(w)
		if a.Opinion != held {
			return
		}
	}
}

// reinforceBots raises the reach of the agent and every same-opinion bot neighbour
func (a *Agent) reinforceBots(w World) {
	rules := w.Rules()
	for _, n := range a.similarBots(w) {
		a.gainReach(rules.ReachIncrement, rules.MaxReach)
		n.gainReach(rules.ReachIncrement, rules.MaxReach)
		w.SetVisibility(a.ID, n.ID, graph.Visible)
		w.Record("*Bot %d amplified bot %d", a.ID, n.ID)
	}
}

func (a *Agent) tryGainNeutrality(w World) {
	if a.Kind != Human {
		return
	}
	if w.Rand().Float64() < a.BecomeNeutralChance {
		if a.Opinion != Neutral {
			w.Record("Agent %d went neutral", a.ID)
		}
		a.Opinion = Neutral
		a.resetHits()
	}
}

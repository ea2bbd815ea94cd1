package gacha

import "github.com/xtding233/gacha-seeker/internal/xorshift"

// Draw is one simulated draw with the generator state it left behind.
type Draw struct {
	Outcome
	Seed     uint32 // state after the draw
	Advances int
}

// Simulate draws n slots from seed with no target, the way a player would see them.
func (c *Config) Simulate(seed uint32, n int, v Variant) []Draw {
	if n <= 0 {
		return nil
	}
	draws := make([]Draw, n)
	st := State{Seed: seed}
	for i := range draws {
		out, adv := c.Step(&st, v, i)
		draws[i] = Draw{Outcome: out, Seed: st.Seed, Advances: adv}
	}
	return draws
}

// Observe converts simulated draws into the target sequence that would reproduce them.
// ok is false if any draw was Empty.
func Observe(draws []Draw) (seq Sequence, ok bool) {
	seq = make(Sequence, len(draws))
	for i, d := range draws {
		s, ok := d.Slot()
		if !ok {
			return nil, false
		}
		seq[i] = s
	}
	return seq, true
}

// Tally counts outcomes over many simulated first draws.
type Tally struct {
	Draws    int
	Feature  int
	Empty    int
	Rerolled int
	Tiers    [RarityTiers]int
}

// Share returns the observed fraction of draws that landed on tier t.
func (t Tally) Share(tier Tier) float64 {
	if t.Draws == 0 {
		return 0
	}
	return float64(t.Tiers[tier]) / float64(t.Draws)
}

// FeatureShare returns the observed fraction of feature draws.
func (t Tally) FeatureShare() float64 {
	if t.Draws == 0 {
		return 0
	}
	return float64(t.Feature) / float64(t.Draws)
}

// Summarize simulates `draws` consecutive slots along the generator orbit starting at seed,
// carrying tier-1 tracking between them, and tallies the outcomes.
func (c *Config) Summarize(seed uint32, draws int, v Variant) Tally {
	var t Tally
	if seed == 0 {
		// 0 is a fixed point; every roll would be identical
		seed = xorshift.Next(1)
	}
	st := State{Seed: seed}
	for i := 0; i < draws; i++ {
		// positions wrap at MaxSequence so guaranteed slots keep recurring
		out, _ := c.Step(&st, v, i%MaxSequence)
		t.Draws++
		switch out.Kind {
		case OutcomeFeature:
			t.Feature++
		case OutcomeEmpty:
			t.Empty++
		default:
			t.Tiers[out.Tier]++
		}
		if out.Rerolled {
			t.Rerolled++
		}
	}
	return t
}

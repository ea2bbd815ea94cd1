package gacha

import "github.com/xtding233/gacha-seeker/internal/xorshift"

// guaranteed draws a guaranteed slot: one roll picks tier 3 or 4 by weight, one roll picks the
// item. No feature roll and no duplicate salvage apply.
//
// Zero total weight yields Empty without advancing.
func (c *Config) guaranteed(r *xorshift.Rand) Outcome {
	w3, w4 := c.Guarantee.weights()
	total := w3 + w4
	if total == 0 {
		return Outcome{Kind: OutcomeEmpty}
	}

	tier := GuaranteedHigh
	if r.Roll(total) < w3 {
		tier = GuaranteedLow
	}

	pool := c.Pools[tier]
	roll := r.Uint32()
	if len(pool) == 0 {
		return Outcome{Kind: OutcomeEmpty, Tier: tier}
	}
	return Outcome{Kind: OutcomeItem, Item: pool[roll%uint32(len(pool))], Tier: tier}
}

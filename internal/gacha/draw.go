package gacha

import "github.com/xtding233/gacha-seeker/internal/xorshift"

// OutcomeKind tags the result of one draw.
type OutcomeKind uint8

const (
	// OutcomeEmpty marks a draw that resolved to a defect (empty pool, unusable table).
	// It never matches a target slot.
	OutcomeEmpty OutcomeKind = iota
	OutcomeFeature
	OutcomeItem
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFeature:
		return "feature"
	case OutcomeItem:
		return "item"
	}
	return "empty"
}

// Outcome is the observable result of one draw.
type Outcome struct {
	Kind OutcomeKind
	Item ItemID
	Tier Tier
	// Rerolled is set when a duplicate tier-1 draw was salvaged; Duplicate is the discarded item.
	Rerolled  bool
	Duplicate ItemID
}

// LastRare is the previous tier-1 item, if the previous draw was one.
type LastRare struct {
	ID  ItemID
	Set bool
}

// Rare returns a LastRare holding id.
func Rare(id ItemID) LastRare { return LastRare{ID: id, Set: true} }

// State is the per-candidate simulation state. It is created for one verification and discarded.
type State struct {
	Seed uint32
	Last LastRare
}

// Step draws the slot at 0-based position pos and advances st.
// It returns the outcome and the number of generator advances consumed.
func (c *Config) Step(st *State, v Variant, pos int) (Outcome, int) {
	r := xorshift.New(st.Seed)
	var out Outcome
	if v.GuaranteedAt(pos) {
		out = c.guaranteed(&r)
	} else {
		out = c.draw(&r, st.Last, v.Completion, false)
	}
	st.Seed = r.State()
	st.Last = track(out)
	return out, r.Steps()
}

// Salvage performs a draw that must land on RerollTier and be rerolled as a duplicate, treating
// whatever item the item roll picks as the previous tier-1 draw. ok is false when any of those
// conditions fails. On success st.Last holds the salvaged item.
func (c *Config) Salvage(st *State, mode Completion) (out Outcome, advances int, ok bool) {
	r := xorshift.New(st.Seed)
	out = c.draw(&r, LastRare{}, mode, true)
	st.Seed = r.State()
	st.Last = track(out)
	return out, r.Steps(), out.Rerolled
}

func track(out Outcome) LastRare {
	if out.Kind == OutcomeItem && out.Tier == RerollTier {
		return Rare(out.Item)
	}
	return LastRare{}
}

// draw runs the feature, rarity, item and reroll rolls. With forceDup the item roll is always
// treated as a duplicate of the previous tier-1 draw.
func (c *Config) draw(r *xorshift.Rand, last LastRare, mode Completion, forceDup bool) Outcome {
	if mode != Completed {
		if r.Roll(RollSpace) < c.FeaturedRate {
			return Outcome{Kind: OutcomeFeature}
		}
	}

	tier, ok := c.RarityOf(r.Roll(RollSpace))
	if !ok {
		return Outcome{Kind: OutcomeEmpty}
	}

	pool := c.Pools[tier]
	roll := r.Uint32()
	if len(pool) == 0 {
		return Outcome{Kind: OutcomeEmpty, Tier: tier}
	}
	out := Outcome{Kind: OutcomeItem, Item: pool[roll%uint32(len(pool))], Tier: tier}

	if tier != RerollTier || !c.CanReroll || len(pool) < 2 {
		return out
	}
	if forceDup || (last.Set && last.ID == out.Item) {
		out.Duplicate = out.Item
		out.Item = pickExcluding(pool, out.Duplicate, r.Uint32())
		out.Rerolled = true
	}
	return out
}

// pickExcluding indexes roll%(len(pool)-1) into pool with dup filtered out.
func pickExcluding(pool []ItemID, dup ItemID, roll uint32) ItemID {
	idx := roll % uint32(len(pool)-1)
	for _, id := range pool {
		if id == dup {
			continue
		}
		if idx == 0 {
			return id
		}
		idx--
	}
	// only reachable when dup appears more than once, which Validate rejects
	return dup
}

package gacha

// ItemID identifies an item in the game's item master.
type ItemID uint32

// Tier is a rarity tier index, 0..RarityTiers-1.
type Tier int

const (
	RarityTiers = 5
	// RollSpace is the modulus of the feature and rarity rolls; rates are per RollSpace.
	RollSpace = 10000
	// MaxSequence caps the length of a target sequence.
	MaxSequence = 16

	// RerollTier is the only tier where duplicate draws are salvaged.
	RerollTier Tier = 1
	// GuaranteedLow and GuaranteedHigh are the tiers a guaranteed slot chooses between.
	GuaranteedLow  Tier = 3
	GuaranteedHigh Tier = 4
)

// Guarantee configures the guaranteed slot used in Completed mode.
// A tier only contributes its rate when its flag is set.
type Guarantee struct {
	Tier3 bool
	Tier4 bool
	Rate3 uint32
	Rate4 uint32
}

func (g Guarantee) weights() (w3, w4 uint32) {
	if g.Tier3 {
		w3 = g.Rate3
	}
	if g.Tier4 {
		w4 = g.Rate4
	}
	return w3, w4
}

// Total is the roll modulus of the guaranteed tier choice. Zero means no guaranteed slot can match.
func (g Guarantee) Total() uint32 {
	w3, w4 := g.weights()
	return w3 + w4
}

// Config is one gacha's draw table. It is read-only once built: searches share a single
// Config across all workers.
//
// Pool order is significant: the item roll indexes directly into Pools[tier].
type Config struct {
	FeaturedRate uint32              // draws per RollSpace that are the featured item
	RarityRates  [RarityTiers]uint32 // per-tier weights per RollSpace
	Cumulative   [RarityTiers]uint32 // derived by Normalize
	Pools        [RarityTiers][]ItemID
	CanReroll    bool // salvage duplicate tier-1 draws
	Guarantee    Guarantee
}

// NewConfig builds a Config and derives its cumulative rarity table.
func NewConfig(featuredRate uint32, rarityRates [RarityTiers]uint32, pools [RarityTiers][]ItemID, canReroll bool) *Config {
	c := &Config{
		FeaturedRate: featuredRate,
		RarityRates:  rarityRates,
		Pools:        pools,
		CanReroll:    canReroll,
	}
	c.Normalize()
	return c
}

// Normalize recomputes Cumulative from RarityRates.
func (c *Config) Normalize() {
	var acc uint32
	for i, r := range c.RarityRates {
		acc += r
		c.Cumulative[i] = acc
	}
}

// RarityOf maps a roll in [0, RollSpace) to the first tier whose cumulative boundary exceeds it.
// ok is false when no boundary does, which only happens for a defective table.
func (c *Config) RarityOf(roll uint32) (tier Tier, ok bool) {
	for i, bound := range c.Cumulative {
		if roll < bound {
			return Tier(i), true
		}
	}
	return 0, false
}

// Contains reports whether id is in any tier pool.
func (c *Config) Contains(id ItemID) bool {
	for _, pool := range c.Pools {
		for _, it := range pool {
			if it == id {
				return true
			}
		}
	}
	return false
}

// Completion is the player's collection state for a gacha.
type Completion uint8

const (
	// Normal draws start with the feature roll.
	Normal Completion = iota
	// Completed means the featured pool is exhausted: no feature roll, and guaranteed
	// slots apply at the variant's positions.
	Completed
)

func (c Completion) String() string {
	if c == Completed {
		return "completed"
	}
	return "normal"
}

// Variant describes which draw grammar a sequence follows.
type Variant struct {
	Completion Completion
	// GuaranteedSlot is the 1-based slot position of the first guaranteed draw; the next one
	// follows ten slots later. Zero disables guaranteed slots.
	GuaranteedSlot int
}

// GuaranteedAt reports whether the 0-based slot position pos is a guaranteed draw.
func (v Variant) GuaranteedAt(pos int) bool {
	if v.Completion != Completed || v.GuaranteedSlot <= 0 {
		return false
	}
	n := pos + 1
	return n == v.GuaranteedSlot || n == v.GuaranteedSlot+10
}

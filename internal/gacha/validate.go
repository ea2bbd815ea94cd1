package gacha

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfig  = errors.New("invalid gacha config")
	ErrTarget  = errors.New("invalid target sequence")
	ErrVariant = errors.New("invalid draw variant")
)

// Validate checks the draw table for defects that would make draws unmatchable.
// All defects are reported at once.
func (c *Config) Validate() error {
	var errs []string

	if c.FeaturedRate > RollSpace {
		errs = append(errs, fmt.Sprintf("featured rate %d exceeds %d", c.FeaturedRate, RollSpace))
	}

	var prev uint32
	for i, bound := range c.Cumulative {
		if bound < prev {
			errs = append(errs, fmt.Sprintf("cumulative rarity rate %d at tier %d is below tier %d", bound, i, i-1))
		}
		prev = bound
	}
	if last := c.Cumulative[RarityTiers-1]; last != RollSpace {
		errs = append(errs, fmt.Sprintf("rarity rates must sum to %d, got %d", RollSpace, last))
	}

	for tier, pool := range c.Pools {
		if c.RarityRates[tier] > 0 && len(pool) == 0 {
			errs = append(errs, fmt.Sprintf("tier %d has rate %d but an empty pool", tier, c.RarityRates[tier]))
		}
		seen := make(map[ItemID]struct{}, len(pool))
		for _, id := range pool {
			if _, dup := seen[id]; dup {
				errs = append(errs, fmt.Sprintf("tier %d pool lists item %d twice", tier, id))
				continue
			}
			seen[id] = struct{}{}
		}
	}

	if c.CanReroll && len(c.Pools[RerollTier]) < 2 {
		errs = append(errs, fmt.Sprintf("reroll needs at least 2 items in tier %d, got %d", RerollTier, len(c.Pools[RerollTier])))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrConfig, strings.Join(errs, "; "))
	}
	return nil
}

// ValidateVariant checks the parts of the table a variant relies on.
func (c *Config) ValidateVariant(v Variant) error {
	if v.GuaranteedSlot < 0 {
		return fmt.Errorf("%w: guaranteed slot %d is negative", ErrVariant, v.GuaranteedSlot)
	}
	if v.Completion != Completed || v.GuaranteedSlot == 0 {
		return nil
	}
	var errs []string
	if c.Guarantee.Total() == 0 {
		errs = append(errs, "guaranteed slot has zero total weight")
	}
	w3, w4 := c.Guarantee.weights()
	if w3 > 0 && len(c.Pools[GuaranteedLow]) == 0 {
		errs = append(errs, fmt.Sprintf("guaranteed tier %d has an empty pool", GuaranteedLow))
	}
	if w4 > 0 && len(c.Pools[GuaranteedHigh]) == 0 {
		errs = append(errs, fmt.Sprintf("guaranteed tier %d has an empty pool", GuaranteedHigh))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrVariant, strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks length bounds and that every specific item can be drawn from c.
func (s Sequence) Validate(c *Config) error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty", ErrTarget)
	}
	if len(s) > MaxSequence {
		return fmt.Errorf("%w: %d slots exceeds the cap of %d", ErrTarget, len(s), MaxSequence)
	}
	for i, slot := range s {
		if slot.Kind == SlotItem && !c.Contains(slot.Item) {
			return fmt.Errorf("%w: slot %d wants item %d which no pool contains", ErrTarget, i, slot.Item)
		}
	}
	return nil
}

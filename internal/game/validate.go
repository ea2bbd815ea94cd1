package game

import (
	"fmt"
	"strings"

	"github.com/xtding233/gacha-seeker/internal/gacha"
)

// ValidateRaw checks semantic constraints of a merged RawConfig. Table defects that only show
// once pools and rates are combined are left to gacha.Config.Validate.
func ValidateRaw(cfg RawConfig) error {
	var errs []string

	// draw
	if cfg.Draw.FeaturedRate == nil {
		errs = append(errs, "draw.featured_rate is required")
	}
	if n := len(cfg.Draw.RarityRates); n != gacha.RarityTiers {
		errs = append(errs, fmt.Sprintf("draw.rarity_rates must list %d tiers, got %d", gacha.RarityTiers, n))
	} else {
		var sum uint32
		for _, r := range cfg.Draw.RarityRates {
			sum += uint32(r)
		}
		if sum != gacha.RollSpace {
			errs = append(errs, fmt.Sprintf("draw.rarity_rates must sum to %d (100%%), got %d", gacha.RollSpace, sum))
		}
	}

	// pools
	if len(cfg.Pools) > gacha.RarityTiers {
		errs = append(errs, fmt.Sprintf("pools has %d tiers, at most %d allowed", len(cfg.Pools), gacha.RarityTiers))
	}
	for name, id := range cfg.Items {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("items: empty name for item %d", id))
		}
	}

	// guarantee
	if g := cfg.Guarantee; g != nil {
		if on(g.Tier3) && g.Rate3 == nil {
			errs = append(errs, "guarantee.rate3 is required when tier3 is enabled")
		}
		if on(g.Tier4) && g.Rate4 == nil {
			errs = append(errs, "guarantee.rate4 is required when tier4 is enabled")
		}
	}

	// search
	if s := cfg.Search; s != nil {
		if _, err := parseCompletion(s.Completion); err != nil {
			errs = append(errs, "search."+err.Error())
		}
		if s.GuaranteedSlot != nil && (*s.GuaranteedSlot < 0 || *s.GuaranteedSlot > gacha.MaxSequence) {
			errs = append(errs, fmt.Sprintf("search.guaranteed_slot must be in [0,%d]", gacha.MaxSequence))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

func on(b *bool) bool { return b != nil && *b }

func parseCompletion(s string) (gacha.Completion, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return gacha.Normal, nil
	case "completed":
		return gacha.Completed, nil
	}
	return gacha.Normal, fmt.Errorf("completion must be normal or completed, got %q", s)
}

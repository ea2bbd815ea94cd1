// resolve.go
package game

import (
	"errors"
	"fmt"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/masterdata"
)

// ErrInvalid wraps every validation failure of a gacha definition.
var ErrInvalid = errors.New("invalid gacha definition")

// Overrides carries per-request replacements applied after the file merge.
type Overrides struct {
	FeaturedRate   *uint32
	CanReroll      *bool
	Completion     *string
	GuaranteedSlot *int
}

// Resolved is a gacha definition ready to search.
type Resolved struct {
	Config  *gacha.Config
	Variant gacha.Variant
	Items   map[string]gacha.ItemID
	Version string // effective definition version for tracing
}

type Resolver interface {
	// Returns merged RawConfig and the resolved draw table.
	Resolve(game, gacha string, o Overrides) (RawConfig, Resolved, error)
}

var _ Resolver = (*Loader)(nil)

// Resolve merges default → game → gacha → overrides, validates the result and builds the draw
// table and default variant.
func (l *Loader) Resolve(game, gachaName string, o Overrides) (RawConfig, Resolved, error) {
	raw, err := l.LoadMerged(game, gachaName)
	if err != nil {
		return RawConfig{}, Resolved{}, err
	}
	raw = applyOverrides(raw, o)
	if err := ValidateRaw(raw); err != nil {
		return raw, Resolved{}, err
	}
	res, err := Build(raw)
	return raw, res, err
}

func applyOverrides(raw RawConfig, o Overrides) RawConfig {
	if o.FeaturedRate != nil {
		r := Rate(*o.FeaturedRate)
		raw.Draw.FeaturedRate = &r
	}
	if o.CanReroll != nil {
		raw.Draw.CanReroll = o.CanReroll
	}
	if o.Completion != nil || o.GuaranteedSlot != nil {
		s := SearchConfig{}
		if raw.Search != nil {
			s = *raw.Search
		}
		if o.Completion != nil {
			s.Completion = *o.Completion
		}
		if o.GuaranteedSlot != nil {
			s.GuaranteedSlot = o.GuaranteedSlot
		}
		raw.Search = &s
	}
	return raw
}

// Build converts a validated RawConfig to a draw table and checks the table itself.
func Build(raw RawConfig) (Resolved, error) {
	var (
		rates [gacha.RarityTiers]uint32
		pools [gacha.RarityTiers][]gacha.ItemID
	)
	for i := 0; i < gacha.RarityTiers && i < len(raw.Draw.RarityRates); i++ {
		rates[i] = uint32(raw.Draw.RarityRates[i])
	}
	for i := 0; i < gacha.RarityTiers && i < len(raw.Pools); i++ {
		for _, id := range raw.Pools[i] {
			pools[i] = append(pools[i], gacha.ItemID(id))
		}
	}
	var featured uint32
	if raw.Draw.FeaturedRate != nil {
		featured = uint32(*raw.Draw.FeaturedRate)
	}
	c := gacha.NewConfig(featured, rates, pools, on(raw.Draw.CanReroll))
	if g := raw.Guarantee; g != nil {
		c.Guarantee = gacha.Guarantee{Tier3: on(g.Tier3), Tier4: on(g.Tier4)}
		if g.Rate3 != nil {
			c.Guarantee.Rate3 = uint32(*g.Rate3)
		}
		if g.Rate4 != nil {
			c.Guarantee.Rate4 = uint32(*g.Rate4)
		}
	}

	var v gacha.Variant
	if s := raw.Search; s != nil {
		var err error
		if v.Completion, err = parseCompletion(s.Completion); err != nil {
			return Resolved{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if s.GuaranteedSlot != nil {
			v.GuaranteedSlot = *s.GuaranteedSlot
		}
	}

	if err := errors.Join(c.Validate(), c.ValidateVariant(v)); err != nil {
		return Resolved{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	items := make(map[string]gacha.ItemID, len(raw.Items))
	for name, id := range raw.Items {
		items[name] = gacha.ItemID(id)
	}
	return Resolved{Config: c, Variant: v, Items: items, Version: raw.Version}, nil
}

// Target resolves observed draw names against the definition's item names.
func (r Resolved) Target(names []string) (gacha.Sequence, error) {
	return masterdata.ResolveTarget(names, r.Items)
}

// types.go
package game

import (
	"gopkg.in/yaml.v3"

	"github.com/xtding233/gacha-seeker/internal/masterdata"
)

// RawConfig is one gacha definition as written in YAML. Every field is optional so files can be
// layered; see Loader.
type RawConfig struct {
	Version   string           `yaml:"version"`
	Draw      DrawConfig       `yaml:"draw"`
	Guarantee *GuaranteeConfig `yaml:"guarantee,omitempty"`
	// Pools lists item ids per rarity tier, lowest tier first. Order is the draw order.
	Pools  [][]uint32        `yaml:"pools,omitempty"`
	Items  map[string]uint32 `yaml:"items,omitempty"` // display name -> item id
	Search *SearchConfig     `yaml:"search,omitempty"`
	Notes  string            `yaml:"notes,omitempty"`
}

type DrawConfig struct {
	FeaturedRate *Rate  `yaml:"featured_rate"`
	RarityRates  []Rate `yaml:"rarity_rates"`
	CanReroll    *bool  `yaml:"can_reroll"`
}

type GuaranteeConfig struct {
	Tier3 *bool `yaml:"tier3"`
	Tier4 *bool `yaml:"tier4"`
	Rate3 *Rate `yaml:"rate3"`
	Rate4 *Rate `yaml:"rate4"`
}

// SearchConfig holds the draw variant a gacha is usually searched with.
type SearchConfig struct {
	Completion     string `yaml:"completion"` // "normal" | "completed"
	GuaranteedSlot *int   `yaml:"guaranteed_slot,omitempty"`
}

// Rate is a draw rate in basis points. In YAML it is written as a number of basis points
// (500) or as a percentage string ("5%").
type Rate uint32

func (r *Rate) UnmarshalYAML(n *yaml.Node) error {
	bp, err := masterdata.ParseRate(n.Value)
	if err != nil {
		return err
	}
	*r = Rate(bp)
	return nil
}

// Package masterdata imports the game's gacha and item master dumps and turns them into
// draw tables and target sequences.
package masterdata

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/xtding233/gacha-seeker/internal/gacha"
)

var (
	ErrMaster       = errors.New("invalid master data")
	ErrUnknownGacha = errors.New("unknown gacha")
	ErrUnknownItem  = errors.New("unknown item")
)

// Names a target sequence may use for the feature slots besides item names.
const (
	ConfirmedName  = "目玉(確定)"
	FeaturedName   = "目玉"
	confirmedAlias = "confirmed"
	featuredAlias  = "featured"
	itemIDPrefix   = "#"
)

// Item is one row of the item master.
type Item struct {
	ID     gacha.ItemID
	Name   string
	Rarity gacha.Tier
}

// Gacha is one row of the gacha master, before pools are split by rarity.
type Gacha struct {
	ID           string
	Name         string
	FeaturedRate uint32
	RarityRates  [gacha.RarityTiers]uint32
	// Pool lists every drawable item in master order; the order carries into the tier pools.
	Pool      []gacha.ItemID
	CanReroll bool
	Guarantee gacha.Guarantee
}

// Master is a parsed pair of master dumps.
type Master struct {
	Gachas map[string]*Gacha
	Items  map[gacha.ItemID]Item
	names  map[string]gacha.ItemID
}

// Parse reads the gacha master and item master JSON objects, keyed by id:
//
//	{"1": {"name": "...", "featuredItemRate": 500, "rarityRates": {"0": 3000, ...},
//	       "pool": [101, ...], "canReroll": "1", "guaranteed": {"tier3": true, "rate3": 9000}}}
//	{"101": {"name": "...", "rarity": 1}}
//
// Rates may be numbers of basis points or percent strings.
func Parse(gachaJSON, itemJSON []byte) (*Master, error) {
	if !gjson.ValidBytes(gachaJSON) {
		return nil, fmt.Errorf("%w: gacha master is not valid JSON", ErrMaster)
	}
	if !gjson.ValidBytes(itemJSON) {
		return nil, fmt.Errorf("%w: item master is not valid JSON", ErrMaster)
	}

	m := &Master{
		Gachas: make(map[string]*Gacha),
		Items:  make(map[gacha.ItemID]Item),
		names:  make(map[string]gacha.ItemID),
	}
	var errs []string

	gjson.ParseBytes(itemJSON).ForEach(func(key, v gjson.Result) bool {
		id, err := strconv.ParseUint(key.String(), 10, 32)
		if err != nil {
			errs = append(errs, fmt.Sprintf("item key %q is not an id", key.String()))
			return true
		}
		rarity := v.Get("rarity").Int()
		if rarity < 0 || rarity >= gacha.RarityTiers {
			errs = append(errs, fmt.Sprintf("item %d has rarity %d", id, rarity))
			return true
		}
		it := Item{ID: gacha.ItemID(id), Name: v.Get("name").String(), Rarity: gacha.Tier(rarity)}
		m.Items[it.ID] = it
		if it.Name != "" {
			// later rows win on duplicate names
			m.names[it.Name] = it.ID
		}
		return true
	})

	gjson.ParseBytes(gachaJSON).ForEach(func(key, v gjson.Result) bool {
		g, err := parseGacha(key.String(), v)
		if err != nil {
			errs = append(errs, err.Error())
			return true
		}
		m.Gachas[g.ID] = g
		return true
	})

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMaster, strings.Join(errs, "; "))
	}
	return m, nil
}

func parseGacha(id string, v gjson.Result) (*Gacha, error) {
	g := &Gacha{ID: id, Name: v.Get("name").String(), CanReroll: toBool(v.Get("canReroll"))}

	var err error
	if g.FeaturedRate, err = rateOf(v.Get("featuredItemRate")); err != nil {
		return nil, fmt.Errorf("gacha %s featuredItemRate: %v", id, err)
	}
	rates := v.Get("rarityRates")
	for i := range g.RarityRates {
		if g.RarityRates[i], err = rateOf(rates.Get(strconv.Itoa(i))); err != nil {
			return nil, fmt.Errorf("gacha %s rarityRates[%d]: %v", id, i, err)
		}
	}
	for _, it := range v.Get("pool").Array() {
		g.Pool = append(g.Pool, gacha.ItemID(it.Uint()))
	}

	if gr := v.Get("guaranteed"); gr.Exists() {
		g.Guarantee.Tier3 = toBool(gr.Get("tier3"))
		g.Guarantee.Tier4 = toBool(gr.Get("tier4"))
		if g.Guarantee.Rate3, err = rateOf(gr.Get("rate3")); err != nil {
			return nil, fmt.Errorf("gacha %s guaranteed.rate3: %v", id, err)
		}
		if g.Guarantee.Rate4, err = rateOf(gr.Get("rate4")); err != nil {
			return nil, fmt.Errorf("gacha %s guaranteed.rate4: %v", id, err)
		}
	}
	return g, nil
}

// rateOf treats a missing value as zero.
func rateOf(v gjson.Result) (uint32, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return 0, nil
	}
	return ParseRate(v.String())
}

// toBool accepts true, non-zero numbers and the strings "1"/"true".
func toBool(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Float() != 0
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		return s == "1" || strings.EqualFold(s, "true")
	}
	return false
}

// Gacha builds the draw table of gacha id. Pool items missing from the item master are
// dropped; the rest are split into tier pools keeping master order.
func (m *Master) Gacha(id string) (*gacha.Config, error) {
	g, ok := m.Gachas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGacha, id)
	}
	var pools [gacha.RarityTiers][]gacha.ItemID
	for _, itemID := range g.Pool {
		it, ok := m.Items[itemID]
		if !ok {
			continue
		}
		pools[it.Rarity] = append(pools[it.Rarity], itemID)
	}
	c := gacha.NewConfig(g.FeaturedRate, g.RarityRates, pools, g.CanReroll)
	c.Guarantee = g.Guarantee
	return c, nil
}

// GachaIDs lists the gacha ids in ascending order.
func (m *Master) GachaIDs() []string {
	ids := make([]string, 0, len(m.Gachas))
	for id := range m.Gachas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ItemName returns the display name of id, or "#id" when the master has none.
func (m *Master) ItemName(id gacha.ItemID) string {
	if it, ok := m.Items[id]; ok && it.Name != "" {
		return it.Name
	}
	return fmt.Sprintf("%s%d", itemIDPrefix, id)
}

// ResolveTarget maps observed draw names to a target sequence using the item master's names.
func (m *Master) ResolveTarget(names []string) (gacha.Sequence, error) {
	return ResolveTarget(names, m.names)
}

// ResolveTarget maps observed draw names to a target sequence. Feature slots are written as
// "目玉" / "featured" and confirmed ones as "目玉(確定)" / "confirmed"; items by a name in
// items or as "#<id>". Only the first gacha.MaxSequence names are used.
func ResolveTarget(names []string, items map[string]gacha.ItemID) (gacha.Sequence, error) {
	if len(names) > gacha.MaxSequence {
		names = names[:gacha.MaxSequence]
	}
	seq := make(gacha.Sequence, 0, len(names))
	for i, raw := range names {
		slot, err := slotOf(strings.TrimSpace(raw), items)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		seq = append(seq, slot)
	}
	return seq, nil
}

func slotOf(name string, items map[string]gacha.ItemID) (gacha.Slot, error) {
	switch strings.ToLower(name) {
	case ConfirmedName, confirmedAlias:
		return gacha.AnyConfirmed(), nil
	case FeaturedName, featuredAlias:
		return gacha.Featured(), nil
	}
	if id, ok := items[name]; ok {
		return gacha.Specific(id), nil
	}
	if rest, ok := strings.CutPrefix(name, itemIDPrefix); ok {
		id, err := strconv.ParseUint(rest, 10, 32)
		if err == nil {
			return gacha.Specific(gacha.ItemID(id)), nil
		}
	}
	return gacha.Slot{}, fmt.Errorf("%w: %q", ErrUnknownItem, name)
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/game"
	"github.com/xtding233/gacha-seeker/internal/masterdata"
	"github.com/xtding233/gacha-seeker/internal/search"
)

var errUsage = errors.New("usage")

// table is a resolved draw table with the target and display names that go with it.
type table struct {
	cfg     *gacha.Config
	variant gacha.Variant
	target  gacha.Sequence
	version string
	name    func(gacha.ItemID) string
}

// loadTable reads the draw table from the JSON masters when they are given and from the YAML
// definitions otherwise. Flag overrides are applied in both cases.
func loadTable(o *options) (*table, error) {
	if o.masterGacha != "" || o.masterItem != "" {
		return loadMaster(o)
	}
	if o.game == "" {
		return nil, fmt.Errorf("%w: -game or -master-gacha/-master-item is required", errUsage)
	}
	var ov game.Overrides
	if o.featuredRate != "" {
		bp, err := masterdata.ParseRate(o.featuredRate)
		if err != nil {
			return nil, fmt.Errorf("-featured-rate: %w", err)
		}
		ov.FeaturedRate = &bp
	}
	if o.completion != "" {
		ov.Completion = &o.completion
	}
	if o.slot >= 0 {
		ov.GuaranteedSlot = &o.slot
	}
	_, res, err := game.NewLoader(o.gamesDir).Resolve(o.game, o.gacha, ov)
	if err != nil {
		return nil, err
	}
	target, err := res.Target(o.target)
	if err != nil {
		return nil, err
	}
	byID := make(map[gacha.ItemID]string, len(res.Items))
	for n, id := range res.Items {
		byID[id] = n
	}
	return &table{
		cfg:     res.Config,
		variant: res.Variant,
		target:  target,
		version: res.Version,
		name: func(id gacha.ItemID) string {
			if n, ok := byID[id]; ok {
				return n
			}
			return "#" + strconv.FormatUint(uint64(id), 10)
		},
	}, nil
}

func loadMaster(o *options) (*table, error) {
	if o.masterGacha == "" || o.masterItem == "" || o.gachaID == "" {
		return nil, fmt.Errorf("%w: -master-gacha, -master-item and -gacha-id go together", errUsage)
	}
	gj, err := os.ReadFile(o.masterGacha)
	if err != nil {
		return nil, err
	}
	ij, err := os.ReadFile(o.masterItem)
	if err != nil {
		return nil, err
	}
	m, err := masterdata.Parse(gj, ij)
	if err != nil {
		return nil, err
	}
	cfg, err := m.Gacha(o.gachaID)
	if err != nil {
		return nil, fmt.Errorf("%w (known: %s)", err, strings.Join(m.GachaIDs(), ", "))
	}
	if o.featuredRate != "" {
		if cfg.FeaturedRate, err = masterdata.ParseRate(o.featuredRate); err != nil {
			return nil, fmt.Errorf("-featured-rate: %w", err)
		}
	}
	var v gacha.Variant
	switch strings.ToLower(o.completion) {
	case "", "normal":
	case "completed":
		v.Completion = gacha.Completed
	default:
		return nil, fmt.Errorf("%w: -completion must be normal or completed", errUsage)
	}
	if o.slot > 0 {
		v.GuaranteedSlot = o.slot
	}
	target, err := m.ResolveTarget(o.target)
	if err != nil {
		return nil, err
	}
	return &table{cfg: cfg, variant: v, target: target, name: m.ItemName}, nil
}

// parseCheck reads a priority check written as index:offset:modulus:comparator:value,
// e.g. "0:2:10000:>=:9800".
func parseCheck(s string) (*search.PriorityCheck, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: -check wants index:offset:modulus:comparator:value, got %q", errUsage, s)
	}
	var nums [4]uint32
	for i, p := range []string{parts[0], parts[1], parts[2], parts[4]} {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: -check: %v", errUsage, err)
		}
		nums[i] = uint32(v)
	}
	cmp, err := search.ParseComparator(parts[3])
	if err != nil {
		return nil, err
	}
	c := &search.PriorityCheck{SeedIndex: nums[0], TotalSeedOffset: nums[1], Modulus: nums[2], Comparator: cmp, Value: nums[3]}
	return c, c.Validate()
}

// splitNames splits a comma separated target list. Blank entries are dropped.
func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

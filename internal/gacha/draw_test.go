package gacha_test

import (
	"testing"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/xorshift"
)

func scenarioConfig() *gacha.Config {
	return gacha.NewConfig(500,
		[5]uint32{3000, 3000, 2500, 1300, 200},
		[5][]gacha.ItemID{
			{11, 12, 13, 14},
			{101, 102, 103},
			{201, 202},
			{301, 302},
			{401},
		}, false)
}

// rolls returns the first n generator values after seed.
func rolls(seed uint32, n int) []uint32 {
	out := make([]uint32, n)
	x := seed
	for i := range out {
		x = xorshift.Next(x)
		out[i] = x
	}
	return out
}

func TestCumulativeBoundaries(t *testing.T) {
	c := scenarioConfig()
	want := [5]uint32{3000, 6000, 8500, 9800, 10000}
	if c.Cumulative != want {
		t.Fatalf("cumulative=%v want %v", c.Cumulative, want)
	}
	cases := []struct {
		roll uint32
		tier gacha.Tier
	}{
		{0, 0}, {2999, 0}, {3000, 1}, {5999, 1}, {6000, 2}, {9799, 3}, {9800, 4}, {9999, 4},
	}
	for _, tc := range cases {
		got, ok := c.RarityOf(tc.roll)
		if !ok || got != tc.tier {
			t.Fatalf("RarityOf(%d)=%d,%v want %d", tc.roll, got, ok, tc.tier)
		}
	}
	if _, ok := c.RarityOf(10000); ok {
		t.Fatalf("roll outside the table must not resolve")
	}
}

func TestScenarioSpecificItem(t *testing.T) {
	c := scenarioConfig()
	target := gacha.Sequence{gacha.Specific(101)}
	found := 0
	for s := uint32(1); found < 20 && s < 1_000_000; s++ {
		r := rolls(s, 3)
		if r[0]%10000 < 500 {
			continue
		}
		rarity := r[1] % 10000
		if rarity < 3000 || rarity >= 6000 {
			continue
		}
		want := r[2]%3 == 0
		if got := c.Verify(s, target, gacha.Variant{}); got != want {
			t.Fatalf("seed %d: Verify=%v want %v (item roll %d)", s, got, want, r[2]%3)
		}
		if want {
			found++
		}
	}
	if found == 0 {
		t.Fatal("no seed reached tier 1 index 0")
	}
}

func TestScenarioFeatured(t *testing.T) {
	c := scenarioConfig()
	target := gacha.Sequence{gacha.Featured()}
	hits := 0
	for s := uint32(1); s < 5000; s++ {
		want := xorshift.Next(s)%10000 < 500
		if got := c.Verify(s, target, gacha.Variant{}); got != want {
			t.Fatalf("seed %d: Verify=%v want %v", s, got, want)
		}
		if want {
			hits++
		}
	}
	if hits == 0 {
		t.Fatal("no featured seed in range")
	}
}

func TestFeatureStepConsumesOneAdvance(t *testing.T) {
	c := scenarioConfig()
	for s := uint32(1); s < 5000; s++ {
		if xorshift.Next(s)%10000 >= 500 {
			continue
		}
		st := gacha.State{Seed: s, Last: gacha.Rare(101)}
		out, adv := c.Step(&st, gacha.Variant{}, 0)
		if out.Kind != gacha.OutcomeFeature || adv != 1 {
			t.Fatalf("seed %d: kind=%v advances=%d", s, out.Kind, adv)
		}
		if st.Last.Set {
			t.Fatalf("feature draw must clear the tier-1 tracker")
		}
		if st.Seed != xorshift.Next(s) {
			t.Fatalf("state not advanced by one step")
		}
		return
	}
	t.Fatal("no featured seed in range")
}

func TestScenarioDuplicateReroll(t *testing.T) {
	c := scenarioConfig()
	c.Pools[1] = []gacha.ItemID{101, 102}
	c.CanReroll = true

	for s := uint32(1); s < 2_000_000; s++ {
		r := rolls(s, 7)
		tier1 := func(v uint32) bool { v %= 10000; return v >= 3000 && v < 6000 }
		if r[0]%10000 < 500 || !tier1(r[1]) || r[2]%2 != 0 {
			continue
		}
		if r[3]%10000 < 500 || !tier1(r[4]) || r[5]%2 != 0 {
			continue
		}

		st := gacha.State{Seed: s}
		first, adv := c.Step(&st, gacha.Variant{}, 0)
		if first.Item != 101 || first.Rerolled || adv != 3 {
			t.Fatalf("seed %d first draw: %+v advances=%d", s, first, adv)
		}
		second, adv := c.Step(&st, gacha.Variant{}, 1)
		if second.Item != 102 || !second.Rerolled || second.Duplicate != 101 || adv != 4 {
			t.Fatalf("seed %d second draw: %+v advances=%d", s, second, adv)
		}
		if st.Seed != r[6] {
			t.Fatalf("reroll must consume exactly one more advance")
		}
		if st.Last != gacha.Rare(102) {
			t.Fatalf("tracker=%+v want 102", st.Last)
		}

		if !c.Verify(s, gacha.Sequence{gacha.Specific(101), gacha.Specific(102)}, gacha.Variant{}) {
			t.Fatalf("seed %d should verify 101,102", s)
		}
		if c.Verify(s, gacha.Sequence{gacha.Specific(101), gacha.Specific(101)}, gacha.Variant{}) {
			t.Fatalf("seed %d must not verify 101,101", s)
		}
		return
	}
	t.Fatal("no double-101 seed in range")
}

func TestNoRerollWhenDisabled(t *testing.T) {
	c := scenarioConfig()
	c.Pools[1] = []gacha.ItemID{101, 102}
	for s := uint32(1); s < 200_000; s++ {
		st := gacha.State{Seed: s, Last: gacha.Rare(101)}
		out, _ := c.Step(&st, gacha.Variant{}, 0)
		if out.Rerolled {
			t.Fatalf("seed %d rerolled with CanReroll=false", s)
		}
	}
}

func TestRerollExcludesDuplicateUniformly(t *testing.T) {
	c := scenarioConfig()
	c.Pools[1] = []gacha.ItemID{101, 102, 103, 104}
	c.CanReroll = true

	counts := map[gacha.ItemID]int{}
	salvaged := 0
	for s := uint32(1); salvaged < 30000; s++ {
		st := gacha.State{Seed: s}
		out, adv, ok := c.Salvage(&st, gacha.Normal)
		if !ok {
			continue
		}
		salvaged++
		if out.Item == out.Duplicate {
			t.Fatalf("seed %d rerolled onto the duplicate %d", s, out.Item)
		}
		if adv != 4 || out.Tier != gacha.RerollTier {
			t.Fatalf("seed %d: advances=%d tier=%d", s, adv, out.Tier)
		}
		if st.Last != gacha.Rare(out.Item) {
			t.Fatalf("salvage must track the salvaged item")
		}
		counts[out.Item]++
	}
	// each item is the result for 3 of the 4 possible duplicates, so shares should be ~1/4
	for id, n := range counts {
		share := float64(n) / float64(salvaged)
		if share < 0.22 || share > 0.28 {
			t.Fatalf("item %d share %.3f not uniform", id, share)
		}
	}
}

func TestEmptyPoolNeverMatches(t *testing.T) {
	c := scenarioConfig()
	c.Pools[2] = nil

	empties := 0
	for s := uint32(1); s < 100_000; s++ {
		st := gacha.State{Seed: s}
		out, _ := c.Step(&st, gacha.Variant{}, 0)
		if out.Kind != gacha.OutcomeEmpty {
			continue
		}
		empties++
		if out.Tier != 2 {
			t.Fatalf("seed %d: empty outcome at tier %d", s, out.Tier)
		}
		for _, pool := range c.Pools {
			for _, id := range pool {
				if out.Matches(gacha.Specific(id)) {
					t.Fatalf("empty outcome matched item %d", id)
				}
			}
		}
		if out.Matches(gacha.Featured()) {
			t.Fatalf("empty outcome matched featured")
		}
	}
	if empties == 0 {
		t.Fatal("no draw landed on the empty tier")
	}
}

func TestGuaranteedSlot(t *testing.T) {
	c := scenarioConfig()
	c.Guarantee = gacha.Guarantee{Tier3: true, Tier4: true, Rate3: 9000, Rate4: 1000}
	v := gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 1}

	for s := uint32(1); s < 2000; s++ {
		r := rolls(s, 2)
		wantTier := gacha.Tier(4)
		if r[0]%10000 < 9000 {
			wantTier = 3
		}
		pool := c.Pools[wantTier]
		want := pool[r[1]%uint32(len(pool))]

		for _, pos := range []int{0, 10} {
			st := gacha.State{Seed: s, Last: gacha.Rare(101)}
			out, adv := c.Step(&st, v, pos)
			if out.Kind != gacha.OutcomeItem || out.Tier != wantTier || out.Item != want || adv != 2 {
				t.Fatalf("seed %d pos %d: %+v advances=%d want tier %d item %d", s, pos, out, adv, wantTier, want)
			}
			if st.Last.Set {
				t.Fatalf("guaranteed draw must clear the tier-1 tracker")
			}
		}
	}

	// other positions draw normally, without the feature roll in Completed mode
	st := gacha.State{Seed: 12345}
	_, adv := c.Step(&st, v, 1)
	if adv != 2 {
		t.Fatalf("completed-mode regular draw used %d advances, want 2", adv)
	}
}

func TestGuaranteedSlotZeroWeight(t *testing.T) {
	c := scenarioConfig()
	v := gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 3}
	st := gacha.State{Seed: 777}
	out, adv := c.Step(&st, v, 2)
	if out.Kind != gacha.OutcomeEmpty || adv != 0 {
		t.Fatalf("zero-weight guaranteed slot: %+v advances=%d", out, adv)
	}
	if c.ValidateVariant(v) == nil {
		t.Fatal("zero guaranteed weight must fail variant validation")
	}
}

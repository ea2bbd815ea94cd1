package gacha_test

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/xorshift"
)

func rerollConfig() *gacha.Config {
	c := scenarioConfig()
	c.Pools[1] = []gacha.ItemID{101, 102}
	c.CanReroll = true
	c.Guarantee = gacha.Guarantee{Tier3: true, Tier4: true, Rate3: 8000, Rate4: 2000}
	return c
}

func TestSimulateRoundTrip(t *testing.T) {
	c := rerollConfig()
	variants := []gacha.Variant{
		{},
		{Completion: gacha.Completed},
		{Completion: gacha.Completed, GuaranteedSlot: 2},
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for _, v := range variants {
		for i := 0; i < 5000; i++ {
			seed := rng.Uint32()
			n := 1 + rng.IntN(gacha.MaxSequence)
			draws := c.Simulate(seed, n, v)
			seq, ok := gacha.Observe(draws)
			if !ok {
				t.Fatalf("seed %d produced an empty draw under a valid config", seed)
			}
			if !c.Verify(seed, seq, v) {
				t.Fatalf("seed %d variant %+v: simulated sequence %v does not verify", seed, v, seq)
			}
		}
	}
}

func TestSimulateTracksState(t *testing.T) {
	c := rerollConfig()
	draws := c.Simulate(4242, 10, gacha.Variant{})
	st := gacha.State{Seed: 4242}
	total := 0
	for i, d := range draws {
		out, adv := c.Step(&st, gacha.Variant{}, i)
		if out != d.Outcome || st.Seed != d.Seed || adv != d.Advances {
			t.Fatalf("draw %d: simulate=%+v step=%+v", i, d, out)
		}
		total += adv
	}
	if xorshift.Advance(4242, uint64(total)) != draws[len(draws)-1].Seed {
		t.Fatalf("final state is not %d advances from the seed", total)
	}
	if c.Simulate(1, 0, gacha.Variant{}) != nil {
		t.Fatalf("zero draws should return nil")
	}
}

func TestConfirmedSlotDoesNotDraw(t *testing.T) {
	c := rerollConfig()
	draws := c.Simulate(99, 3, gacha.Variant{})
	seq, _ := gacha.Observe(draws)

	padded := gacha.Sequence{gacha.AnyConfirmed(), seq[0], gacha.AnyConfirmed(), seq[1], seq[2], gacha.AnyConfirmed()}
	if !c.Verify(99, padded, gacha.Variant{}) {
		t.Fatalf("confirmed slots must match without consuming draws")
	}
	if !c.Verify(99, gacha.Sequence{gacha.AnyConfirmed()}, gacha.Variant{}) {
		t.Fatalf("a lone confirmed slot always matches")
	}
}

func TestVerifyShortCircuits(t *testing.T) {
	c := rerollConfig()
	draws := c.Simulate(31337, 4, gacha.Variant{})
	seq, _ := gacha.Observe(draws)
	wrong := append(gacha.Sequence{}, seq...)
	if wrong[1].Kind == gacha.SlotFeatured {
		wrong[1] = gacha.Specific(401)
	} else {
		wrong[1] = gacha.Featured()
	}
	if c.Verify(31337, wrong, gacha.Variant{}) {
		t.Fatalf("mismatched slot must fail")
	}
}

func TestVerifySalvage(t *testing.T) {
	c := scenarioConfig()
	c.Pools[1] = []gacha.ItemID{101, 102, 103}
	c.CanReroll = true

	found := 0
	for s := uint32(1); found < 50 && s < 1_000_000; s++ {
		st := gacha.State{Seed: s}
		out, _, ok := c.Salvage(&st, gacha.Normal)
		if !ok {
			continue
		}
		tail := c.Simulate(st.Seed, 3, gacha.Variant{})
		// the tail was drawn without the salvaged item as tracker; only keep seeds where
		// that made no difference
		withTracker := gacha.State{Seed: st.Seed, Last: gacha.Rare(out.Item)}
		first, _ := c.Step(&withTracker, gacha.Variant{}, 1)
		if first.Rerolled {
			continue
		}
		seq, _ := gacha.Observe(tail)
		target := append(gacha.Sequence{gacha.Specific(out.Item)}, seq...)

		dup, ok := c.VerifySalvage(s, target, gacha.Variant{})
		if !ok || dup != out.Duplicate {
			t.Fatalf("seed %d: VerifySalvage=(%d,%v) want (%d,true)", s, dup, ok, out.Duplicate)
		}
		// a guaranteed first slot is drawn from the guarantee, never rerolled
		if _, ok := c.VerifySalvage(s, target, gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 1}); ok {
			t.Fatalf("seed %d: salvage accepted on guaranteed slot 1", s)
		}
		found++
	}
	if found == 0 {
		t.Fatal("no salvage seed found")
	}

	if _, ok := c.VerifySalvage(1, nil, gacha.Variant{}); ok {
		t.Fatalf("empty target must not verify")
	}
}

func TestValidateConfig(t *testing.T) {
	if err := rerollConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := gacha.NewConfig(20000, [5]uint32{3000, 3000, 2500, 1300, 100},
		[5][]gacha.ItemID{{1}, {2}, nil, {4, 4}, {5}}, true)
	err := c.Validate()
	if !errors.Is(err, gacha.ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
	for _, want := range []string{"featured rate", "sum to 10000", "tier 2 has rate", "item 4 twice", "reroll needs"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestValidateVariant(t *testing.T) {
	c := rerollConfig()
	if err := c.ValidateVariant(gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 5}); err != nil {
		t.Fatalf("valid variant rejected: %v", err)
	}
	if err := c.ValidateVariant(gacha.Variant{GuaranteedSlot: -1}); !errors.Is(err, gacha.ErrVariant) {
		t.Fatalf("negative slot: %v", err)
	}
	c.Pools[4] = nil
	if err := c.ValidateVariant(gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 5}); err == nil {
		t.Fatalf("empty guaranteed pool must be rejected")
	}
	// guaranteed slots are ignored outside Completed mode
	if err := c.ValidateVariant(gacha.Variant{GuaranteedSlot: 5}); err != nil {
		t.Fatalf("normal mode variant rejected: %v", err)
	}
}

func TestValidateSequence(t *testing.T) {
	c := rerollConfig()
	if err := (gacha.Sequence{gacha.Featured(), gacha.Specific(101)}).Validate(c); err != nil {
		t.Fatalf("valid sequence rejected: %v", err)
	}
	if err := (gacha.Sequence{}).Validate(c); !errors.Is(err, gacha.ErrTarget) {
		t.Fatalf("empty sequence: %v", err)
	}
	if err := (gacha.Sequence{gacha.Specific(999)}).Validate(c); !errors.Is(err, gacha.ErrTarget) {
		t.Fatalf("unknown item: %v", err)
	}
	long := make(gacha.Sequence, gacha.MaxSequence+1)
	for i := range long {
		long[i] = gacha.Featured()
	}
	if err := long.Validate(c); !errors.Is(err, gacha.ErrTarget) {
		t.Fatalf("long sequence: %v", err)
	}
}

func TestSummarizeMatchesRates(t *testing.T) {
	c := scenarioConfig()
	tally := c.Summarize(2463534242, 400_000, gacha.Variant{})
	if tally.Draws != 400_000 || tally.Empty != 0 {
		t.Fatalf("draws=%d empty=%d", tally.Draws, tally.Empty)
	}
	if diff := tally.FeatureShare() - 0.05; diff > 0.003 || diff < -0.003 {
		t.Fatalf("feature share %f not close to 0.05", tally.FeatureShare())
	}
	for tier, rate := range c.RarityRates {
		want := 0.95 * float64(rate) / gacha.RollSpace
		if diff := tally.Share(gacha.Tier(tier)) - want; diff > 0.005 || diff < -0.005 {
			t.Fatalf("tier %d share %f want ~%f", tier, tally.Share(gacha.Tier(tier)), want)
		}
	}
}

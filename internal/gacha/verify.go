package gacha

// Verify reports whether drawing from seed reproduces target exactly.
func (c *Config) Verify(seed uint32, target Sequence, v Variant) bool {
	return c.VerifyFrom(State{Seed: seed}, target, v, 0)
}

// VerifyFrom checks target[from:] starting at st. Slots keep their position in target, so
// guaranteed slots line up when resuming part-way through a sequence.
//
// Confirmed slots neither draw nor touch st. The first mismatch stops the walk.
func (c *Config) VerifyFrom(st State, target Sequence, v Variant, from int) bool {
	for pos := from; pos < len(target); pos++ {
		slot := target[pos]
		if slot.Kind == SlotAnyFeaturedConfirmed {
			continue
		}
		out, _ := c.Step(&st, v, pos)
		if !out.Matches(slot) {
			return false
		}
	}
	return true
}

// VerifySalvage checks a sequence whose first slot is the result of a duplicate reroll.
// It returns the discarded duplicate when the whole sequence matches.
func (c *Config) VerifySalvage(seed uint32, target Sequence, v Variant) (dup ItemID, ok bool) {
	// a guaranteed first slot never rerolls
	if len(target) == 0 || v.GuaranteedAt(0) {
		return 0, false
	}
	st := State{Seed: seed}
	out, _, rerolled := c.Salvage(&st, v.Completion)
	if !rerolled || !out.Matches(target[0]) {
		return 0, false
	}
	if !c.VerifyFrom(st, target, v, 1) {
		return 0, false
	}
	return out.Duplicate, true
}

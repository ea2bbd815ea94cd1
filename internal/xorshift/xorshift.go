// Package xorshift implements the 32-bit xorshift generator (13/17/15) and its exact inverse.
package xorshift

// Next advances x by one step.
// 0 is a fixed point: Next(0) == 0.
func Next(x uint32) uint32 {
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 15
	return x
}

// Prev undoes one Next step, so Prev(Next(x)) == x and Next(Prev(y)) == y.
//
// Each xor-shift is undone in reverse order. A left shift by s is inverted by
// xoring in shifts by s, 2s, ... until the shift leaves the word (15 -> 15, 30;
// 13 -> 13, 26); the right shift by 17 needs a single term.
func Prev(y uint32) uint32 {
	y ^= y << 15
	y ^= y << 30
	y ^= y >> 17
	y ^= y << 13
	y ^= y << 26
	return y
}

// Advance applies Next n times.
func Advance(x uint32, n uint64) uint32 {
	for ; n > 0; n-- {
		x = Next(x)
	}
	return x
}

// Rewind applies Prev n times.
func Rewind(y uint32, n uint64) uint32 {
	for ; n > 0; n-- {
		y = Prev(y)
	}
	return y
}

// Period is the orbit length of every non-zero state.
const Period = 1<<32 - 1

// Rand is a stateful view of the generator that counts how many times it advanced.
// Not safe for concurrent use.
type Rand struct {
	state uint32
	steps int
}

// New returns a generator positioned at seed.
func New(seed uint32) Rand {
	return Rand{state: seed}
}

// Uint32 advances the state and returns the new value.
func (r *Rand) Uint32() uint32 {
	r.state = Next(r.state)
	r.steps++
	return r.state
}

// Roll advances the state and returns it reduced modulo n. n must be > 0.
func (r *Rand) Roll(n uint32) uint32 {
	return r.Uint32() % n
}

// State returns the current state without advancing.
func (r *Rand) State() uint32 { return r.state }

// Steps reports how many advances happened since New.
func (r *Rand) Steps() int { return r.steps }

package xorshift

import (
	"math/rand/v2"
	"os"
	"testing"
)

func TestNextKnownValues(t *testing.T) {
	// reference values from the 13/17/15 xorshift32 variant
	cases := []struct{ in, want uint32 }{
		{0, 0},
		{1, 268476417},
		{2463534242, 901999875},
	}
	for _, c := range cases {
		if got := Next(c.in); got != c.want {
			t.Fatalf("Next(%d)=%d want %d", c.in, got, c.want)
		}
	}
}

func TestPrevInvertsNext(t *testing.T) {
	edges := []uint32{0, 1, 2, 0x7fffffff, 0x80000000, 0xfffffffe, 0xffffffff, 0xdeadbeef}
	for _, x := range edges {
		if got := Prev(Next(x)); got != x {
			t.Fatalf("Prev(Next(%#x))=%#x", x, got)
		}
		if got := Next(Prev(x)); got != x {
			t.Fatalf("Next(Prev(%#x))=%#x", x, got)
		}
	}

	rng := rand.New(rand.NewPCG(42, 7))
	for i := 0; i < 1_000_000; i++ {
		x := rng.Uint32()
		if got := Prev(Next(x)); got != x {
			t.Fatalf("Prev(Next(%#x))=%#x", x, got)
		}
		if got := Next(Prev(x)); got != x {
			t.Fatalf("Next(Prev(%#x))=%#x", x, got)
		}
	}
}

// TestPrevInvertsNextExhaustive walks the whole 32-bit space; set XORSHIFT_EXHAUSTIVE=1 to run it.
func TestPrevInvertsNextExhaustive(t *testing.T) {
	if testing.Short() || os.Getenv("XORSHIFT_EXHAUSTIVE") == "" {
		t.Skip("exhaustive inverse check disabled")
	}
	x := uint32(0)
	for {
		if Prev(Next(x)) != x || Next(Prev(x)) != x {
			t.Fatalf("inverse broken at %#x", x)
		}
		x++
		if x == 0 {
			break
		}
	}
}

func TestAdvanceRewind(t *testing.T) {
	seed := uint32(123456789)
	for _, n := range []uint64{0, 1, 2, 17, 1000} {
		fwd := Advance(seed, n)
		if back := Rewind(fwd, n); back != seed {
			t.Fatalf("Rewind(Advance(seed,%d),%d)=%d want %d", n, n, back, seed)
		}
	}
	if Advance(seed, 3) != Next(Next(Next(seed))) {
		t.Fatalf("Advance does not match repeated Next")
	}
}

func TestRandCountsSteps(t *testing.T) {
	r := New(99)
	a := r.Uint32()
	b := r.Roll(10000)
	if a != Next(99) {
		t.Fatalf("first value=%d want %d", a, Next(99))
	}
	if b != Next(a)%10000 {
		t.Fatalf("roll=%d want %d", b, Next(a)%10000)
	}
	if r.Steps() != 2 || r.State() != Next(a) {
		t.Fatalf("steps=%d state=%d", r.Steps(), r.State())
	}
}

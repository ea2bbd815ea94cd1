package search

import (
	"context"

	"github.com/xtding233/gacha-seeker/internal/xorshift"
)

// Range is one task's slice of the enumeration space: Count positions starting Offset
// positions after the request start.
type Range struct {
	Offset uint64
	Count  uint64
}

// Partition splits n positions into at most workers disjoint, contiguous ranges covering
// [0, n) in order. The first n%workers ranges get one extra position. It always returns at
// least one range, so an empty search still reports completion.
func Partition(n uint64, workers int) []Range {
	w := uint64(max(workers, 1))
	if n < w {
		w = max(n, 1)
	}
	base, extra := n/w, n%w
	ranges := make([]Range, w)
	var off uint64
	for i := range ranges {
		c := base
		if uint64(i) < extra {
			c++
		}
		ranges[i] = Range{Offset: off, Count: c}
		off += c
	}
	return ranges
}

// cursor walks candidate start seeds in enumeration order.
type cursor interface {
	// batch consumes up to n positions and calls visit for every candidate among them.
	// If visit returns false the walk stops right after that candidate. It returns the
	// number of positions consumed.
	batch(n uint64, visit func(seed uint32) bool) uint64
	// resume is the next position that has not been consumed.
	resume() uint32
}

type counterCursor struct{ next uint32 }

func (c *counterCursor) batch(n uint64, visit func(uint32) bool) uint64 {
	for i := uint64(0); i < n; i++ {
		s := c.next
		c.next++
		if !visit(s) {
			return i + 1
		}
	}
	return n
}

func (c *counterCursor) resume() uint32 { return c.next }

type chainedCursor struct{ next uint32 }

func (c *chainedCursor) batch(n uint64, visit func(uint32) bool) uint64 {
	for i := uint64(0); i < n; i++ {
		s := c.next
		c.next = xorshift.Next(s)
		if !visit(s) {
			return i + 1
		}
	}
	return n
}

func (c *chainedCursor) resume() uint32 { return c.next }

// inverseCursor walks priority seeds, skips those failing the check and rewinds the rest
// by the check offset to get start seeds.
type inverseCursor struct {
	next  uint32
	check *PriorityCheck
	back  uint64
}

func (c *inverseCursor) batch(n uint64, visit func(uint32) bool) uint64 {
	if c.check.Comparator == EQ {
		return c.residues(n, visit)
	}
	for i := uint64(0); i < n; i++ {
		p := c.next
		c.next++
		if c.check.Holds(p) && !visit(xorshift.Rewind(p, c.back)) {
			return i + 1
		}
	}
	return n
}

// residues visits only p ≡ Value (mod Modulus) by stepping through the residue class.
func (c *inverseCursor) residues(n uint64, visit func(uint32) bool) uint64 {
	m, v := uint64(c.check.Modulus), uint64(c.check.Value)
	lo := uint64(c.next)
	hi := lo + n
	c.next = uint32(hi)
	if v >= m {
		return n
	}
	for p := lo + (v+m-lo%m)%m; p < hi; p += m {
		if !visit(xorshift.Rewind(uint32(p), c.back)) {
			c.next = uint32(p + 1)
			return p + 1 - lo
		}
	}
	return n
}

func (c *inverseCursor) resume() uint32 { return c.next }

// advanceStep bounds how long advanceTo runs between cancellation checks.
const advanceStep = 1 << 22

// advanceTo applies n generator steps to x, giving up early if ctx is cancelled.
func advanceTo(ctx context.Context, x uint32, n uint64) (uint32, error) {
	for n > 0 {
		if err := ctx.Err(); err != nil {
			return x, err
		}
		k := min(n, advanceStep)
		x = xorshift.Advance(x, k)
		n -= k
	}
	return x, nil
}

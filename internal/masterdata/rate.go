package masterdata

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-seeker/internal/gacha"
)

var (
	hundred   = decimal.NewFromInt(100)
	rollSpace = decimal.NewFromInt(gacha.RollSpace)
)

// ParseRate reads a draw rate as basis points of gacha.RollSpace. "500" is 500 per 10000;
// "5%" and "2.35%" are percentages. Rates must resolve to a whole number of basis points
// within [0, RollSpace].
func ParseRate(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	pct := strings.HasSuffix(s, "%")
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(s, "%")))
	if err != nil {
		return 0, fmt.Errorf("%w: rate %q: %v", ErrMaster, s, err)
	}
	if pct {
		d = d.Mul(hundred)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: rate %q is finer than 0.01%%", ErrMaster, s)
	}
	if d.IsNegative() || d.GreaterThan(rollSpace) {
		return 0, fmt.Errorf("%w: rate %q outside 0..100%%", ErrMaster, s)
	}
	return uint32(d.IntPart()), nil
}

// FormatRate renders basis points as a percentage, e.g. 235 -> "2.35%".
func FormatRate(bp uint32) string {
	return decimal.New(int64(bp), -2).StringFixed(2) + "%"
}

// ExpectedDraws is the mean number of draws until an event with probability bp/RollSpace.
// It returns zero for bp == 0.
func ExpectedDraws(bp uint32) decimal.Decimal {
	if bp == 0 {
		return decimal.Zero
	}
	return rollSpace.DivRound(decimal.NewFromInt(int64(bp)), 2)
}

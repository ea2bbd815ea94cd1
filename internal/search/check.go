package search

import (
	"fmt"
	"strings"
)

// Comparator relates a reduced generator value to PriorityCheck.Value.
type Comparator uint8

const (
	EQ Comparator = iota
	NE
	LT
	LE
	GT
	GE
)

var comparatorNames = [...]string{EQ: "==", NE: "!=", LT: "<", LE: "<=", GT: ">", GE: ">="}

func (c Comparator) String() string {
	if int(c) < len(comparatorNames) {
		return comparatorNames[c]
	}
	return fmt.Sprintf("Comparator(%d)", c)
}

// ParseComparator accepts the operator form ("==", "<=") or the mnemonic ("eq", "le").
func ParseComparator(s string) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=", "eq":
		return EQ, nil
	case "!=", "ne":
		return NE, nil
	case "<", "lt":
		return LT, nil
	case "<=", "le":
		return LE, nil
	case ">", "gt":
		return GT, nil
	case ">=", "ge":
		return GE, nil
	}
	return 0, fmt.Errorf("%w: unknown comparator %q", ErrRequest, s)
}

// PriorityCheck is a cheap necessary condition on the generator value
// TotalSeedOffset+SeedIndex advances after a candidate start seed:
//
//	value % Modulus <Comparator> Value
//
// Seeds failing it cannot match; seeds passing it still need full verification.
type PriorityCheck struct {
	SeedIndex       uint32
	TotalSeedOffset uint32
	Modulus         uint32
	Comparator      Comparator
	Value           uint32
}

// Offset is the number of advances between a start seed and the checked value.
func (p *PriorityCheck) Offset() uint64 {
	return uint64(p.SeedIndex) + uint64(p.TotalSeedOffset)
}

// Holds reports whether the priority seed v passes the check.
func (p *PriorityCheck) Holds(v uint32) bool {
	r := v % p.Modulus
	switch p.Comparator {
	case EQ:
		return r == p.Value
	case NE:
		return r != p.Value
	case LT:
		return r < p.Value
	case LE:
		return r <= p.Value
	case GT:
		return r > p.Value
	case GE:
		return r >= p.Value
	}
	return false
}

// Validate rejects checks that divide by zero or can never hold.
func (p *PriorityCheck) Validate() error {
	if p.Modulus == 0 {
		return fmt.Errorf("%w: priority check modulus must be positive", ErrRequest)
	}
	if p.Comparator > GE {
		return fmt.Errorf("%w: priority check has unknown comparator %d", ErrRequest, p.Comparator)
	}
	never := false
	switch p.Comparator {
	case EQ, GE:
		never = p.Value >= p.Modulus
	case LT:
		never = p.Value == 0
	case GT:
		never = p.Value >= p.Modulus-1
	case NE:
		never = p.Modulus == 1 && p.Value == 0
	}
	if never {
		return fmt.Errorf("%w: priority check %%%d %s %d can never hold", ErrRequest, p.Modulus, p.Comparator, p.Value)
	}
	return nil
}

func (p *PriorityCheck) String() string {
	return fmt.Sprintf("seed[%d+%d] %% %d %s %d", p.TotalSeedOffset, p.SeedIndex, p.Modulus, p.Comparator, p.Value)
}

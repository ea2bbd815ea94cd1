package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/xorshift"
)

var (
	ErrRequest = errors.New("invalid search request")
	// ErrUnknownMode is returned by ParseMode.
	ErrUnknownMode = errors.New("unknown search mode")
)

// Mode selects how candidate start seeds are enumerated.
type Mode uint8

const (
	// ForwardCounter tries start, start+1, ... and stops before wrapping past 2^32-1.
	ForwardCounter Mode = iota
	// ForwardChained tries the generator orbit start, Next(start), ...
	ForwardChained
	// InverseMapped scans priority seeds passing the check and rewinds each to a start seed.
	InverseMapped
	// RareSalvage looks for sequences whose first slot is the result of a duplicate reroll.
	RareSalvage
)

var modeNames = [...]string{
	ForwardCounter: "counter",
	ForwardChained: "chained",
	InverseMapped:  "inverse",
	RareSalvage:    "salvage",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// ParseMode maps a mode name as printed by String back to a Mode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if s == name {
			return Mode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Request is one search. Config, Target and Check are shared read-only by every task.
type Request struct {
	Start uint32
	// Count is the number of enumeration positions to cover. It is clamped to what the
	// mode can reach from Start, see Span.
	Count            uint64
	Mode             Mode
	Config           *gacha.Config
	Target           gacha.Sequence
	Check            *PriorityCheck
	Variant          gacha.Variant
	StopOnFirstFound bool
}

// Span returns Count clamped to the enumeration space of the mode. Counter and inverse scans end
// at 2^32-1; a chained scan ends when the orbit closes.
func (r *Request) Span() uint64 {
	var limit uint64
	switch r.enumeration() {
	case ForwardChained:
		limit = xorshift.Period
		if r.Start == 0 {
			limit = 1
		}
	default:
		limit = 1<<32 - uint64(r.Start)
	}
	return min(r.Count, limit)
}

// enumeration returns the mode whose candidate order the request follows. Rare-Salvage scans
// priority seeds when it has a check and counts up otherwise.
func (r *Request) enumeration() Mode {
	if r.Mode == RareSalvage {
		if r.Check != nil {
			return InverseMapped
		}
		return ForwardCounter
	}
	return r.Mode
}

// Validate checks everything that can be known before enumeration starts. All gacha defects are
// reported together.
func (r *Request) Validate() error {
	if r.Mode > RareSalvage {
		return fmt.Errorf("%w: mode %d", ErrUnknownMode, r.Mode)
	}
	if r.Config == nil {
		return fmt.Errorf("%w: no gacha config", ErrRequest)
	}
	var errs []error
	if err := r.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Config.ValidateVariant(r.Variant); err != nil {
		errs = append(errs, err)
	}
	if err := r.Target.Validate(r.Config); err != nil {
		errs = append(errs, err)
	}
	if r.Check != nil {
		if err := r.Check.Validate(); err != nil {
			errs = append(errs, err)
		}
	} else if r.Mode == InverseMapped {
		errs = append(errs, fmt.Errorf("%w: inverse mode needs a priority check", ErrRequest))
	}
	if r.Mode == RareSalvage {
		if err := r.validateSalvage(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Request) validateSalvage() error {
	if !r.Config.CanReroll {
		return fmt.Errorf("%w: salvage search needs a gacha that rerolls duplicates", ErrRequest)
	}
	if r.Variant.GuaranteedAt(0) {
		return fmt.Errorf("%w: salvage search cannot start on guaranteed slot %d", ErrRequest, r.Variant.GuaranteedSlot)
	}
	if len(r.Target) == 0 {
		return nil
	}
	first := r.Target[0]
	if first.Kind != gacha.SlotItem {
		return fmt.Errorf("%w: salvage search needs a specific item in slot 0, got %s", ErrRequest, first)
	}
	for _, id := range r.Config.Pools[gacha.RerollTier] {
		if id == first.Item {
			return nil
		}
	}
	return fmt.Errorf("%w: salvage item %d is not in the tier %d pool", ErrRequest, first.Item, gacha.RerollTier)
}

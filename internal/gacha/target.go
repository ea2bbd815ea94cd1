package gacha

import "fmt"

// SlotKind tags what a target slot accepts.
type SlotKind uint8

const (
	// SlotItem matches a non-feature draw of exactly Slot.Item.
	SlotItem SlotKind = iota
	// SlotFeatured matches a feature draw.
	SlotFeatured
	// SlotAnyFeaturedConfirmed always matches and does not consume a draw.
	SlotAnyFeaturedConfirmed
)

// Slot is one observed draw in a target sequence.
type Slot struct {
	Kind SlotKind
	Item ItemID
}

// Specific returns a slot matching item id.
func Specific(id ItemID) Slot { return Slot{Kind: SlotItem, Item: id} }

// Featured returns a slot matching a feature draw.
func Featured() Slot { return Slot{Kind: SlotFeatured} }

// AnyConfirmed returns a slot that matches without drawing.
func AnyConfirmed() Slot { return Slot{Kind: SlotAnyFeaturedConfirmed} }

func (s Slot) String() string {
	switch s.Kind {
	case SlotFeatured:
		return "featured"
	case SlotAnyFeaturedConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("#%d", s.Item)
	}
}

// Sequence is an ordered list of target slots, at most MaxSequence long.
type Sequence []Slot

// Matches reports whether the outcome satisfies slot s.
// An Empty outcome matches nothing a drawing slot asks for.
func (o Outcome) Matches(s Slot) bool {
	switch s.Kind {
	case SlotAnyFeaturedConfirmed:
		return true
	case SlotFeatured:
		return o.Kind == OutcomeFeature
	default:
		return o.Kind == OutcomeItem && o.Item == s.Item
	}
}

// Slot converts an outcome back to the slot that observes it.
// ok is false for Empty outcomes, which no slot can express.
func (o Outcome) Slot() (Slot, bool) {
	switch o.Kind {
	case OutcomeFeature:
		return Featured(), true
	case OutcomeItem:
		return Specific(o.Item), true
	}
	return Slot{}, false
}

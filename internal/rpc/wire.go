package rpc

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/search"
)

// ErrWire is returned for payloads that are not valid seeker.v1 messages.
var ErrWire = errors.New("malformed seeker message")

// SearchRequest is seeker.v1.SearchRequest. A request names its draw table either inline
// (Config) or by Game and Gacha, resolved on the server from its YAML definitions. Targets given
// by name need a named definition.
type SearchRequest struct {
	Start            uint32
	Count            uint64
	Mode             search.Mode
	Config           *gacha.Config
	Target           gacha.Sequence
	Check            *search.PriorityCheck
	Variant          gacha.Variant
	StopOnFirstFound bool

	Game        string
	Gacha       string
	TargetNames []string
	// UseVariant makes Variant override the definition's default variant.
	UseVariant bool
}

// SimulateRequest is seeker.v1.SimulateRequest.
type SimulateRequest struct {
	Config     *gacha.Config
	Game       string
	Gacha      string
	Seed       uint32
	Draws      uint32
	Variant    gacha.Variant
	UseVariant bool
}

// SimulateResponse is seeker.v1.SimulateResponse.
type SimulateResponse struct {
	Draws []gacha.Draw
}

// message is implemented by every type the codec carries.
type message interface {
	marshal() []byte
	unmarshal([]byte) error
}

// eventMessage adapts search.Event, which the stream sends as is.
type eventMessage struct{ *search.Event }

// encoder appends fields in proto3 form: zero scalars are omitted.
type encoder struct{ b []byte }

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.uint(num, 1)
	}
}

func (e *encoder) string(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

// bytes writes an embedded message. Empty messages are still written so presence survives.
func (e *encoder) bytes(num protowire.Number, p []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, p)
}

func (e *encoder) packed(num protowire.Number, vs []uint32) {
	if len(vs) == 0 {
		return
	}
	var p []byte
	for _, v := range vs {
		p = protowire.AppendVarint(p, uint64(v))
	}
	e.bytes(num, p)
}

// field decodes one field whose tag has been consumed. It returns the bytes used, or -1 to
// have the field skipped as unknown.
type field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func decode(b []byte, f field) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrWire, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := f(num, typ, b)
		if err != nil {
			return fmt.Errorf("%w: field %d: %w", ErrWire, num, err)
		}
		if m < 0 {
			if m = protowire.ConsumeFieldValue(num, typ, b); m < 0 {
				return fmt.Errorf("%w: %w", ErrWire, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

var errWireType = errors.New("unexpected wire type")

func varint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func u32(typ protowire.Type, b []byte, dst *uint32) (int, error) {
	v, n, err := varint(typ, b)
	if err == nil && v > 1<<32-1 {
		err = fmt.Errorf("value %d overflows uint32", v)
	}
	*dst = uint32(v)
	return n, err
}

func flag(typ protowire.Type, b []byte, dst *bool) (int, error) {
	v, n, err := varint(typ, b)
	*dst = v != 0
	return n, err
}

func bytesField(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType
	}
	p, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return p, n, nil
}

// repeatedU32 accepts both packed and unpacked encodings.
func repeatedU32(typ protowire.Type, b []byte, dst *[]uint32) (int, error) {
	if typ == protowire.VarintType {
		var v uint32
		n, err := u32(typ, b, &v)
		*dst = append(*dst, v)
		return n, err
	}
	p, n, err := bytesField(typ, b)
	if err != nil {
		return 0, err
	}
	for len(p) > 0 {
		v, m := protowire.ConsumeVarint(p)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		*dst = append(*dst, uint32(v))
		p = p[m:]
	}
	return n, nil
}

// GachaConfig
//
//	1 featured_rate  2 rarity_rates (packed)  3 pools (Pool)  4 can_reroll  5 guarantee
//
// Pool: 1 items (packed). Guarantee: 1 tier3  2 tier4  3 rate3  4 rate4.
func marshalConfig(c *gacha.Config) []byte {
	var e encoder
	e.uint(1, uint64(c.FeaturedRate))
	e.packed(2, c.RarityRates[:])
	for _, pool := range c.Pools {
		var p encoder
		items := make([]uint32, len(pool))
		for i, id := range pool {
			items[i] = uint32(id)
		}
		p.packed(1, items)
		e.bytes(3, p.b)
	}
	e.bool(4, c.CanReroll)
	if g := c.Guarantee; g != (gacha.Guarantee{}) {
		var ge encoder
		ge.bool(1, g.Tier3)
		ge.bool(2, g.Tier4)
		ge.uint(3, uint64(g.Rate3))
		ge.uint(4, uint64(g.Rate4))
		e.bytes(5, ge.b)
	}
	return e.b
}

func unmarshalConfig(b []byte) (*gacha.Config, error) {
	var (
		featured uint32
		rates    []uint32
		pools    [gacha.RarityTiers][]gacha.ItemID
		tiers    int
		reroll   bool
		g        gacha.Guarantee
	)
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32(typ, b, &featured)
		case 2:
			return repeatedU32(typ, b, &rates)
		case 3:
			p, n, err := bytesField(typ, b)
			if err != nil {
				return 0, err
			}
			if tiers >= gacha.RarityTiers {
				return 0, fmt.Errorf("more than %d pools", gacha.RarityTiers)
			}
			var items []uint32
			if err := decode(p, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num == 1 {
					return repeatedU32(typ, b, &items)
				}
				return -1, nil
			}); err != nil {
				return 0, err
			}
			for _, id := range items {
				pools[tiers] = append(pools[tiers], gacha.ItemID(id))
			}
			tiers++
			return n, nil
		case 4:
			return flag(typ, b, &reroll)
		case 5:
			p, n, err := bytesField(typ, b)
			if err != nil {
				return 0, err
			}
			return n, decode(p, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					return flag(typ, b, &g.Tier3)
				case 2:
					return flag(typ, b, &g.Tier4)
				case 3:
					return u32(typ, b, &g.Rate3)
				case 4:
					return u32(typ, b, &g.Rate4)
				}
				return -1, nil
			})
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	if len(rates) > gacha.RarityTiers {
		return nil, fmt.Errorf("%w: %d rarity rates", ErrWire, len(rates))
	}
	var rr [gacha.RarityTiers]uint32
	copy(rr[:], rates)
	c := gacha.NewConfig(featured, rr, pools, reroll)
	c.Guarantee = g
	return c, nil
}

// Slot: 1 kind  2 item
func marshalSlot(s gacha.Slot) []byte {
	var e encoder
	e.uint(1, uint64(s.Kind))
	e.uint(2, uint64(s.Item))
	return e.b
}

func unmarshalSlot(b []byte) (gacha.Slot, error) {
	var kind, item uint32
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32(typ, b, &kind)
		case 2:
			return u32(typ, b, &item)
		}
		return -1, nil
	})
	if kind > uint32(gacha.SlotAnyFeaturedConfirmed) {
		err = errors.Join(err, fmt.Errorf("%w: slot kind %d", ErrWire, kind))
	}
	return gacha.Slot{Kind: gacha.SlotKind(kind), Item: gacha.ItemID(item)}, err
}

// PriorityCheck: 1 seed_index  2 total_seed_offset  3 modulus  4 comparator  5 value
func marshalCheck(c *search.PriorityCheck) []byte {
	var e encoder
	e.uint(1, uint64(c.SeedIndex))
	e.uint(2, uint64(c.TotalSeedOffset))
	e.uint(3, uint64(c.Modulus))
	e.uint(4, uint64(c.Comparator))
	e.uint(5, uint64(c.Value))
	return e.b
}

func unmarshalCheck(b []byte) (*search.PriorityCheck, error) {
	var (
		c    search.PriorityCheck
		comp uint32
	)
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32(typ, b, &c.SeedIndex)
		case 2:
			return u32(typ, b, &c.TotalSeedOffset)
		case 3:
			return u32(typ, b, &c.Modulus)
		case 4:
			return u32(typ, b, &comp)
		case 5:
			return u32(typ, b, &c.Value)
		}
		return -1, nil
	})
	// out-of-range comparators are left for PriorityCheck.Validate to report in band
	c.Comparator = search.Comparator(min(comp, 255))
	return &c, err
}

// Variant: 1 completion  2 guaranteed_slot
func marshalVariant(v gacha.Variant) []byte {
	var e encoder
	e.uint(1, uint64(v.Completion))
	e.uint(2, uint64(v.GuaranteedSlot))
	return e.b
}

func unmarshalVariant(b []byte) (gacha.Variant, error) {
	var completion, slot uint32
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32(typ, b, &completion)
		case 2:
			return u32(typ, b, &slot)
		}
		return -1, nil
	})
	if err == nil && slot > gacha.MaxSequence {
		err = fmt.Errorf("%w: guaranteed slot %d", ErrWire, slot)
	}
	return gacha.Variant{Completion: gacha.Completion(min(completion, 255)), GuaranteedSlot: int(slot)}, err
}

// SearchRequest
//
//	1 start  2 count  3 mode  4 config  5 target (Slot)  6 check  7 variant
//	8 stop_on_first_found  9 game  10 gacha  11 target_names  12 use_variant
func (r *SearchRequest) marshal() []byte {
	var e encoder
	e.uint(1, uint64(r.Start))
	e.uint(2, r.Count)
	e.uint(3, uint64(r.Mode))
	if r.Config != nil {
		e.bytes(4, marshalConfig(r.Config))
	}
	for _, s := range r.Target {
		e.bytes(5, marshalSlot(s))
	}
	if r.Check != nil {
		e.bytes(6, marshalCheck(r.Check))
	}
	if r.Variant != (gacha.Variant{}) {
		e.bytes(7, marshalVariant(r.Variant))
	}
	e.bool(8, r.StopOnFirstFound)
	e.string(9, r.Game)
	e.string(10, r.Gacha)
	for _, name := range r.TargetNames {
		e.bytes(11, []byte(name))
	}
	e.bool(12, r.UseVariant)
	return e.b
}

func (r *SearchRequest) unmarshal(b []byte) error {
	*r = SearchRequest{}
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32(typ, b, &r.Start)
		case 2:
			v, n, err := varint(typ, b)
			r.Count = v
			return n, err
		case 3:
			var m uint32
			n, err := u32(typ, b, &m)
			r.Mode = search.Mode(min(m, 255))
			return n, err
		case 4, 5, 6, 7, 9, 10, 11:
			p, n, err := bytesField(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case 4:
				r.Config, err = unmarshalConfig(p)
			case 5:
				var s gacha.Slot
				s, err = unmarshalSlot(p)
				r.Target = append(r.Target, s)
			case 6:
				r.Check, err = unmarshalCheck(p)
			case 7:
				r.Variant, err = unmarshalVariant(p)
			case 9:
				r.Game = string(p)
			case 10:
				r.Gacha = string(p)
			case 11:
				r.TargetNames = append(r.TargetNames, string(p))
			}
			return n, err
		case 8:
			return flag(typ, b, &r.StopOnFirstFound)
		case 12:
			return flag(typ, b, &r.UseVariant)
		}
		return -1, nil
	})
}

// Event
//
//	1 kind  2 task  3 seed  4 duplicate  5 has_duplicate  6 processed  7 resume_seed
//	8 canceled  9 reason
func (m eventMessage) marshal() []byte {
	ev := m.Event
	var e encoder
	e.uint(1, uint64(ev.Kind))
	e.uint(2, uint64(ev.Task))
	e.uint(3, uint64(ev.Seed))
	e.uint(4, uint64(ev.Duplicate))
	e.bool(5, ev.HasDuplicate)
	e.uint(6, ev.Processed)
	e.uint(7, uint64(ev.ResumeSeed))
	e.bool(8, ev.Canceled)
	e.string(9, ev.Reason)
	return e.b
}

func (m eventMessage) unmarshal(b []byte) error {
	ev := m.Event
	*ev = search.Event{}
	var kind, task, dup uint32
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return u32(typ, b, &kind)
		case 2:
			return u32(typ, b, &task)
		case 3:
			return u32(typ, b, &ev.Seed)
		case 4:
			return u32(typ, b, &dup)
		case 5:
			return flag(typ, b, &ev.HasDuplicate)
		case 6:
			v, n, err := varint(typ, b)
			ev.Processed = v
			return n, err
		case 7:
			return u32(typ, b, &ev.ResumeSeed)
		case 8:
			return flag(typ, b, &ev.Canceled)
		case 9:
			p, n, err := bytesField(typ, b)
			ev.Reason = string(p)
			return n, err
		}
		return -1, nil
	})
	ev.Kind = search.EventKind(min(kind, 255))
	ev.Task = int(task)
	ev.Duplicate = gacha.ItemID(dup)
	return err
}

// SimulateRequest
//
//	1 config  2 game  3 gacha  4 seed  5 draws  6 variant  7 use_variant
func (r *SimulateRequest) marshal() []byte {
	var e encoder
	if r.Config != nil {
		e.bytes(1, marshalConfig(r.Config))
	}
	e.string(2, r.Game)
	e.string(3, r.Gacha)
	e.uint(4, uint64(r.Seed))
	e.uint(5, uint64(r.Draws))
	if r.Variant != (gacha.Variant{}) {
		e.bytes(6, marshalVariant(r.Variant))
	}
	e.bool(7, r.UseVariant)
	return e.b
}

func (r *SimulateRequest) unmarshal(b []byte) error {
	*r = SimulateRequest{}
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1, 2, 3, 6:
			p, n, err := bytesField(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case 1:
				r.Config, err = unmarshalConfig(p)
			case 2:
				r.Game = string(p)
			case 3:
				r.Gacha = string(p)
			case 6:
				r.Variant, err = unmarshalVariant(p)
			}
			return n, err
		case 4:
			return u32(typ, b, &r.Seed)
		case 5:
			return u32(typ, b, &r.Draws)
		case 7:
			return flag(typ, b, &r.UseVariant)
		}
		return -1, nil
	})
}

// SimulateResponse: 1 draws (Draw)
//
// Draw: 1 kind  2 item  3 tier  4 rerolled  5 duplicate  6 seed  7 advances
func (r *SimulateResponse) marshal() []byte {
	var e encoder
	for _, d := range r.Draws {
		var de encoder
		de.uint(1, uint64(d.Kind))
		de.uint(2, uint64(d.Item))
		de.uint(3, uint64(d.Tier))
		de.bool(4, d.Rerolled)
		de.uint(5, uint64(d.Duplicate))
		de.uint(6, uint64(d.Seed))
		de.uint(7, uint64(d.Advances))
		e.bytes(1, de.b)
	}
	return e.b
}

func (r *SimulateResponse) unmarshal(b []byte) error {
	*r = SimulateResponse{}
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return -1, nil
		}
		p, n, err := bytesField(typ, b)
		if err != nil {
			return 0, err
		}
		var (
			d                          gacha.Draw
			kind, item, tier, dup, adv uint32
		)
		err = decode(p, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1:
				return u32(typ, b, &kind)
			case 2:
				return u32(typ, b, &item)
			case 3:
				return u32(typ, b, &tier)
			case 4:
				return flag(typ, b, &d.Rerolled)
			case 5:
				return u32(typ, b, &dup)
			case 6:
				return u32(typ, b, &d.Seed)
			case 7:
				return u32(typ, b, &adv)
			}
			return -1, nil
		})
		d.Kind = gacha.OutcomeKind(min(kind, 255))
		d.Item = gacha.ItemID(item)
		d.Tier = gacha.Tier(tier)
		d.Duplicate = gacha.ItemID(dup)
		d.Advances = int(adv)
		r.Draws = append(r.Draws, d)
		return n, err
	})
}

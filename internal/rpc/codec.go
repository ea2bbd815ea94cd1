package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/xtding233/gacha-seeker/internal/search"
)

// Name is the content subtype the seeker messages travel under ("application/grpc+seekwire").
// Other services on the same server, health included, keep the default proto codec.
const Name = "seekwire"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec encodes the seeker.v1 messages with protowire, without generated code.
type Codec struct{}

func (Codec) Name() string { return Name }

func (Codec) Marshal(v any) ([]byte, error) {
	m, err := asMessage(v)
	if err != nil {
		return nil, err
	}
	return m.marshal(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, err := asMessage(v)
	if err != nil {
		return err
	}
	return m.unmarshal(data)
}

func asMessage(v any) (message, error) {
	switch m := v.(type) {
	case message:
		return m, nil
	case *search.Event:
		return eventMessage{m}, nil
	}
	return nil, fmt.Errorf("%w: cannot encode %T", ErrWire, v)
}

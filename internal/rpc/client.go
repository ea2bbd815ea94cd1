package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xtding233/gacha-seeker/internal/search"
)

// ErrRemote carries the reason of an in-band Error event.
var ErrRemote = errors.New("search rejected by server")

// Dial opens a plaintext connection to a seeker server. opts are appended to the defaults.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)),
	}, opts...)
	return grpc.NewClient(target, opts...)
}

// Client is the client API of seeker.v1.Seeker. It works on any connection: every call selects
// the seekwire codec itself.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Search runs a remote search and hands each event to fn in stream order. It returns fn's
// error, if any, after cancelling the call.
func (c *Client) Search(ctx context.Context, req *SearchRequest, fn func(search.Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], searchMethod, grpc.CallContentSubtype(Name))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var ev search.Event
		err := stream.RecvMsg(&ev)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// Collect runs a remote search to completion. An in-band Error event becomes ErrRemote.
func (c *Client) Collect(ctx context.Context, req *SearchRequest) (*search.Result, error) {
	res := &search.Result{}
	err := c.Search(ctx, req, func(ev search.Event) error {
		if ev.Kind == search.EventError {
			return fmt.Errorf("%w: %s", ErrRemote, ev.Reason)
		}
		res.Add(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Simulate(ctx context.Context, req *SimulateRequest) (*SimulateResponse, error) {
	out := new(SimulateResponse)
	if err := c.cc.Invoke(ctx, simulateMethod, req, out, grpc.CallContentSubtype(Name)); err != nil {
		return nil, err
	}
	return out, nil
}

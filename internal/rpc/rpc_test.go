package rpc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/game"
	"github.com/xtding233/gacha-seeker/internal/search"
)

func testConfig() *gacha.Config {
	c := gacha.NewConfig(500,
		[5]uint32{3000, 3000, 2500, 1300, 200},
		[5][]gacha.ItemID{
			{11, 12, 13, 14},
			{101, 102, 103},
			{201, 202},
			{301, 302},
			{401},
		}, true)
	c.Guarantee = gacha.Guarantee{Tier3: true, Tier4: true, Rate3: 9000, Rate4: 1000}
	return c
}

var featuredThen101 = gacha.Sequence{gacha.Featured(), gacha.Specific(101)}

func TestCodecSearchRequest(t *testing.T) {
	is := is.New(t)
	in := &SearchRequest{
		Start:            1 << 31,
		Count:            1<<32 + 5,
		Mode:             search.InverseMapped,
		Config:           testConfig(),
		Target:           gacha.Sequence{gacha.AnyConfirmed(), gacha.Featured(), gacha.Specific(401)},
		Check:            &search.PriorityCheck{SeedIndex: 2, TotalSeedOffset: 7, Modulus: 10000, Comparator: search.GE, Value: 9800},
		Variant:          gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 10},
		StopOnFirstFound: true,
		Game:             "demo",
		Gacha:            "summer",
		TargetNames:      []string{"目玉", "Iron Sword"},
		UseVariant:       true,
	}
	b, err := Codec{}.Marshal(in)
	is.NoErr(err)
	out := new(SearchRequest)
	is.NoErr(Codec{}.Unmarshal(b, out))
	is.Equal(out, in)

	// an empty request decodes to the zero value
	b, err = Codec{}.Marshal(&SearchRequest{})
	is.NoErr(err)
	is.Equal(len(b), 0)
	is.NoErr(Codec{}.Unmarshal(b, out))
	is.Equal(out, &SearchRequest{})
}

func TestCodecEvent(t *testing.T) {
	is := is.New(t)
	for _, in := range []search.Event{
		{Kind: search.EventFound, Task: 3, Hit: search.Hit{Seed: 0xdeadbeef, Duplicate: 102, HasDuplicate: true}},
		{Kind: search.EventProgress, Task: 1, Processed: 100_000},
		{Kind: search.EventDone, Task: 7, Processed: 1 << 33, ResumeSeed: 42, Canceled: true},
		{Kind: search.EventError, Reason: "inverse mode needs a priority check"},
	} {
		b, err := Codec{}.Marshal(&in)
		is.NoErr(err)
		var out search.Event
		is.NoErr(Codec{}.Unmarshal(b, &out))
		is.Equal(out, in)
	}
}

func TestCodecSimulateResponse(t *testing.T) {
	is := is.New(t)
	in := &SimulateResponse{Draws: testConfig().Simulate(12345, 30, gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 4})}
	b, err := Codec{}.Marshal(in)
	is.NoErr(err)
	out := new(SimulateResponse)
	is.NoErr(Codec{}.Unmarshal(b, out))
	is.Equal(out, in)
}

func TestCodecSkipsUnknownFields(t *testing.T) {
	is := is.New(t)
	in := &SearchRequest{Start: 9, Count: 10, Target: featuredThen101}
	b := in.marshal()
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "from a newer client")
	b = protowire.AppendTag(b, 98, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	out := new(SearchRequest)
	is.NoErr(out.unmarshal(b))
	is.Equal(out, in)
}

func TestCodecRejects(t *testing.T) {
	is := is.New(t)
	_, err := Codec{}.Marshal("not a message")
	is.True(errors.Is(err, ErrWire))

	err = Codec{}.Unmarshal([]byte{0xff}, new(SearchRequest))
	is.True(errors.Is(err, ErrWire))

	// start sent as a string
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "1000")
	err = Codec{}.Unmarshal(b, new(SearchRequest))
	is.True(errors.Is(err, ErrWire))

	// six pools
	var e encoder
	for range 6 {
		e.bytes(3, nil)
	}
	_, err = unmarshalConfig(e.b)
	is.True(errors.Is(err, ErrWire))
}

const definitions = `
draw:
  featured_rate: 500
  rarity_rates: [3000, 3000, 2500, 1300, 200]
  can_reroll: true
guarantee:
  tier3: true
  tier4: true
  rate3: "90%"
  rate4: "10%"
pools:
  - [11, 12, 13, 14]
  - [101, 102, 103]
  - [201, 202]
  - [301, 302]
  - [401]
items:
  Iron Sword: 101
`

func gamesDir(t *testing.T) *game.Loader {
	t.Helper()
	l := game.NewLoader(t.TempDir())
	p := l.Paths().GamePath("demo")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(definitions), 0o644); err != nil {
		t.Fatal(err)
	}
	return l
}

// serve starts a seeker server with a health service on an in-memory listener.
func serve(t *testing.T, opts ...ServerOption) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	co := search.NewCoordinator(search.WithWorkers(4), search.WithBatchSizes(10_000, 0))
	Register(gs, NewServer(co, opts...))
	healthpb.RegisterHealthServer(gs, health.NewServer())
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cc.Close() })
	return cc
}

func TestSearchMatchesLocal(t *testing.T) {
	is := is.New(t)
	cc := serve(t)
	req := &search.Request{Start: 5000, Count: 120_000, Config: testConfig(), Target: featuredThen101}
	local, err := search.NewCoordinator(search.WithWorkers(2)).Collect(context.Background(), req)
	is.NoErr(err)
	is.True(len(local.Hits) > 0)

	remote, err := NewClient(cc).Collect(context.Background(), &SearchRequest{
		Start: req.Start, Count: req.Count, Config: req.Config, Target: req.Target,
	})
	is.NoErr(err)
	is.Equal(remote.Seeds(), local.Seeds())
	is.Equal(remote.Processed, req.Count)
	is.Equal(len(remote.Tasks), 4)
}

func TestSearchStopOnFirstFound(t *testing.T) {
	is := is.New(t)
	cc := serve(t)
	terminal := map[int]search.EventKind{}
	err := NewClient(cc).Search(context.Background(), &SearchRequest{
		Count: 1 << 32, Config: testConfig(), Target: featuredThen101, StopOnFirstFound: true,
	}, func(ev search.Event) error {
		if ev.Terminal() {
			_, dup := terminal[ev.Task]
			is.True(!dup) // one terminal event per task
			terminal[ev.Task] = ev.Kind
		}
		return nil
	})
	is.NoErr(err)
	is.Equal(len(terminal), 4)
	var stops int
	for _, k := range terminal {
		if k == search.EventStopFound {
			stops++
		}
	}
	is.True(stops >= 1)
}

func TestSearchValidationInBand(t *testing.T) {
	is := is.New(t)
	cc := serve(t)
	var events []search.Event
	err := NewClient(cc).Search(context.Background(), &SearchRequest{
		Count: 10, Mode: search.InverseMapped, Config: testConfig(), Target: featuredThen101,
	}, func(ev search.Event) error {
		events = append(events, ev)
		return nil
	})
	is.NoErr(err)
	is.Equal(len(events), 1)
	is.Equal(events[0].Kind, search.EventError)

	_, err = NewClient(cc).Collect(context.Background(), &SearchRequest{Count: 10, Target: featuredThen101})
	is.True(errors.Is(err, ErrRemote)) // neither a config nor a game
}

func TestSearchByName(t *testing.T) {
	is := is.New(t)
	cc := serve(t, WithResolver(gamesDir(t)))
	c := NewClient(cc)

	res, err := c.Collect(context.Background(), &SearchRequest{
		Start: 5000, Count: 50_000, Game: "demo", TargetNames: []string{"目玉", "Iron Sword"},
	})
	is.NoErr(err)
	local, err := search.NewCoordinator().Collect(context.Background(),
		&search.Request{Start: 5000, Count: 50_000, Config: testConfig(), Target: featuredThen101})
	is.NoErr(err)
	is.Equal(res.Seeds(), local.Seeds())

	_, err = c.Collect(context.Background(), &SearchRequest{Count: 1, Game: "nope", TargetNames: []string{"目玉"}})
	is.Equal(status.Code(err), codes.NotFound)

	_, err = c.Collect(context.Background(), &SearchRequest{Count: 1, Game: "demo", TargetNames: []string{"Wooden Spoon"}})
	is.True(errors.Is(err, ErrRemote))
}

func TestSearchWithoutDefinitions(t *testing.T) {
	is := is.New(t)
	cc := serve(t)
	_, err := NewClient(cc).Collect(context.Background(), &SearchRequest{Count: 1, Game: "demo", Target: featuredThen101})
	is.Equal(status.Code(err), codes.FailedPrecondition)
}

func TestSearchMaxCount(t *testing.T) {
	is := is.New(t)
	cc := serve(t, WithMaxCount(1000))
	_, err := NewClient(cc).Collect(context.Background(), &SearchRequest{Count: 1001, Config: testConfig(), Target: featuredThen101})
	is.Equal(status.Code(err), codes.InvalidArgument)
}

func TestSearchMaxConcurrent(t *testing.T) {
	is := is.New(t)
	cc := serve(t, WithMaxConcurrent(1))
	c := NewClient(cc)

	// hold the only slot: a full-space search with a stalled reader cannot finish
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.Search(ctx, &SearchRequest{Count: 1 << 32, Config: testConfig(), Target: featuredThen101},
			func(search.Event) error {
				close(first)
				<-ctx.Done()
				return ctx.Err()
			})
	}()
	<-first
	_, err := c.Collect(context.Background(), &SearchRequest{Count: 10, Config: testConfig(), Target: featuredThen101})
	is.Equal(status.Code(err), codes.ResourceExhausted)
	cancel()
	is.True(errors.Is(<-done, context.Canceled))
}

func TestSimulate(t *testing.T) {
	is := is.New(t)
	cc := serve(t, WithResolver(gamesDir(t)))
	c := NewClient(cc)
	v := gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 2}

	out, err := c.Simulate(context.Background(), &SimulateRequest{Config: testConfig(), Seed: 777, Draws: 20, Variant: v, UseVariant: true})
	is.NoErr(err)
	is.Equal(out.Draws, testConfig().Simulate(777, 20, v))

	named, err := c.Simulate(context.Background(), &SimulateRequest{Game: "demo", Seed: 777, Draws: 20})
	is.NoErr(err)
	is.Equal(named.Draws, testConfig().Simulate(777, 20, gacha.Variant{}))

	_, err = c.Simulate(context.Background(), &SimulateRequest{Config: testConfig(), Draws: MaxSimulateDraws + 1})
	is.Equal(status.Code(err), codes.InvalidArgument)

	_, err = c.Simulate(context.Background(), &SimulateRequest{Config: testConfig(), Draws: 1, Variant: gacha.Variant{Completion: gacha.Completed, GuaranteedSlot: 1}, UseVariant: true})
	is.NoErr(err)
}

func TestHealth(t *testing.T) {
	is := is.New(t)
	cc := serve(t)
	resp, err := healthpb.NewHealthClient(cc).Check(context.Background(), &healthpb.HealthCheckRequest{})
	is.NoErr(err)
	is.Equal(resp.GetStatus(), healthpb.HealthCheckResponse_SERVING)
}

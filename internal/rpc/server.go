package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/game"
	"github.com/xtding233/gacha-seeker/internal/masterdata"
	"github.com/xtding233/gacha-seeker/internal/search"
)

const (
	ServiceName    = "seeker.v1.Seeker"
	searchMethod   = "/" + ServiceName + "/Search"
	simulateMethod = "/" + ServiceName + "/Simulate"

	// MaxSimulateDraws caps one Simulate call.
	MaxSimulateDraws = 1000
)

// SeekerServer is the server API of seeker.v1.Seeker.
type SeekerServer interface {
	Search(*SearchRequest, SearchStream) error
	Simulate(context.Context, *SimulateRequest) (*SimulateResponse, error)
}

// SearchStream is the server side of a Search call.
type SearchStream interface {
	Send(*search.Event) error
	Context() context.Context
}

type searchStream struct{ grpc.ServerStream }

func (s searchStream) Send(e *search.Event) error { return s.SendMsg(e) }

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SeekerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: simulateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Search", Handler: searchHandler, ServerStreams: true},
	},
	Metadata: "seeker/v1/seeker.proto",
}

// Register adds srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv SeekerServer) {
	s.RegisterService(&serviceDesc, srv)
}

func searchHandler(srv any, stream grpc.ServerStream) error {
	req := new(SearchRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SeekerServer).Search(req, searchStream{stream})
}

func simulateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SimulateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SeekerServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: simulateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SeekerServer).Simulate(ctx, req.(*SimulateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithResolver lets requests name a gacha definition instead of sending the table.
func WithResolver(r game.Resolver) ServerOption {
	return func(s *Server) { s.games = r }
}

// WithMaxCount rejects searches asking for more than n positions. 0 means no cap.
func WithMaxCount(n uint64) ServerOption {
	return func(s *Server) { s.maxCount = n }
}

// WithMaxConcurrent caps searches running at once. Calls over the cap fail with
// ResourceExhausted instead of queueing. n <= 0 means no cap.
func WithMaxConcurrent(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		} else {
			s.slots = nil
		}
	}
}

func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server implements SeekerServer on a search.Coordinator.
type Server struct {
	coord    *search.Coordinator
	games    game.Resolver
	maxCount uint64
	slots    chan struct{}
	log      *zap.Logger
}

var _ SeekerServer = (*Server)(nil)

func NewServer(coord *search.Coordinator, opts ...ServerOption) *Server {
	s := &Server{coord: coord, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search streams the events of one search. Requests that fail validation get a single Error
// event and a clean end of stream; lookup and capacity failures are gRPC status errors.
func (s *Server) Search(in *SearchRequest, stream SearchStream) error {
	ctx := stream.Context()
	if !s.acquire() {
		return status.Error(codes.ResourceExhausted, "too many searches running")
	}
	defer s.release()

	if s.maxCount > 0 && in.Count > s.maxCount {
		return status.Errorf(codes.InvalidArgument, "count %d exceeds the server limit of %d", in.Count, s.maxCount)
	}
	req, err := s.request(in)
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return err
		}
		ev := search.ErrorEvent(err)
		return stream.Send(&ev)
	}

	log := s.log.With(
		zap.Stringer("mode", req.Mode),
		zap.Uint32("start", req.Start),
		zap.Uint64("count", req.Count),
		zap.String("game", in.Game),
		zap.String("gacha", in.Gacha),
	)
	events, err := s.coord.Stream(ctx, req)
	if err != nil {
		log.Info("search rejected", zap.Error(err))
		ev := search.ErrorEvent(err)
		return stream.Send(&ev)
	}

	began := time.Now()
	var res search.Result
	for ev := range events {
		res.Add(ev)
		if err := stream.Send(&ev); err != nil {
			log.Warn("search stream closed", zap.Error(err))
			return err
		}
	}
	log.Info("search finished",
		zap.Int("hits", len(res.Hits)),
		zap.Uint64("processed", res.Processed),
		zap.Bool("stopped", res.Stop != nil),
		zap.Duration("took", time.Since(began)),
	)
	return nil
}

// Simulate draws from a seed the way a player would see it.
func (s *Server) Simulate(ctx context.Context, in *SimulateRequest) (*SimulateResponse, error) {
	if in.Draws > MaxSimulateDraws {
		return nil, status.Errorf(codes.InvalidArgument, "draws %d exceeds %d", in.Draws, MaxSimulateDraws)
	}
	res, err := s.table(in.Config, in.Game, in.Gacha)
	if err != nil {
		return nil, asStatus(err)
	}
	v := res.Variant
	if in.UseVariant {
		v = in.Variant
	}
	if err := errors.Join(res.Config.Validate(), res.Config.ValidateVariant(v)); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &SimulateResponse{Draws: res.Config.Simulate(in.Seed, int(in.Draws), v)}, nil
}

// request builds the search a message describes.
func (s *Server) request(in *SearchRequest) (*search.Request, error) {
	res, err := s.table(in.Config, in.Game, in.Gacha)
	if err != nil {
		return nil, err
	}
	req := &search.Request{
		Start:            in.Start,
		Count:            in.Count,
		Mode:             in.Mode,
		Config:           res.Config,
		Target:           in.Target,
		Check:            in.Check,
		Variant:          res.Variant,
		StopOnFirstFound: in.StopOnFirstFound,
	}
	if in.UseVariant {
		req.Variant = in.Variant
	}
	if len(in.TargetNames) > 0 {
		if len(in.Target) > 0 {
			return nil, fmt.Errorf("%w: target given both as slots and as names", search.ErrRequest)
		}
		if req.Target, err = masterdata.ResolveTarget(in.TargetNames, res.Items); err != nil {
			return nil, fmt.Errorf("%w: %w", search.ErrRequest, err)
		}
	}
	return req, nil
}

// table returns the draw table a request names: inline, or looked up in the definitions.
// Lookup failures come back as status errors.
func (s *Server) table(cfg *gacha.Config, gameName, gachaName string) (game.Resolved, error) {
	if cfg != nil {
		if gameName != "" || gachaName != "" {
			return game.Resolved{}, fmt.Errorf("%w: request carries both a config and a game name", search.ErrRequest)
		}
		return game.Resolved{Config: cfg}, nil
	}
	if gameName == "" {
		return game.Resolved{}, fmt.Errorf("%w: request names neither a config nor a game", search.ErrRequest)
	}
	if s.games == nil {
		return game.Resolved{}, status.Error(codes.FailedPrecondition, "server has no gacha definitions")
	}
	_, res, err := s.games.Resolve(gameName, gachaName, game.Overrides{})
	if err != nil {
		s.log.Info("resolve gacha definition", zap.String("game", gameName), zap.String("gacha", gachaName), zap.Error(err))
		return game.Resolved{}, asStatus(err)
	}
	return res, nil
}

func asStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, game.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, game.ErrInvalid):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, search.ErrRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func (s *Server) acquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

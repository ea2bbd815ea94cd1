package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xtding233/gacha-seeker/internal/conf"
	"github.com/xtding233/gacha-seeker/internal/game"
	"github.com/xtding233/gacha-seeker/internal/rpc"
	"github.com/xtding233/gacha-seeker/internal/search"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "gacha-seeker"
	// Version is the version of the compiled software.
	Version string

	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "", "config file, eg: -conf configs/seeker.yaml")
}

func main() {
	flag.Parse()
	bc, err := conf.Load(flagconf)
	if err != nil {
		panic(err)
	}
	logger, err := bc.Log.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service.name", Name), zap.String("service.version", Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, bc, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, bc conf.Bootstrap, logger *zap.Logger) error {
	loader := game.NewLoader(bc.Games.Dir)
	if bc.Games.WatchInterval > 0 {
		w := game.WatchLoader(loader, bc.Games.WatchInterval, nil, logger.Named("games"))
		w.Start()
		defer w.Stop()
	}

	coord := search.NewCoordinator(
		search.WithWorkers(bc.Search.Workers),
		search.WithBatchSizes(bc.Search.ForwardBatch, bc.Search.InverseBatch),
		search.WithLogger(logger.Named("search")),
	)
	gs := grpc.NewServer()
	rpc.Register(gs, rpc.NewServer(coord,
		rpc.WithResolver(loader),
		rpc.WithMaxCount(bc.Search.MaxCount),
		rpc.WithMaxConcurrent(bc.Server.MaxConcurrent),
		rpc.WithServerLogger(logger.Named("rpc")),
	))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", bc.Server.Addr)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", lis.Addr().String()), zap.Int("workers", coord.Workers()))
		return gs.Serve(lis)
	})

	var web *http.Server
	if bc.Server.HTTPAddr != "" {
		web = &http.Server{
			Addr:              bc.Server.HTTPAddr,
			Handler:           newMux(loader, logger.Named("http")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http listening", zap.String("addr", web.Addr))
			if err := web.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		hs.Shutdown()
		if web != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = web.Shutdown(sctx)
		}
		// running searches get a grace period, then their streams are cut
		stopped := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			gs.Stop()
		}
		return nil
	})
	return g.Wait()
}

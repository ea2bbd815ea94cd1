// Command seeker recovers gacha start seeds from an observed draw sequence.
//
//	seeker -game demo -gacha summer -target "目玉,Iron Sword,#301"
//	seeker -master-gacha gacha.json -master-item item.json -gacha-id 12 -target ... -mode salvage
//	seeker -remote localhost:9000 -game demo -target ... -format json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-seeker/internal/conf"
	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/rpc"
	"github.com/xtding233/gacha-seeker/internal/search"
)

type options struct {
	conf string

	gamesDir    string
	game        string
	gacha       string
	masterGacha string
	masterItem  string
	gachaID     string

	target       []string
	mode         search.Mode
	start        uint64
	count        uint64
	check        *search.PriorityCheck
	stop         bool
	featuredRate string
	completion   string
	slot         int
	workers      int

	format   string
	quiet    bool
	remote   string
	simulate int
	tally    int
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("seeker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var targets, mode, check string
	fs.StringVar(&o.conf, "conf", "", "app config file")
	fs.StringVar(&o.gamesDir, "games", "", "gacha definitions directory (default from -conf)")
	fs.StringVar(&o.game, "game", "", "game name in the definitions")
	fs.StringVar(&o.gacha, "gacha", "", "gacha name in the definitions")
	fs.StringVar(&o.masterGacha, "master-gacha", "", "gacha master JSON")
	fs.StringVar(&o.masterItem, "master-item", "", "item master JSON")
	fs.StringVar(&o.gachaID, "gacha-id", "", "gacha id in the gacha master")
	fs.StringVar(&targets, "target", "", "observed draws, comma separated: 目玉, 目玉(確定), item names or #id")
	fs.StringVar(&mode, "mode", "counter", "counter | chained | inverse | salvage")
	fs.Uint64Var(&o.start, "start", 0, "first seed (or orbit start for chained)")
	fs.Uint64Var(&o.count, "count", 1<<32, "positions to search")
	fs.StringVar(&check, "check", "", "priority check index:offset:modulus:comparator:value")
	fs.BoolVar(&o.stop, "stop", false, "stop on the first match")
	fs.StringVar(&o.featuredRate, "featured-rate", "", `override the featured rate, e.g. 500 or "5%"`)
	fs.StringVar(&o.completion, "completion", "", "normal | completed (default from the definition)")
	fs.IntVar(&o.slot, "slot", -1, "1-based guaranteed slot, 0 disables (default from the definition)")
	fs.IntVar(&o.workers, "workers", -1, "parallel tasks (default from -conf)")
	fs.StringVar(&o.format, "format", "human", "human | json | csv")
	fs.BoolVar(&o.quiet, "quiet", false, "no progress bar")
	fs.StringVar(&o.remote, "remote", "", "run the search on a seeker server at this address")
	fs.IntVar(&o.simulate, "simulate", 0, "print the first n draws from -start instead of searching")
	fs.IntVar(&o.tally, "tally", 0, "simulate n draws from -start and print the observed rates")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if o.mode, err = search.ParseMode(mode); err != nil {
		return nil, err
	}
	if o.check, err = parseCheck(check); err != nil {
		return nil, err
	}
	if o.start > 1<<32-1 {
		return nil, fmt.Errorf("%w: -start %d overflows uint32", errUsage, o.start)
	}
	switch o.format {
	case "human", "json", "csv":
	default:
		return nil, fmt.Errorf("%w: unknown -format %q", errUsage, o.format)
	}
	o.target = splitNames(targets)
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, o, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o *options, stdout, stderr io.Writer) error {
	bc, err := conf.Load(o.conf)
	if err != nil {
		return err
	}
	if o.gamesDir == "" {
		o.gamesDir = bc.Games.Dir
	}
	if o.workers >= 0 {
		bc.Search.Workers = o.workers
	}
	// the CLI keeps stderr for the progress bar unless asked to log more
	if o.conf == "" {
		bc.Log.Level = "warn"
	}
	logger, err := bc.Log.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if o.remote != "" && o.simulate == 0 && o.tally == 0 {
		return runRemote(ctx, o, stdout, stderr)
	}

	t, err := loadTable(o)
	if err != nil {
		return err
	}
	if o.simulate > 0 {
		return writeDraws(stdout, o.format, t, t.cfg.Simulate(uint32(o.start), o.simulate, t.variant))
	}
	if o.tally > 0 {
		return writeTally(stdout, t, t.cfg.Summarize(uint32(o.start), o.tally, t.variant))
	}

	req := &search.Request{
		Start:            uint32(o.start),
		Count:            o.count,
		Mode:             o.mode,
		Config:           t.cfg,
		Target:           t.target,
		Check:            o.check,
		Variant:          t.variant,
		StopOnFirstFound: o.stop,
	}
	coord := search.NewCoordinator(
		search.WithWorkers(bc.Search.Workers),
		search.WithBatchSizes(bc.Search.ForwardBatch, bc.Search.InverseBatch),
		search.WithLogger(logger.Named("search")),
	)
	events, err := coord.Stream(ctx, req)
	if err != nil {
		return err
	}
	bar := newBar(o, stderr, req.Span())
	res := &search.Result{}
	for ev := range events {
		track(bar, res, ev)
	}
	finishBar(bar)
	if err := ctx.Err(); err != nil {
		logger.Warn("search interrupted", zap.Uint64("processed", res.Processed))
	}
	return writeResult(stdout, o.format, t, res)
}

func runRemote(ctx context.Context, o *options, stdout, stderr io.Writer) error {
	cc, err := rpc.Dial(o.remote)
	if err != nil {
		return err
	}
	defer cc.Close()

	req := &rpc.SearchRequest{
		Start:            uint32(o.start),
		Count:            o.count,
		Mode:             o.mode,
		Check:            o.check,
		StopOnFirstFound: o.stop,
	}
	t := &table{name: func(id gacha.ItemID) string { return fmt.Sprintf("#%d", id) }}
	if o.masterGacha != "" || o.masterItem != "" {
		// the server has no copy of the masters, so the table travels with the request
		if t, err = loadMaster(o); err != nil {
			return err
		}
		req.Config, req.Target, req.Variant, req.UseVariant = t.cfg, t.target, t.variant, true
	} else {
		req.Game, req.Gacha, req.TargetNames = o.game, o.gacha, o.target
		if o.completion != "" || o.slot >= 0 {
			return fmt.Errorf("%w: -completion and -slot need master files with -remote", errUsage)
		}
	}

	bar := newBar(o, stderr, min(o.count, 1<<32-uint64(o.start)))
	res := &search.Result{}
	err = rpc.NewClient(cc).Search(ctx, req, func(ev search.Event) error {
		if ev.Kind == search.EventError {
			return fmt.Errorf("%w: %s", rpc.ErrRemote, ev.Reason)
		}
		track(bar, res, ev)
		return nil
	})
	finishBar(bar)
	if err != nil {
		return err
	}
	return writeResult(stdout, o.format, t, res)
}

func newBar(o *options, w io.Writer, total uint64) *pb.ProgressBar {
	if o.quiet {
		return nil
	}
	bar := pb.Full.New(0).SetTotal(int64(total))
	bar.SetWriter(w)
	bar.Set(pb.CleanOnFinish, true)
	return bar.Start()
}

func track(bar *pb.ProgressBar, res *search.Result, ev search.Event) {
	res.Add(ev)
	if bar != nil && ev.Kind == search.EventProgress {
		bar.Add64(int64(ev.Processed))
	}
}

func finishBar(bar *pb.ProgressBar) {
	if bar != nil {
		bar.Finish()
	}
}

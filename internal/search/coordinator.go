package search

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xtding233/gacha-seeker/internal/xorshift"
)

// Default progress granularity. Inverse scans skip most priority seeds without verifying them,
// so they cover positions much faster.
const (
	DefaultForwardBatch = 100_000
	DefaultInverseBatch = 10_000_000
)

// errStopped cancels sibling tasks after a stop-on-first-found match.
var errStopped = errors.New("stopped on first found")

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the number of parallel tasks. n <= 0 means runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *Coordinator) { c.workers = n }
}

// WithBatchSizes sets how many positions a task covers between progress events and
// cancellation checks. Zero keeps the default.
func WithBatchSizes(forward, inverse uint64) Option {
	return func(c *Coordinator) {
		if forward > 0 {
			c.forwardBatch = forward
		}
		if inverse > 0 {
			c.inverseBatch = inverse
		}
	}
}

// WithLogger sets the logger for task lifecycle and search summaries; nil keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// Coordinator splits a search into parallel tasks and merges their events into one stream.
// It holds no per-search state and may run several searches at once.
type Coordinator struct {
	workers      int
	forwardBatch uint64
	inverseBatch uint64
	log          *zap.Logger
}

// NewCoordinator returns a Coordinator with one task per GOMAXPROCS unless WithWorkers says otherwise.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		forwardBatch: DefaultForwardBatch,
		inverseBatch: DefaultInverseBatch,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Workers returns the number of parallel tasks a search is split into at most.
func (c *Coordinator) Workers() int { return c.workers }

// Stream validates req and starts the search. The returned channel carries every task's events
// and is closed once all tasks have ended. Events of one task keep their order; tasks interleave.
//
// Cancelling ctx abandons the search: tasks stop at their next batch boundary and undelivered
// events are dropped.
func (c *Coordinator) Stream(ctx context.Context, req *Request) (<-chan Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	span := req.Span()
	ranges := Partition(span, c.workers)
	out := make(chan Event, 4*len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	var total atomic.Uint64
	started := time.Now()

	log := c.log.With(zap.Stringer("mode", req.Mode), zap.Uint32("start", req.Start), zap.Uint64("span", span))
	log.Debug("search started", zap.Int("tasks", len(ranges)))

	for i, rg := range ranges {
		t := &task{
			id:    i,
			req:   req,
			rng:   rg,
			batch: c.batchFor(req),
			out:   out,
			ctx:   ctx,
			total: &total,
			log:   log,
		}
		g.Go(func() error { return t.run(gctx) })
	}

	go func() {
		err := g.Wait()
		close(out)
		fields := []zap.Field{zap.Uint64("processed", total.Load()), zap.Duration("elapsed", time.Since(started))}
		switch {
		case err == nil:
			log.Info("search finished", fields...)
		case errors.Is(err, errStopped):
			log.Info("search stopped on first match", fields...)
		default:
			log.Info("search abandoned", append(fields, zap.Error(err))...)
		}
	}()
	return out, nil
}

func (c *Coordinator) batchFor(req *Request) uint64 {
	if req.enumeration() == InverseMapped {
		return c.inverseBatch
	}
	return c.forwardBatch
}

// task is one contiguous slice of a search.
type task struct {
	id    int
	req   *Request
	rng   Range
	batch uint64
	out   chan<- Event
	ctx   context.Context // caller context, bounds delivery
	total *atomic.Uint64
	log   *zap.Logger
}

// send delivers e unless the caller has gone away.
func (t *task) send(e Event) bool {
	e.Task = t.id
	select {
	case t.out <- e:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// run enumerates the task's range. gctx is cancelled when any sibling stops on a match.
func (t *task) run(gctx context.Context) error {
	// a sibling's stop does not interrupt positioning, so a cancelled task still reports
	// where its range starts
	cur, err := t.cursor(t.ctx)
	if err != nil {
		return err
	}
	match := matcher(t.req)

	var (
		processed uint64
		hit       Hit
		stopped   bool
		lost      bool
	)
	visit := func(seed uint32) bool {
		h, ok := match(seed)
		if !ok {
			return true
		}
		if !t.send(Event{Kind: EventFound, Hit: h}) {
			lost = true
			return false
		}
		if t.req.StopOnFirstFound {
			hit, stopped = h, true
			return false
		}
		return true
	}

	for processed < t.rng.Count {
		if gctx.Err() != nil {
			break
		}
		n := cur.batch(min(t.batch, t.rng.Count-processed), visit)
		processed += n
		t.total.Add(n)
		if lost {
			return t.ctx.Err()
		}
		if !t.send(Event{Kind: EventProgress, Processed: n}) {
			return t.ctx.Err()
		}
		if stopped {
			t.log.Debug("task stopped on match", zap.Int("task", t.id), zap.Uint32("seed", hit.Seed))
			t.send(Event{Kind: EventStopFound, Hit: hit, Processed: processed, ResumeSeed: cur.resume()})
			return errStopped
		}
	}

	canceled := processed < t.rng.Count
	t.log.Debug("task done", zap.Int("task", t.id), zap.Uint64("processed", processed), zap.Bool("canceled", canceled))
	if !t.send(Event{Kind: EventDone, Processed: processed, ResumeSeed: cur.resume(), Canceled: canceled}) {
		return t.ctx.Err()
	}
	return nil
}

// cursor positions the enumeration at the start of the task's range.
func (t *task) cursor(ctx context.Context) (cursor, error) {
	start, off := t.req.Start, t.rng.Offset
	switch t.req.enumeration() {
	case ForwardChained:
		s, err := advanceTo(ctx, start, off)
		if err != nil {
			return nil, err
		}
		return &chainedCursor{next: s}, nil
	case InverseMapped:
		return &inverseCursor{next: start + uint32(off), check: t.req.Check, back: t.req.Check.Offset()}, nil
	default:
		return &counterCursor{next: start + uint32(off)}, nil
	}
}

// matcher builds the per-candidate test for req. Forward enumerations apply the priority check
// as a pre-filter before verifying; inverse enumerations only produce seeds that already pass it.
func matcher(req *Request) func(seed uint32) (Hit, bool) {
	cfg, target, v := req.Config, req.Target, req.Variant

	verify := func(seed uint32) (Hit, bool) {
		return Hit{Seed: seed}, cfg.Verify(seed, target, v)
	}
	if req.Mode == RareSalvage {
		verify = func(seed uint32) (Hit, bool) {
			dup, ok := cfg.VerifySalvage(seed, target, v)
			return Hit{Seed: seed, Duplicate: dup, HasDuplicate: ok}, ok
		}
	}

	if req.Check == nil || req.enumeration() == InverseMapped {
		return verify
	}
	check, k := req.Check, req.Check.Offset()
	return func(seed uint32) (Hit, bool) {
		if !check.Holds(xorshift.Advance(seed, k)) {
			return Hit{}, false
		}
		return verify(seed)
	}
}

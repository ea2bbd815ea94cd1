package search

import (
	"context"
	"slices"
)

// TaskResult is where one task ended.
type TaskResult struct {
	Task       int
	Processed  uint64
	ResumeSeed uint32
	Stopped    bool
	Canceled   bool
}

// Result is a drained search stream.
type Result struct {
	Hits      []Hit
	Processed uint64
	// Stop is the match that ended the search under StopOnFirstFound.
	Stop  *Hit
	Tasks []TaskResult
}

// Seeds returns the matching seeds in ascending order, or nil when nothing matched.
func (r *Result) Seeds() []uint32 {
	if len(r.Hits) == 0 {
		return nil
	}
	seeds := make([]uint32, len(r.Hits))
	for i, h := range r.Hits {
		seeds[i] = h.Seed
	}
	slices.Sort(seeds)
	return seeds
}

// Collect runs req to completion and aggregates its events. Tasks are listed by index.
func (c *Coordinator) Collect(ctx context.Context, req *Request) (*Result, error) {
	events, err := c.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for e := range events {
		res.Add(e)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	slices.SortFunc(res.Tasks, func(a, b TaskResult) int { return a.Task - b.Task })
	return res, nil
}

// Add folds one stream event into r.
func (r *Result) Add(e Event) {
	switch e.Kind {
	case EventFound:
		r.Hits = append(r.Hits, e.Hit)
	case EventProgress:
		r.Processed += e.Processed
	case EventStopFound:
		if r.Stop == nil {
			h := e.Hit
			r.Stop = &h
		}
		r.Tasks = append(r.Tasks, TaskResult{Task: e.Task, Processed: e.Processed, ResumeSeed: e.ResumeSeed, Stopped: true})
	case EventDone:
		r.Tasks = append(r.Tasks, TaskResult{Task: e.Task, Processed: e.Processed, ResumeSeed: e.ResumeSeed, Canceled: e.Canceled})
	}
}

package main

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/masterdata"
	"github.com/xtding233/gacha-seeker/internal/search"
)

//go:embed data/gacha_master.json
var embeddedGachas []byte

//go:embed data/item_master.json
var embeddedItems []byte

const (
	// defaultMaxCount bounds one invocation; larger scans are continued by the caller from
	// the returned nextStart.
	defaultMaxCount = 1 << 28
	// defaultChunk is the slice searched between deadline checks.
	defaultChunk = 1 << 24
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

type checkRequest struct {
	SeedIndex       uint32 `json:"seedIndex"`
	TotalSeedOffset uint32 `json:"totalSeedOffset"`
	Modulus         uint32 `json:"modulus"`
	Comparator      string `json:"comparator"`
	Value           uint32 `json:"value"`
}

type searchRequest struct {
	GachaID          string        `json:"gachaId"`
	Target           []string      `json:"target"`
	Start            uint32        `json:"start"`
	Count            uint64        `json:"count"`
	Mode             string        `json:"mode"`
	Check            *checkRequest `json:"check"`
	Completion       string        `json:"completion"`
	GuaranteedSlot   int           `json:"guaranteedSlot"`
	StopOnFirstFound bool          `json:"stopOnFirstFound"`
}

type seedResult struct {
	Seed      uint32 `json:"seed"`
	Duplicate string `json:"duplicate,omitempty"`
}

type searchResult struct {
	Seeds     []seedResult `json:"seeds"`
	Processed uint64       `json:"processed"`
	Stopped   bool         `json:"stopped"`
	// Truncated is set when the invocation ran out of time; NextStart continues the scan.
	Truncated bool   `json:"truncated"`
	NextStart uint32 `json:"nextStart"`
	TimeMs    int64  `json:"timeMs"`
}

type handler struct {
	master   *masterdata.Master
	coord    *search.Coordinator
	maxCount uint64
	chunk    uint64
	// margin is kept free before the invocation deadline for one more chunk and the response.
	margin time.Duration
	log    *zap.Logger
}

func newHandler(log *zap.Logger) (*handler, error) {
	m, err := masterdata.Parse(embeddedGachas, embeddedItems)
	if err != nil {
		return nil, err
	}
	return &handler{
		master:   m,
		coord:    search.NewCoordinator(search.WithLogger(log)),
		maxCount: defaultMaxCount,
		chunk:    defaultChunk,
		margin:   3 * time.Second,
		log:      log,
	}, nil
}

func (h *handler) request(in searchRequest) (*search.Request, error) {
	if in.GachaID == "" {
		return nil, fmt.Errorf("%w: missing gachaId", search.ErrRequest)
	}
	cfg, err := h.master.Gacha(in.GachaID)
	if err != nil {
		return nil, err
	}
	target, err := h.master.ResolveTarget(in.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", search.ErrRequest, err)
	}
	mode := search.ForwardCounter
	if in.Mode != "" {
		if mode, err = search.ParseMode(in.Mode); err != nil {
			return nil, err
		}
	}
	req := &search.Request{
		Start:            in.Start,
		Count:            in.Count,
		Mode:             mode,
		Config:           cfg,
		Target:           target,
		Variant:          gacha.Variant{GuaranteedSlot: in.GuaranteedSlot},
		StopOnFirstFound: in.StopOnFirstFound,
	}
	switch in.Completion {
	case "", "normal":
	case "completed":
		req.Variant.Completion = gacha.Completed
	default:
		return nil, fmt.Errorf("%w: completion %q", search.ErrRequest, in.Completion)
	}
	if req.Count == 0 || req.Count > h.maxCount {
		req.Count = h.maxCount
	}
	if c := in.Check; c != nil {
		cmp, err := search.ParseComparator(c.Comparator)
		if err != nil {
			return nil, err
		}
		req.Check = &search.PriorityCheck{
			SeedIndex:       c.SeedIndex,
			TotalSeedOffset: c.TotalSeedOffset,
			Modulus:         c.Modulus,
			Comparator:      cmp,
			Value:           c.Value,
		}
	}
	return req, nil
}

func (h *handler) handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(400, "invalid base64 body")
		}
		body = string(decoded)
	}
	var in searchRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return errResp(400, "invalid JSON: "+err.Error())
	}
	req, err := h.request(in)
	if err != nil {
		if errors.Is(err, masterdata.ErrUnknownGacha) {
			return errResp(404, err.Error())
		}
		return errResp(400, err.Error())
	}
	if err := req.Validate(); err != nil {
		return errResp(400, err.Error())
	}

	began := time.Now()
	out, err := h.search(ctx, req)
	if err != nil {
		return errResp(500, err.Error())
	}
	out.TimeMs = time.Since(began).Milliseconds()
	h.log.Info("search",
		zap.String("gacha", in.GachaID),
		zap.Stringer("mode", req.Mode),
		zap.Uint64("processed", out.Processed),
		zap.Int("hits", len(out.Seeds)),
		zap.Uint32("next_start", out.NextStart),
		zap.Bool("truncated", out.Truncated),
	)
	respJSON, _ := json.Marshal(out)
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(respJSON)}, nil
}

// search covers req in complete chunks so a run cut short by the deadline still reports exactly
// where to continue.
func (h *handler) search(ctx context.Context, req *search.Request) (*searchResult, error) {
	out := &searchResult{Seeds: []seedResult{}, NextStart: req.Start}
	span := req.Span()
	dl, hasDeadline := ctx.Deadline()
	var covered uint64
	for covered < span {
		if hasDeadline && time.Until(dl) < h.margin {
			out.Truncated = true
			break
		}
		chunk := *req
		chunk.Start = out.NextStart
		chunk.Count = min(h.chunk, span-covered)
		res, err := h.coord.Collect(ctx, &chunk)
		if err != nil {
			return nil, err
		}
		for _, hit := range res.Hits {
			s := seedResult{Seed: hit.Seed}
			if hit.HasDuplicate {
				s.Duplicate = h.master.ItemName(hit.Duplicate)
			}
			out.Seeds = append(out.Seeds, s)
		}
		out.Processed += res.Processed
		covered += chunk.Count
		if len(res.Tasks) > 0 {
			out.NextStart = res.Tasks[len(res.Tasks)-1].ResumeSeed
		}
		if res.Stop != nil {
			out.Stopped = true
			break
		}
	}
	return out, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

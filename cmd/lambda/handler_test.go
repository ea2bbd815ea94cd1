package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-seeker/internal/gacha"
)

func testHandler(t *testing.T) *handler {
	t.Helper()
	h, err := newHandler(zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// targetFrom returns the names a player would have written down after drawing n slots from seed.
func targetFrom(t *testing.T, h *handler, seed uint32, n int) []string {
	t.Helper()
	c, err := h.master.Gacha("1")
	if err != nil {
		t.Fatal(err)
	}
	seq, ok := gacha.Observe(c.Simulate(seed, n, gacha.Variant{}))
	if !ok {
		t.Fatalf("seed %d draws an empty slot", seed)
	}
	names := make([]string, len(seq))
	for i, s := range seq {
		if s.Kind == gacha.SlotItem {
			names[i] = h.master.ItemName(s.Item)
		} else {
			names[i] = s.String()
		}
	}
	return names
}

func invoke(t *testing.T, ctx context.Context, h *handler, req any) (int, searchResult, string) {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := h.handle(ctx, events.LambdaFunctionURLRequest{Body: string(body)})
	if err != nil {
		t.Fatal(err)
	}
	var out searchResult
	if resp.StatusCode == 200 {
		if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode, out, resp.Body
}

func contains(seeds []seedResult, seed uint32) bool {
	for _, s := range seeds {
		if s.Seed == seed {
			return true
		}
	}
	return false
}

func TestHandleFindsSeed(t *testing.T) {
	h := testHandler(t)
	const seed = 31337
	req := searchRequest{GachaID: "1", Target: targetFrom(t, h, seed, 6), Start: seed - 100, Count: 200}

	code, out, body := invoke(t, context.Background(), h, req)
	if code != 200 {
		t.Fatalf("code=%d body=%s", code, body)
	}
	if !contains(out.Seeds, seed) || out.Processed != 200 || out.Truncated || out.NextStart != seed+100 {
		t.Fatalf("result=%+v", out)
	}

	// the same scan in small chunks covers the same seeds
	h.chunk = 64
	_, chunked, _ := invoke(t, context.Background(), h, req)
	if len(chunked.Seeds) != len(out.Seeds) || chunked.Processed != 200 || chunked.NextStart != out.NextStart {
		t.Fatalf("chunked=%+v whole=%+v", chunked, out)
	}
}

func TestHandleDeadline(t *testing.T) {
	h := testHandler(t)
	ctx, cancel := context.WithTimeout(context.Background(), h.margin/2)
	defer cancel()
	code, out, _ := invoke(t, ctx, h, searchRequest{GachaID: "1", Target: []string{"featured"}, Start: 500, Count: 1000})
	if code != 200 || !out.Truncated || out.Processed != 0 || out.NextStart != 500 {
		t.Fatalf("code=%d result=%+v", code, out)
	}
}

func TestHandleStopOnFirstFound(t *testing.T) {
	h := testHandler(t)
	h.chunk = 1 << 12
	code, out, _ := invoke(t, context.Background(), h, searchRequest{
		GachaID: "1", Target: []string{"featured"}, Count: 1 << 20, StopOnFirstFound: true,
	})
	if code != 200 || !out.Stopped || len(out.Seeds) == 0 || out.Processed >= 1<<20 {
		t.Fatalf("code=%d result=%+v", code, out)
	}
}

func TestHandleBase64(t *testing.T) {
	h := testHandler(t)
	body, _ := json.Marshal(searchRequest{GachaID: "2", Target: []string{"featured"}, Count: 100})
	resp, err := h.handle(context.Background(), events.LambdaFunctionURLRequest{
		Body:            base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded: true,
	})
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("code=%d err=%v body=%s", resp.StatusCode, err, resp.Body)
	}
}

func TestHandleErrors(t *testing.T) {
	h := testHandler(t)
	for _, tc := range []struct {
		req  any
		code int
		msg  string
	}{
		{"not an object", 400, "invalid JSON"},
		{searchRequest{Target: []string{"featured"}}, 400, "gachaId"},
		{searchRequest{GachaID: "77", Target: []string{"featured"}}, 404, "unknown gacha"},
		{searchRequest{GachaID: "1", Target: []string{"Wooden Spoon"}}, 400, "unknown item"},
		{searchRequest{GachaID: "1", Target: []string{"featured"}, Mode: "inverse"}, 400, "priority check"},
		{searchRequest{GachaID: "1", Target: []string{"featured"}, Mode: "sideways"}, 400, "unknown search mode"},
		{searchRequest{GachaID: "1", Target: []string{"featured"}, Completion: "done"}, 400, "completion"},
		{searchRequest{GachaID: "1", Target: []string{"featured"}, Check: &checkRequest{Modulus: 10, Comparator: "~"}}, 400, "comparator"},
	} {
		code, _, body := invoke(t, context.Background(), h, tc.req)
		if code != tc.code || !strings.Contains(body, tc.msg) {
			t.Fatalf("%+v: code=%d body=%s", tc.req, code, body)
		}
	}
}

func TestMaxCountClamp(t *testing.T) {
	h := testHandler(t)
	h.maxCount = 300
	start := time.Now()
	_, out, _ := invoke(t, context.Background(), h, searchRequest{GachaID: "1", Target: []string{"featured"}, Count: 1 << 40})
	if out.Processed != 300 {
		t.Fatalf("processed=%d in %v", out.Processed, time.Since(start))
	}
}

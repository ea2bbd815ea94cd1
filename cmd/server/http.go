package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xtding233/gacha-seeker/internal/game"
	"github.com/xtding233/gacha-seeker/internal/rpc"
)

type drawResp struct {
	Kind      string `json:"kind"`
	Item      uint32 `json:"item,omitempty"`
	Tier      int    `json:"tier"`
	Rerolled  bool   `json:"rerolled,omitempty"`
	Duplicate uint32 `json:"duplicate,omitempty"`
	Seed      uint32 `json:"seed"`
}

type simulateResp struct {
	Version string     `json:"version,omitempty"`
	Draws   []drawResp `json:"draws,omitempty"`
	Err     string     `json:"err,omitempty"`
}

func parseUint(r *http.Request, key string) (uint64, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// handleSimulate returns the roll list of a named gacha:
//
//	GET /simulate?game=demo&gacha=summer&seed=12345&n=10[&completion=completed&slot=3]
func handleSimulate(games game.Resolver, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		seed, ok, msg := parseUint(r, "seed")
		if !ok {
			if msg == "" {
				msg = "missing param seed"
			}
			writeJSON(w, http.StatusBadRequest, simulateResp{Err: msg})
			return
		}
		n, ok, msg := parseUint(r, "n")
		if msg != "" {
			writeJSON(w, http.StatusBadRequest, simulateResp{Err: msg})
			return
		}
		if !ok {
			n = 10
		}
		if n > rpc.MaxSimulateDraws {
			writeJSON(w, http.StatusBadRequest, simulateResp{Err: "n too large"})
			return
		}

		var o game.Overrides
		if c := q.Get("completion"); c != "" {
			o.Completion = &c
		}
		if slot, ok, msg := parseUint(r, "slot"); msg != "" {
			writeJSON(w, http.StatusBadRequest, simulateResp{Err: msg})
			return
		} else if ok {
			s := int(slot)
			o.GuaranteedSlot = &s
		}

		_, res, err := games.Resolve(q.Get("game"), q.Get("gacha"), o)
		if err != nil {
			code := http.StatusInternalServerError
			switch {
			case errors.Is(err, game.ErrNotFound):
				code = http.StatusNotFound
			case errors.Is(err, game.ErrInvalid):
				code = http.StatusBadRequest
			}
			log.Info("simulate", zap.String("game", q.Get("game")), zap.String("gacha", q.Get("gacha")), zap.Error(err))
			writeJSON(w, code, simulateResp{Err: err.Error()})
			return
		}

		draws := res.Config.Simulate(uint32(seed), int(n), res.Variant)
		resp := simulateResp{Version: res.Version, Draws: make([]drawResp, len(draws))}
		for i, d := range draws {
			resp.Draws[i] = drawResp{
				Kind:      d.Kind.String(),
				Item:      uint32(d.Item),
				Tier:      int(d.Tier),
				Rerolled:  d.Rerolled,
				Duplicate: uint32(d.Duplicate),
				Seed:      d.Seed,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func newMux(games game.Resolver, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /simulate", handleSimulate(games, log))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

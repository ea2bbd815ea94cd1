package main

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/xtding233/gacha-seeker/internal/gacha"
	"github.com/xtding233/gacha-seeker/internal/masterdata"
	"github.com/xtding233/gacha-seeker/internal/search"
)

type hitJSON struct {
	Seed      uint32 `json:"seed"`
	Duplicate string `json:"duplicate,omitempty"`
}

type taskJSON struct {
	Task       int    `json:"task"`
	Processed  uint64 `json:"processed"`
	ResumeSeed uint32 `json:"resume_seed"`
	Stopped    bool   `json:"stopped,omitempty"`
	Canceled   bool   `json:"canceled,omitempty"`
}

type resultJSON struct {
	Hits      []hitJSON  `json:"hits"`
	Processed uint64     `json:"processed"`
	Stop      *hitJSON   `json:"stop,omitempty"`
	Tasks     []taskJSON `json:"tasks"`
}

func (t *table) hit(h search.Hit) hitJSON {
	out := hitJSON{Seed: h.Seed}
	if h.HasDuplicate {
		out.Duplicate = t.name(h.Duplicate)
	}
	return out
}

func writeResult(w io.Writer, format string, t *table, res *search.Result) error {
	hits := slices.Clone(res.Hits)
	slices.SortFunc(hits, func(a, b search.Hit) int { return cmp.Compare(a.Seed, b.Seed) })
	tasks := slices.Clone(res.Tasks)
	slices.SortFunc(tasks, func(a, b search.TaskResult) int { return a.Task - b.Task })

	switch format {
	case "json":
		out := resultJSON{Hits: make([]hitJSON, len(hits)), Processed: res.Processed, Tasks: make([]taskJSON, len(tasks))}
		for i, h := range hits {
			out.Hits[i] = t.hit(h)
		}
		if res.Stop != nil {
			s := t.hit(*res.Stop)
			out.Stop = &s
		}
		for i, tr := range tasks {
			out.Tasks[i] = taskJSON(tr)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"seed", "seed_hex", "duplicate"})
		for _, h := range hits {
			j := t.hit(h)
			_ = cw.Write([]string{strconv.FormatUint(uint64(h.Seed), 10), fmt.Sprintf("0x%08x", h.Seed), j.Duplicate})
		}
		cw.Flush()
		return cw.Error()
	}

	if t.cfg != nil {
		fmt.Fprintf(w, "featured rate %s (1 in %s draws)\n",
			masterdata.FormatRate(t.cfg.FeaturedRate), masterdata.ExpectedDraws(t.cfg.FeaturedRate).String())
	}
	fmt.Fprintf(w, "searched %d positions, %d match(es)\n", res.Processed, len(hits))
	for _, h := range hits {
		j := t.hit(h)
		if j.Duplicate != "" {
			fmt.Fprintf(w, "  %10d  0x%08x  duplicate %s\n", h.Seed, h.Seed, j.Duplicate)
		} else {
			fmt.Fprintf(w, "  %10d  0x%08x\n", h.Seed, h.Seed)
		}
	}
	if res.Stop != nil {
		fmt.Fprintf(w, "stopped at first match %d\n", res.Stop.Seed)
	}
	for _, tr := range tasks {
		if tr.Canceled || tr.Stopped {
			fmt.Fprintf(w, "  task %d: resume at %d after %d positions\n", tr.Task, tr.ResumeSeed, tr.Processed)
		}
	}
	return nil
}

type drawJSON struct {
	Index     int    `json:"index"`
	Kind      string `json:"kind"`
	Item      string `json:"item,omitempty"`
	Tier      int    `json:"tier"`
	Duplicate string `json:"duplicate,omitempty"`
	Seed      uint32 `json:"seed"`
}

func writeDraws(w io.Writer, format string, t *table, draws []gacha.Draw) error {
	rows := make([]drawJSON, len(draws))
	for i, d := range draws {
		rows[i] = drawJSON{Index: i + 1, Kind: d.Kind.String(), Tier: int(d.Tier), Seed: d.Seed}
		switch d.Kind {
		case gacha.OutcomeFeature:
			rows[i].Item = masterdata.FeaturedName
		case gacha.OutcomeItem:
			rows[i].Item = t.name(d.Item)
		}
		if d.Rerolled {
			rows[i].Duplicate = t.name(d.Duplicate)
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"index", "kind", "item", "tier", "duplicate", "seed"})
		for _, r := range rows {
			_ = cw.Write([]string{strconv.Itoa(r.Index), r.Kind, r.Item, strconv.Itoa(r.Tier), r.Duplicate, strconv.FormatUint(uint64(r.Seed), 10)})
		}
		cw.Flush()
		return cw.Error()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\titem\ttier\tnote")
	for _, r := range rows {
		note := ""
		if r.Duplicate != "" {
			note = "rerolled from " + r.Duplicate
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", r.Index, r.Item, r.Tier, note)
	}
	return tw.Flush()
}

// writeTally prints observed rates next to the configured ones.
func writeTally(w io.Writer, t *table, tally gacha.Tally) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "draws\t%d\n", tally.Draws)
	fmt.Fprintf(tw, "featured\t%.2f%%\t(configured %s)\n", 100*tally.FeatureShare(), masterdata.FormatRate(t.cfg.FeaturedRate))
	for tier := range gacha.RarityTiers {
		fmt.Fprintf(tw, "tier %d\t%.2f%%\t(configured %s)\n", tier, 100*tally.Share(gacha.Tier(tier)), masterdata.FormatRate(t.cfg.RarityRates[tier]))
	}
	fmt.Fprintf(tw, "rerolled\t%d\n", tally.Rerolled)
	if tally.Empty > 0 {
		fmt.Fprintf(tw, "empty\t%d\n", tally.Empty)
	}
	return tw.Flush()
}

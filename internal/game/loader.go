package game

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when neither a game file nor a gacha file exists for a lookup.
var ErrNotFound = errors.New("gacha definition not found")

// Paths helper for default/game/gacha files.
type Paths struct {
	BaseDir string // base directory, e.g., /opt/app/configs
}

func (p Paths) GamesDir() string {
	return filepath.Join(p.BaseDir, "games")
}
func (p Paths) DefaultPath() string {
	return filepath.Join(p.GamesDir(), "default.yaml")
}
func (p Paths) GamePath(game string) string {
	return filepath.Join(p.GamesDir(), game+".yaml")
}
func (p Paths) GachaPath(game, gacha string) string {
	return filepath.Join(p.GamesDir(), game, "gachas", gacha+".yaml")
}

// Loader reads YAML definitions and merges default → game → gacha.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	cache map[string]RawConfig // key: "game" or "game/gacha"
}

// NewLoader creates a config loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		paths: Paths{BaseDir: baseDir},
		cache: make(map[string]RawConfig),
	}
}

// Paths returns the file layout the loader reads from.
func (l *Loader) Paths() Paths { return l.paths }

// LoadMerged loads and merges default → game → gacha (gacha optional).
// It returns the merged RawConfig without validating it. The default file may be absent, but at
// least one of the game and gacha files must exist.
func (l *Loader) LoadMerged(game, gacha string) (RawConfig, error) {
	if !validName(game) || (gacha != "" && !validName(gacha)) {
		return RawConfig{}, fmt.Errorf("%w: bad name %q/%q", ErrNotFound, game, gacha)
	}
	key := game
	if gacha != "" {
		key = game + "/" + gacha
	}
	l.mu.RLock()
	cfg, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	defCfg, _, err := readYAML(l.paths.DefaultPath())
	if err != nil {
		return RawConfig{}, fmt.Errorf("read default: %w", err)
	}
	gameCfg, gameFound, err := readYAML(l.paths.GamePath(game))
	if err != nil {
		return RawConfig{}, fmt.Errorf("read game %s: %w", game, err)
	}
	var gachaCfg RawConfig
	gachaFound := false
	if gacha != "" {
		gachaCfg, gachaFound, err = readYAML(l.paths.GachaPath(game, gacha))
		if err != nil {
			return RawConfig{}, fmt.Errorf("read gacha %s/%s: %w", game, gacha, err)
		}
	}
	if !gameFound && !gachaFound {
		return RawConfig{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	gameMerged := mergeRaw(defCfg, gameCfg)
	merged := mergeRaw(gameMerged, gachaCfg)

	l.mu.Lock()
	if gameFound {
		l.cache[game] = gameMerged
	}
	l.cache[key] = merged
	l.mu.Unlock()

	return merged, nil
}

// Invalidate clears loader's cache. Call after hot-reload detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]RawConfig)
}

// readYAML loads a YAML file into RawConfig. Missing files return a zero cfg and found=false.
func readYAML(path string) (cfg RawConfig, found bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, false, nil
		}
		return RawConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RawConfig{}, true, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, true, nil
}

// mergeRaw performs a deep merge: 'b' overrides 'a' where set.
// Slices (pools, rarity rates) are replaced wholesale; item names are merged key by key.
func mergeRaw(a, b RawConfig) RawConfig {
	out := a

	if b.Version != "" {
		out.Version = b.Version
	}
	if b.Notes != "" {
		out.Notes = b.Notes
	}

	// draw
	if b.Draw.FeaturedRate != nil {
		out.Draw.FeaturedRate = b.Draw.FeaturedRate
	}
	if len(b.Draw.RarityRates) > 0 {
		out.Draw.RarityRates = append([]Rate(nil), b.Draw.RarityRates...)
	}
	if b.Draw.CanReroll != nil {
		out.Draw.CanReroll = b.Draw.CanReroll
	}

	// guarantee
	switch {
	case out.Guarantee == nil && b.Guarantee != nil:
		c := *b.Guarantee
		out.Guarantee = &c
	case out.Guarantee != nil && b.Guarantee != nil:
		c := *out.Guarantee
		if b.Guarantee.Tier3 != nil {
			c.Tier3 = b.Guarantee.Tier3
		}
		if b.Guarantee.Tier4 != nil {
			c.Tier4 = b.Guarantee.Tier4
		}
		if b.Guarantee.Rate3 != nil {
			c.Rate3 = b.Guarantee.Rate3
		}
		if b.Guarantee.Rate4 != nil {
			c.Rate4 = b.Guarantee.Rate4
		}
		out.Guarantee = &c
	}

	if len(b.Pools) > 0 {
		out.Pools = make([][]uint32, len(b.Pools))
		for i, p := range b.Pools {
			out.Pools[i] = append([]uint32(nil), p...)
		}
	}

	if len(b.Items) > 0 {
		items := make(map[string]uint32, len(a.Items)+len(b.Items))
		maps.Copy(items, a.Items)
		maps.Copy(items, b.Items)
		out.Items = items
	}

	// search
	switch {
	case out.Search == nil && b.Search != nil:
		c := *b.Search
		out.Search = &c
	case out.Search != nil && b.Search != nil:
		c := *out.Search
		if b.Search.Completion != "" {
			c.Completion = b.Search.Completion
		}
		if b.Search.GuaranteedSlot != nil {
			c.GuaranteedSlot = b.Search.GuaranteedSlot
		}
		out.Search = &c
	}

	return out
}

// validName accepts single path elements only, so lookups stay inside the games directory.
func validName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

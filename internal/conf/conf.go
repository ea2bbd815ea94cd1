// Package conf holds the application configuration shared by the binaries.
package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrConf = errors.New("invalid application config")

// Bootstrap is the top-level application config file.
type Bootstrap struct {
	Server Server `yaml:"server"`
	Search Search `yaml:"search"`
	Games  Games  `yaml:"games"`
	Log    Log    `yaml:"log"`
}

type Server struct {
	Addr string `yaml:"addr"` // gRPC
	// HTTPAddr serves the JSON roll-list endpoint and /healthz. Empty disables it.
	HTTPAddr string `yaml:"http_addr"`
	// MaxConcurrent caps searches running at once; further calls are rejected.
	MaxConcurrent int `yaml:"max_concurrent"`
}

type Search struct {
	Workers      int    `yaml:"workers"` // 0: GOMAXPROCS
	ForwardBatch uint64 `yaml:"forward_batch"`
	InverseBatch uint64 `yaml:"inverse_batch"`
	// MaxCount caps the positions one remote request may ask for. 0 means the full space.
	MaxCount uint64 `yaml:"max_count"`
}

// Games locates the YAML gacha definitions.
type Games struct {
	Dir           string        `yaml:"dir"`
	WatchInterval time.Duration `yaml:"watch_interval"` // 0 disables hot reload
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	Encoding    string `yaml:"encoding"` // console | json
}

// Default returns the config used when no file is given.
func Default() Bootstrap {
	return Bootstrap{
		Server: Server{Addr: ":9000", MaxConcurrent: 4},
		Search: Search{ForwardBatch: 100_000, InverseBatch: 10_000_000},
		Games:  Games{Dir: "./configs", WatchInterval: 2 * time.Second},
		Log:    Log{Level: "info", Encoding: "console"},
	}
}

// Load reads path over Default. An empty path returns the defaults.
func Load(path string) (Bootstrap, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Bootstrap{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Bootstrap{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Bootstrap{}, err
	}
	return c, nil
}

// Validate checks value ranges, reporting all problems at once.
func (c Bootstrap) Validate() error {
	var errs []string
	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.MaxConcurrent < 0 {
		errs = append(errs, "server.max_concurrent must be >= 0")
	}
	if c.Search.Workers < 0 {
		errs = append(errs, "search.workers must be >= 0")
	}
	if c.Games.WatchInterval < 0 {
		errs = append(errs, "games.watch_interval must be >= 0")
	}
	switch strings.ToLower(c.Log.Encoding) {
	case "", "console", "json":
	default:
		errs = append(errs, "log.encoding must be console or json")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrConf, strings.Join(errs, "; "))
	}
	return nil
}

// Package config loads psosearch settings from a YAML file, environment
// variables (prefixed PSOSEARCH_) and command line flags bound through
// viper.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/balance"
	"github.com/samtorrez84/psosearch/bench"
	"github.com/samtorrez84/psosearch/space"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ModeGrid   = "grid"
	ModeRandom = "random"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Problem string      `mapstructure:"problem" yaml:"problem"`
	Search  Search      `mapstructure:"search" yaml:"search"`
	Sweep   Sweep       `mapstructure:"sweep" yaml:"sweep"`
	Space   space.Space `mapstructure:"space" yaml:"space"`
	Output  Output      `mapstructure:"output" yaml:"output"`
	Log     Log         `mapstructure:"log" yaml:"log"`
}

type Search struct {
	// Mode is "grid" or "random".
	Mode    string `mapstructure:"mode" yaml:"mode"`
	Workers int    `mapstructure:"workers" yaml:"workers"`
	// Samples is the number of combinations drawn in random mode.
	Samples int   `mapstructure:"samples" yaml:"samples"`
	MaxIter int   `mapstructure:"max_iter" yaml:"max_iter"`
	Seed    int64 `mapstructure:"seed" yaml:"seed"`
	// Cost names the balancing cost model, see balance.CostByName.
	Cost string `mapstructure:"cost" yaml:"cost"`
	// Evaler is "serial", "batch" or "parallel".
	Evaler string `mapstructure:"evaler" yaml:"evaler"`
}

// Sweep repeats a search for every worker count from 1 to MaxWorkers.
type Sweep struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
	Repeats    int `mapstructure:"repeats" yaml:"repeats"`
}

type Output struct {
	// CSV is the results file; empty selects CSVPath's per problem default.
	CSV   string `mapstructure:"csv" yaml:"csv"`
	DB    string `mapstructure:"db" yaml:"db"`
	Plots string `mapstructure:"plots" yaml:"plots"`
}

type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	sp := space.Default()

	v.SetDefault("problem", "Quadratic")

	v.SetDefault("search.mode", ModeGrid)
	v.SetDefault("search.workers", runtime.NumCPU())
	v.SetDefault("search.samples", 300)
	v.SetDefault("search.max_iter", 50)
	v.SetDefault("search.seed", 0)
	v.SetDefault("search.cost", "squared")
	v.SetDefault("search.evaler", "serial")

	v.SetDefault("sweep.max_workers", runtime.NumCPU())
	v.SetDefault("sweep.repeats", 1)

	v.SetDefault("space.particles", sp.Particles)
	v.SetDefault("space.inertia", sp.Inertia)
	v.SetDefault("space.cognition", sp.Cognition)
	v.SetDefault("space.social", sp.Social)

	v.SetDefault("output.csv", "")
	v.SetDefault("output.db", "")
	v.SetDefault("output.plots", "plots")

	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults set and environment overrides
// enabled.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("psosearch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the YAML file at path into v (if path is not empty) and returns
// the validated configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %v", ErrInvalid, fmt.Sprintf(format, args...))
	}

	switch c.Search.Mode {
	case ModeGrid:
	case ModeRandom:
		if c.Search.Samples < 1 {
			return invalid("search.samples must be positive, got %v", c.Search.Samples)
		}
	default:
		return invalid("unknown search.mode %q", c.Search.Mode)
	}

	if c.Search.Workers < 1 {
		return invalid("search.workers must be positive, got %v", c.Search.Workers)
	} else if c.Search.MaxIter < 0 {
		return invalid("search.max_iter must not be negative, got %v", c.Search.MaxIter)
	} else if c.Sweep.MaxWorkers < 1 || c.Sweep.Repeats < 1 {
		return invalid("sweep.max_workers and sweep.repeats must be positive")
	}

	if _, err := balance.CostByName(c.Search.Cost); err != nil {
		return invalid("%v", err)
	}
	if _, err := c.NewEvaler(); err != nil {
		return err
	}
	if _, err := bench.ByName(c.Problem); err != nil {
		return invalid("%v", err)
	}
	if err := c.Space.Validate(); err != nil {
		return invalid("%v", err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// NewEvaler returns a constructor for the configured evaluator; every worker
// gets its own instance.
func (c *Config) NewEvaler() (func() psosearch.Evaler, error) {
	switch c.Search.Evaler {
	case "serial", "":
		return func() psosearch.Evaler { return psosearch.SerialEvaler{} }, nil
	case "batch":
		return func() psosearch.Evaler { return psosearch.BatchEvaler{} }, nil
	case "parallel":
		return func() psosearch.Evaler { return psosearch.ParallelEvaler{} }, nil
	}
	return nil, fmt.Errorf("%w: unknown search.evaler %q", ErrInvalid, c.Search.Evaler)
}

// CSVPath returns the results file.  Unless output.csv is set, every problem
// and search mode accumulates runs in its own file, since rows of different
// dimensions cannot share one.
func (c *Config) CSVPath() string {
	if c.Output.CSV != "" {
		return c.Output.CSV
	}
	return fmt.Sprintf("results_%v_%v.csv", strings.ToLower(c.Problem), c.Search.Mode)
}

// Logger builds a text logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if lvl, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// Write encodes the configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/space"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.Mode != ModeGrid || cfg.Search.MaxIter != 50 || cfg.Search.Samples != 300 {
		t.Errorf("unexpected search defaults %+v", cfg.Search)
	}
	if cfg.Problem != "Quadratic" || cfg.Log.Level != "info" {
		t.Errorf("unexpected defaults: problem %q, level %q", cfg.Problem, cfg.Log.Level)
	}
	if !reflect.DeepEqual(cfg.Space, space.Default()) {
		t.Errorf("want default space, got %+v", cfg.Space)
	}
}

func TestCSVPath(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.CSVPath(); got != "results_quadratic_grid.csv" {
		t.Errorf("default csv path %q", got)
	}

	cfg.Problem = "Himmelblau"
	cfg.Search.Mode = ModeRandom
	if got := cfg.CSVPath(); got != "results_himmelblau_random.csv" {
		t.Errorf("csv path %q does not follow problem and mode", got)
	}

	cfg.Output.CSV = "runs.csv"
	if got := cfg.CSVPath(); got != "runs.csv" {
		t.Errorf("explicit csv path ignored, got %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psosearch.yaml")
	data := `
problem: Parabola
search:
  mode: random
  workers: 3
  samples: 20
  seed: 42
  evaler: batch
space:
  particles: [10, 30]
  inertia: [0.5]
  cognition: [1.5, 2]
  social: [2]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Problem != "Parabola" || cfg.Search.Mode != ModeRandom || cfg.Search.Workers != 3 ||
		cfg.Search.Samples != 20 || cfg.Search.Seed != 42 {
		t.Errorf("file values not applied: %+v %+v", cfg.Problem, cfg.Search)
	}
	if cfg.Search.MaxIter != 50 {
		t.Errorf("unset key should keep its default, got max_iter %v", cfg.Search.MaxIter)
	}
	want := space.Space{Particles: []int{10, 30}, Inertia: []float64{0.5}, Cognition: []float64{1.5, 2}, Social: []float64{2}}
	if !reflect.DeepEqual(cfg.Space, want) {
		t.Errorf("space: want %+v, got %+v", want, cfg.Space)
	}

	newEv, err := cfg.NewEvaler()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := newEv().(psosearch.BatchEvaler); !ok {
		t.Errorf("want BatchEvaler, got %T", newEv())
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PSOSEARCH_SEARCH_WORKERS", "7")
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.Workers != 7 {
		t.Errorf("want 7 workers from environment, got %v", cfg.Search.Workers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"mode", func(c *Config) { c.Search.Mode = "exhaustive" }},
		{"workers", func(c *Config) { c.Search.Workers = 0 }},
		{"samples", func(c *Config) { c.Search.Mode = ModeRandom; c.Search.Samples = 0 }},
		{"max_iter", func(c *Config) { c.Search.MaxIter = -1 }},
		{"cost", func(c *Config) { c.Search.Cost = "cubic" }},
		{"evaler", func(c *Config) { c.Search.Evaler = "gpu" }},
		{"problem", func(c *Config) { c.Problem = "Banana" }},
		{"space", func(c *Config) { c.Space.Inertia = nil }},
		{"level", func(c *Config) { c.Log.Level = "loud" }},
		{"sweep", func(c *Config) { c.Sweep.Repeats = 0 }},
	}

	for _, test := range tests {
		cfg, err := Load(New(), "")
		if err != nil {
			t.Fatal(err)
		}
		test.modify(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%v: want ErrInvalid, got %v", test.name, err)
		}
	}
}

func TestWriteReload(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Problem = "Himmelblau"
	cfg.Search.Workers = 5

	var buf bytes.Buffer
	if err := cfg.Write(&buf); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(New(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("reloaded config differs:\n%+v\nwant\n%+v", got, cfg)
	}
}

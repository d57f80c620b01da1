// Package config provides configuration loading and validation for simulation runs.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/regionsim/internal/agents"
	"github.com/talgya/regionsim/internal/world"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all run configuration.
type Config struct {
	Seed     int64  `yaml:"seed" json:"seed"`
	Cycles   int    `yaml:"cycles" json:"cycles"`
	LogLevel string `yaml:"log_level" json:"log_level"` // debug, info, warn, error

	Agent  agents.Params `yaml:"agent" json:"agent"`
	World  WorldConfig   `yaml:"world" json:"world"`
	Output OutputConfig  `yaml:"output" json:"output"`
	Sweep  SweepConfig   `yaml:"sweep" json:"sweep"`
}

// WorldConfig controls how the region table is built.
type WorldConfig struct {
	Perturbation float64 `yaml:"perturbation" json:"perturbation"` // Relative noise on initial stock; 0 = reference table
	NoiseScale   float64 `yaml:"noise_scale" json:"noise_scale"`
}

// OutputConfig controls run recording.
type OutputConfig struct {
	DBPath      string `yaml:"db_path" json:"db_path"`             // SQLite archive; empty disables
	CycleLogDir string `yaml:"cycle_log_dir" json:"cycle_log_dir"` // Compressed JSONL cycle logs; empty disables
	ReportEvery int    `yaml:"report_every" json:"report_every"`   // Cycles between progress reports; 0 disables

	CycleInterval time.Duration `yaml:"cycle_interval" json:"cycle_interval"` // Minimum wall time per cycle; 0 runs flat out
}

// SweepConfig controls multi-seed runs.
type SweepConfig struct {
	FirstSeed int64 `yaml:"first_seed" json:"first_seed"`
	Seeds     int   `yaml:"seeds" json:"seeds"`
	Workers   int   `yaml:"workers" json:"workers"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("parsing embedded defaults: %v", err))
	}
	return cfg
}

// Load reads a config file over the embedded defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only keys present in the file overwrite defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the simulation cannot run with.
func (c *Config) Validate() error {
	a := c.Agent
	switch {
	case c.Cycles <= 0:
		return fmt.Errorf("%w: cycles must be positive, got %d", ErrInvalid, c.Cycles)
	case a.LearningRate <= 0 || a.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate must be in (0, 1], got %v", ErrInvalid, a.LearningRate)
	case a.Discount < 0 || a.Discount >= 1:
		return fmt.Errorf("%w: discount must be in [0, 1), got %v", ErrInvalid, a.Discount)
	case a.EpsilonStart < 0 || a.EpsilonStart > 1:
		return fmt.Errorf("%w: epsilon_start must be in [0, 1], got %v", ErrInvalid, a.EpsilonStart)
	case a.EpsilonEnd < 0 || a.EpsilonEnd > a.EpsilonStart:
		return fmt.Errorf("%w: epsilon_end must be in [0, epsilon_start], got %v", ErrInvalid, a.EpsilonEnd)
	case a.EpsilonDecay <= 0 || a.EpsilonDecay > 1:
		return fmt.Errorf("%w: epsilon_decay must be in (0, 1], got %v", ErrInvalid, a.EpsilonDecay)
	case c.World.Perturbation < 0 || c.World.Perturbation >= 1:
		return fmt.Errorf("%w: perturbation must be in [0, 1), got %v", ErrInvalid, c.World.Perturbation)
	case c.World.Perturbation > 0 && c.World.NoiseScale <= 0:
		return fmt.Errorf("%w: noise_scale must be positive, got %v", ErrInvalid, c.World.NoiseScale)
	case c.Output.ReportEvery < 0:
		return fmt.Errorf("%w: report_every must not be negative", ErrInvalid)
	case c.Output.CycleInterval < 0:
		return fmt.Errorf("%w: cycle_interval must not be negative", ErrInvalid)
	case c.Sweep.Seeds < 0 || c.Sweep.Workers < 0:
		return fmt.Errorf("%w: sweep seeds and workers must not be negative", ErrInvalid)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// RegionTable returns the reference table, perturbed for seed when configured.
func (c *Config) RegionTable(seed int64) []world.RegionConfig {
	table := world.DefaultTable()
	if c.World.Perturbation <= 0 {
		return table
	}
	return world.Perturb(table, world.PerturbConfig{
		Seed:      seed,
		Amplitude: c.World.Perturbation,
		Scale:     c.World.NoiseScale,
	})
}

// SweepSeeds returns the seeds a sweep runs, in order.
func (c *Config) SweepSeeds() []int64 {
	seeds := make([]int64, c.Sweep.Seeds)
	for i := range seeds {
		seeds[i] = c.Sweep.FirstSeed + int64(i)
	}
	return seeds
}

// WriteYAML saves the configuration to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

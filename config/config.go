package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/vi-motion/component"
	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/parameter"
	"github.com/lixenwraith/vi-motion/vmath"
)

// Config is the full runtime configuration, loadable from YAML
// Omitted keys keep their Default values
type Config struct {
	Simulation Simulation `yaml:"simulation"`
	Evaluation Evaluation `yaml:"evaluation"`
	Log        Log        `yaml:"log"`
}

// Simulation sizes the registry and tunes prediction
type Simulation struct {
	BucketCount        int           `yaml:"bucket_count"`
	BucketCapacity     int           `yaml:"bucket_capacity"`
	ArenaCapacity      int           `yaml:"arena_capacity"`
	Epsilon            float64       `yaml:"epsilon"`
	LookaheadFactor    float64       `yaml:"lookahead_factor"`
	PreciseGranularity float64       `yaml:"precise_granularity"`
	SpeedRatio         float64       `yaml:"speed_ratio"`
	FrameInterval      time.Duration `yaml:"frame_interval"`
}

// Evaluation is the speed-to-interval curve
type Evaluation struct {
	MostFrequent         time.Duration `yaml:"most_frequent"`
	LeastFrequent        time.Duration `yaml:"least_frequent"`
	SpeedForMostFrequent float64       `yaml:"speed_for_most_frequent"`
}

// Log selects level, encoding and destination
type Log struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json or console
	Output    string `yaml:"output"` // stderr, stdout, or a file path
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// Default returns the compiled-in configuration
func Default() Config {
	return Config{
		Simulation: Simulation{
			BucketCount:        parameter.RegistryBucketCount,
			BucketCapacity:     parameter.RegistryBucketCapacity,
			ArenaCapacity:      parameter.RegistryArenaCapacity,
			Epsilon:            parameter.Epsilon,
			LookaheadFactor:    parameter.LookaheadFactor,
			PreciseGranularity: parameter.PreciseRayGranularity,
			SpeedRatio:         parameter.DefaultSpeedRatio,
			FrameInterval:      parameter.FrameUpdateInterval,
		},
		Evaluation: Evaluation{
			MostFrequent:         parameter.EvalMostFrequent,
			LeastFrequent:        parameter.EvalLeastFrequent,
			SpeedForMostFrequent: parameter.EvalSpeedForMostFrequent,
		},
		Log: Log{
			Level:     "info",
			Format:    "json",
			Output:    "stderr",
			MaxSizeMB: 10,
		},
	}
}

// Load reads and validates a YAML file over the defaults
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses YAML over the defaults, rejecting unknown keys, then validates
// An empty document yields the defaults
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects zero or negative sizes, delays and ratios
func (c Config) Validate() error {
	s := c.Simulation
	if s.BucketCount <= 0 || s.BucketCapacity <= 0 || s.ArenaCapacity <= 0 {
		return fmt.Errorf("%w: registry sizes must be positive (buckets %d, capacity %d, arena %d)",
			core.ErrInvalidArgument, s.BucketCount, s.BucketCapacity, s.ArenaCapacity)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"epsilon", s.Epsilon},
		{"lookahead_factor", s.LookaheadFactor},
		{"precise_granularity", s.PreciseGranularity},
		{"speed_ratio", s.SpeedRatio},
	} {
		if !(f.v > 0) || !vmath.IsFinite(f.v) {
			return fmt.Errorf("%w: simulation.%s must be positive and finite, got %v", core.ErrInvalidArgument, f.name, f.v)
		}
	}
	if s.FrameInterval <= 0 {
		return fmt.Errorf("%w: simulation.frame_interval must be positive", core.ErrInvalidArgument)
	}
	if err := c.EvalParams().Validate(); err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", core.ErrInvalidArgument, c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.format %q", core.ErrInvalidArgument, c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("%w: log.max_size_mb %d", core.ErrInvalidArgument, c.Log.MaxSizeMB)
	}
	return nil
}

// EvalParams converts the evaluation section for component.NewVelocity
func (c Config) EvalParams() component.EvalParams {
	return component.EvalParams{
		MostFrequent:         c.Evaluation.MostFrequent,
		LeastFrequent:        c.Evaluation.LeastFrequent,
		SpeedForMostFrequent: c.Evaluation.SpeedForMostFrequent,
	}
}

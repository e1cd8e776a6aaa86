package rnaseq

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// CountsConfig carries every tunable of the counts core. Each stage
// receives exactly the values it needs; there is no shared dynamic config
// object, and an invalid file is rejected once at load time instead of
// surfacing as a default deep inside a numeric stage.
type CountsConfig struct {
	// MinCount is the low-expression filter threshold: a gene must reach
	// this count in a sufficient fraction of samples to be retained.
	MinCount int `yaml:"min_count"`
	// MinSampleFrac is that fraction, in (0, 1].
	MinSampleFrac float64 `yaml:"min_sample_frac"`
	// Components is the number of principal components to extract.
	Components int `yaml:"components"`
}

func DefaultCountsConfig() CountsConfig {
	return CountsConfig{
		MinCount:      10,
		MinSampleFrac: 0.5,
		Components:    2,
	}
}

func (c CountsConfig) Validate() error {
	if c.MinCount < 1 {
		return fmt.Errorf("config: min_count must be ≥ 1, got %d", c.MinCount)
	}
	if c.MinSampleFrac <= 0 || c.MinSampleFrac > 1 {
		return fmt.Errorf("config: min_sample_frac must be in (0, 1], got %g", c.MinSampleFrac)
	}
	if c.Components < 1 {
		return fmt.Errorf("config: components must be ≥ 1, got %d", c.Components)
	}
	return nil
}

// LoadCountsConfig reads a YAML config file. Missing keys take their
// defaults; unknown keys are rejected so typos fail loudly.
func LoadCountsConfig(path string) (CountsConfig, error) {
	cfg := DefaultCountsConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

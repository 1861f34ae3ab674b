package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ceph   Ceph   `yaml:"ceph"`
	Lustre Lustre `yaml:"lustre"`
	Walk   Walk   `yaml:"walk"`
	Store  Store  `yaml:"store"`
	Log    Log    `yaml:"log"`
}

type Ceph struct {
	// Residual weight below which an open bucket is closed
	WeightEpsilon float64 `yaml:"weight_epsilon"`
	// Factor applied to TiB capacities in pg dumps
	TiBScale        float64 `yaml:"tib_scale"`
	PGPreambleLines int     `yaml:"pg_preamble_lines"`
}

type Lustre struct {
	LFSPath string        `yaml:"lfs_path"`
	Timeout time.Duration `yaml:"timeout"`
}

type Walk struct {
	Concurrency int `yaml:"concurrency"`
}

type Store struct {
	// Empty keeps results out of the database
	Path string `yaml:"path,omitempty"`
}

type Log struct {
	Level string `yaml:"level"`
}

var defaultConfig = Config{
	Ceph: Ceph{
		WeightEpsilon:   0.1,
		TiBScale:        1000,
		PGPreambleLines: 5,
	},
	Lustre: Lustre{
		LFSPath: "lfs",
		Timeout: 30 * time.Second,
	},
	Walk: Walk{
		Concurrency: 8,
	},
	Log: Log{
		Level: "info",
	},
}

// Default returns the built-in settings
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// Load reads path, or the first existing default location when path is
// empty, over the built-in settings
func Load(path string) (*Config, error) {
	if path == "" {
		// Try default locations
		candidates := []string{
			"/etc/iobat/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/iobat/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Ceph.WeightEpsilon <= 0 {
		errs = append(errs, errors.New("ceph.weight_epsilon must be positive"))
	}
	if c.Ceph.TiBScale <= 0 {
		errs = append(errs, errors.New("ceph.tib_scale must be positive"))
	}
	if c.Ceph.PGPreambleLines < 1 {
		errs = append(errs, errors.New("ceph.pg_preamble_lines must be at least 1"))
	}
	if c.Lustre.LFSPath == "" {
		errs = append(errs, errors.New("lustre.lfs_path is empty"))
	}
	if c.Lustre.Timeout <= 0 {
		errs = append(errs, errors.New("lustre.timeout must be positive"))
	}
	if c.Walk.Concurrency < 1 {
		errs = append(errs, errors.New("walk.concurrency must be at least 1"))
	}
	return errors.Join(errs...)
}

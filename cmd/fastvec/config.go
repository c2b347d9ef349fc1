package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/fastvec/internal/model"
	"github.com/samcharles93/fastvec/internal/train"
)

// Config represents the fastvec configuration file (~/.config/fastvec/config.yaml).
// Empty strings mean "not set"; ReadTimeout and the TrainConfig fields are
// pointers so an explicit zero can be told apart from an absent key.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Train TrainConfig `yaml:"train"`

	// Server
	ServerAddress string         `yaml:"server_address"`
	ReadTimeout   *time.Duration `yaml:"read_timeout"`
}

// TrainConfig mirrors the train command flags.
type TrainConfig struct {
	Mode              *string        `yaml:"mode"`
	Loss              *string        `yaml:"loss"`
	Dim               *int           `yaml:"dim"`
	Epoch             *int           `yaml:"epoch"`
	LR                *float64       `yaml:"lr"`
	LRUpdateRate      *int64         `yaml:"lr_update_rate"`
	WS                *int           `yaml:"ws"`
	Neg               *int           `yaml:"neg"`
	Threads           *int           `yaml:"threads"`
	Seed              *uint64        `yaml:"seed"`
	NormalizeGradient *bool          `yaml:"normalize_gradient"`
	NegativeTableSize *int           `yaml:"negative_table_size"`
	ProgressInterval  *time.Duration `yaml:"progress_interval"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fastvec", "config.yaml")
}

// LoadConfig reads the config file.  A missing default file yields a zero
// Config; a missing explicit file is an error.
func LoadConfig(path string, explicit bool) (Config, error) {
	if path == "" {
		path = configPath()
	}
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyLogConfig applies config file logging defaults when the matching
// flags were not set.
func applyLogConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, readTimeout *time.Duration) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.ReadTimeout != nil && !c.IsSet("read-timeout") {
		*readTimeout = *cfg.ReadTimeout
	}
}

// buildTrainConfig layers the mode defaults, the config file and the flags
// the user set, in that order.
func buildTrainConfig(c *cli.Command, file TrainConfig, f *trainFlags) (train.Config, error) {
	mode := train.Mode(f.mode)
	if file.Mode != nil && !c.IsSet("mode") {
		mode = train.Mode(*file.Mode)
	}
	cfg := train.DefaultConfig(mode)

	if file.Loss != nil {
		cfg.Loss = model.Kind(*file.Loss)
	}
	if file.Dim != nil {
		cfg.Dim = *file.Dim
	}
	if file.Epoch != nil {
		cfg.Epoch = *file.Epoch
	}
	if file.LR != nil {
		cfg.LR = *file.LR
	}
	if file.LRUpdateRate != nil {
		cfg.LRUpdateRate = *file.LRUpdateRate
	}
	if file.WS != nil {
		cfg.WS = *file.WS
	}
	if file.Neg != nil {
		cfg.Neg = *file.Neg
	}
	if file.Threads != nil {
		cfg.Threads = *file.Threads
	}
	if file.Seed != nil {
		cfg.Seed = *file.Seed
	}
	if file.NormalizeGradient != nil {
		cfg.NormalizeGradient = *file.NormalizeGradient
	}
	if file.NegativeTableSize != nil {
		cfg.NegativeTableSize = *file.NegativeTableSize
	}
	if file.ProgressInterval != nil {
		cfg.ProgressInterval = *file.ProgressInterval
	}

	if c.IsSet("loss") {
		cfg.Loss = model.Kind(f.loss)
	}
	if c.IsSet("dim") {
		cfg.Dim = int(f.dim)
	}
	if c.IsSet("epoch") {
		cfg.Epoch = int(f.epoch)
	}
	if c.IsSet("lr") {
		cfg.LR = f.lr
	}
	if c.IsSet("lr-update-rate") {
		cfg.LRUpdateRate = f.lrRate
	}
	if c.IsSet("ws") {
		cfg.WS = int(f.ws)
	}
	if c.IsSet("neg") {
		cfg.Neg = int(f.neg)
	}
	if c.IsSet("threads") {
		cfg.Threads = int(f.threads)
	}
	if c.IsSet("seed") {
		if f.seed < 0 {
			return train.Config{}, fmt.Errorf("%w: seed must not be negative", train.ErrInvalidConfig)
		}
		cfg.Seed = uint64(f.seed)
	}
	if c.IsSet("normalize-gradient") {
		cfg.NormalizeGradient = f.normGrad
	}
	if c.IsSet("progress") {
		cfg.ProgressInterval = f.progress
	}
	if c.IsSet("negative-table-size") {
		cfg.NegativeTableSize = int(f.negTable)
	}
	return cfg, cfg.Validate()
}

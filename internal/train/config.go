package train

import (
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/fastvec/internal/model"
)

// Mode selects how examples are turned into updates.
type Mode string

const (
	ModeSupervised Mode = "supervised"
	ModeCBOW       Mode = "cbow"
	ModeSkipgram   Mode = "skipgram"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("train: invalid config")

// Config holds the training hyper-parameters.
type Config struct {
	Mode              Mode          `yaml:"mode" json:"mode"`
	Loss              model.Kind    `yaml:"loss" json:"loss"`
	Dim               int           `yaml:"dim" json:"dim"`
	Epoch             int           `yaml:"epoch" json:"epoch"`
	LR                float64       `yaml:"lr" json:"lr"`
	LRUpdateRate      int64         `yaml:"lr_update_rate" json:"lr_update_rate"`
	WS                int           `yaml:"ws" json:"ws"`
	Neg               int           `yaml:"neg" json:"neg"`
	Threads           int           `yaml:"threads" json:"threads"`
	Seed              uint64        `yaml:"seed" json:"seed"`
	NormalizeGradient bool          `yaml:"normalize_gradient" json:"normalize_gradient"`
	NegativeTableSize int           `yaml:"negative_table_size" json:"negative_table_size"`
	ProgressInterval  time.Duration `yaml:"progress_interval" json:"progress_interval"`
}

// DefaultConfig returns the usual hyper-parameters for mode.  Supervised
// training uses softmax, a higher learning rate and gradient normalisation.
func DefaultConfig(mode Mode) Config {
	cfg := Config{
		Mode:              mode,
		Loss:              model.KindNegativeSampling,
		Dim:               100,
		Epoch:             5,
		LR:                0.05,
		LRUpdateRate:      100,
		WS:                5,
		Neg:               5,
		Threads:           12,
		NegativeTableSize: model.DefaultNegativeTableSize,
		ProgressInterval:  time.Second,
	}
	if mode == ModeSupervised {
		cfg.Loss = model.KindSoftmax
		cfg.LR = 0.1
		cfg.NormalizeGradient = true
	}
	return cfg
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSupervised, ModeCBOW, ModeSkipgram:
	default:
		return fmt.Errorf("%w: mode %q (want supervised, cbow or skipgram)", ErrInvalidConfig, c.Mode)
	}
	if _, err := model.ParseKind(string(c.Loss)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Loss == model.KindOneVsAll && c.Mode != ModeSupervised {
		return fmt.Errorf("%w: ova loss is only valid for supervised training", ErrInvalidConfig)
	}
	switch {
	case c.Dim <= 0:
		return fmt.Errorf("%w: dim must be positive, got %d", ErrInvalidConfig, c.Dim)
	case c.Epoch <= 0:
		return fmt.Errorf("%w: epoch must be positive, got %d", ErrInvalidConfig, c.Epoch)
	case c.LR <= 0:
		return fmt.Errorf("%w: lr must be positive, got %g", ErrInvalidConfig, c.LR)
	case c.LRUpdateRate <= 0:
		return fmt.Errorf("%w: lr update rate must be positive, got %d", ErrInvalidConfig, c.LRUpdateRate)
	case c.Threads <= 0:
		return fmt.Errorf("%w: threads must be positive, got %d", ErrInvalidConfig, c.Threads)
	case c.Mode != ModeSupervised && c.WS <= 0:
		return fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, c.WS)
	case c.Loss == model.KindNegativeSampling && c.Neg <= 0:
		return fmt.Errorf("%w: neg must be positive, got %d", ErrInvalidConfig, c.Neg)
	}
	return nil
}

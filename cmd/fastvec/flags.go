package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fastvec/internal/corpus"
)

var (
	logLevel   string
	logFormat  string
	debug      bool
	configFile string

	fileConfig Config
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "path to config.yaml (default $XDG_CONFIG_HOME/fastvec/config.yaml)",
		Destination: &configFile,
	}
}

// trainFlags holds the raw train command flags.  Only flags the user set
// override the mode defaults and the config file.
type trainFlags struct {
	input    string
	output   string
	report   string
	mode     string
	loss     string
	dim      int64
	epoch    int64
	lr       float64
	lrRate   int64
	ws       int64
	neg      int64
	threads  int64
	seed     int64
	normGrad bool
	progress time.Duration
	negTable int64
	maxID    int64
}

func (f *trainFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "training corpus (one example per line)",
			Required:    true,
			Destination: &f.input,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "export directory for vectors and manifest",
			Required:    true,
			Destination: &f.output,
		},
		&cli.StringFlag{
			Name:        "report",
			Usage:       "write a JSON training report to this path",
			Destination: &f.report,
		},
		&cli.StringFlag{
			Name:        "mode",
			Usage:       "supervised, cbow or skipgram",
			Value:       "supervised",
			Destination: &f.mode,
		},
		&cli.StringFlag{
			Name:        "loss",
			Usage:       "ns, hs, softmax or ova (default softmax for supervised, ns otherwise)",
			Destination: &f.loss,
		},
		&cli.Int64Flag{
			Name:        "dim",
			Usage:       "vector dimension (default 100)",
			Destination: &f.dim,
		},
		&cli.Int64Flag{
			Name:        "epoch",
			Usage:       "passes over the corpus (default 5)",
			Destination: &f.epoch,
		},
		&cli.Float64Flag{
			Name:        "lr",
			Usage:       "initial learning rate (default 0.1 supervised, 0.05 otherwise)",
			Destination: &f.lr,
		},
		&cli.Int64Flag{
			Name:        "lr-update-rate",
			Usage:       "tokens between learning rate updates (default 100)",
			Destination: &f.lrRate,
		},
		&cli.Int64Flag{
			Name:        "ws",
			Usage:       "maximum context window (default 5)",
			Destination: &f.ws,
		},
		&cli.Int64Flag{
			Name:        "neg",
			Usage:       "negatives sampled per target (default 5)",
			Destination: &f.neg,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Aliases:     []string{"t"},
			Usage:       "training goroutines (default 12)",
			Destination: &f.threads,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed",
			Destination: &f.seed,
		},
		&cli.BoolFlag{
			Name:        "normalize-gradient",
			Usage:       "divide the input gradient by the bag size (default on for supervised)",
			Destination: &f.normGrad,
		},
		&cli.DurationFlag{
			Name:        "progress",
			Usage:       "progress log interval, 0 disables (default 1s)",
			Destination: &f.progress,
		},
		&cli.Int64Flag{
			Name:        "negative-table-size",
			Usage:       "slots in the negative sampling table",
			Destination: &f.negTable,
		},
		&cli.Int64Flag{
			Name:        "max-id",
			Usage:       "reject corpus ids above this value",
			Value:       int64(corpus.DefaultMaxID),
			Destination: &f.maxID,
		},
	}
}

func modelFlag(dest *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "model",
		Aliases:     []string{"m"},
		Usage:       "export directory written by train",
		Required:    true,
		Destination: dest,
	}
}

func kFlag(dest *int64, def int64) cli.Flag {
	return &cli.Int64Flag{
		Name:        "k",
		Usage:       "number of results (-1 for all)",
		Value:       def,
		Destination: dest,
	}
}

func thresholdFlag(dest *float64) cli.Flag {
	return &cli.Float64Flag{
		Name:        "threshold",
		Usage:       "drop predictions below this probability",
		Destination: dest,
	}
}

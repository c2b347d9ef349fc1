package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fastvec/internal/corpus"
	"github.com/samcharles93/fastvec/internal/logger"
	"github.com/samcharles93/fastvec/internal/train"
	"github.com/samcharles93/fastvec/internal/vecfile"
)

func trainCmd() *cli.Command {
	var f trainFlags
	return &cli.Command{
		Name:  "train",
		Usage: "Train a supervised, cbow or skipgram model and export its vectors",
		Flags: f.flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			cfg, err := buildTrainConfig(cmd, fileConfig.Train, &f)
			if err != nil {
				return err
			}

			if f.maxID < 0 || f.maxID > math.MaxInt32 {
				return fmt.Errorf("%w: max-id must be within [0, %d], got %d", train.ErrInvalidConfig, math.MaxInt32, f.maxID)
			}
			loadStart := time.Now()
			c, err := corpus.LoadLimit(f.input, int32(f.maxID))
			if err != nil {
				return fmt.Errorf("load corpus: %w", err)
			}
			log.Info("corpus loaded",
				"path", f.input,
				"examples", len(c.Examples),
				"words", c.NWords,
				"labels", c.NLabels,
				"tokens", c.NTokens,
				"elapsed", time.Since(loadStart),
			)

			runID := vecfile.NewRunID()
			trainer, err := train.New(cfg, c, log.With("run_id", runID))
			if err != nil {
				return err
			}
			startedAt := time.Now()
			res, err := trainer.Run(ctx)
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}

			if err := vecfile.Save(f.output, vecfile.FromResult(runID, cfg, res)); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			log.Info("vectors exported", "dir", f.output)

			if f.report != "" {
				if err := writeReport(f.report, train.NewReport(runID, startedAt, cfg, res)); err != nil {
					return fmt.Errorf("report: %w", err)
				}
				log.Info("report written", "path", f.report)
			}
			return nil
		},
	}
}

func writeReport(path string, r train.Report) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Write(out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

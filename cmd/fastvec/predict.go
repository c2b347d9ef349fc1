package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fastvec/internal/corpus"
	"github.com/samcharles93/fastvec/internal/eval"
	"github.com/samcharles93/fastvec/internal/logger"
	"github.com/samcharles93/fastvec/internal/model"
	"github.com/samcharles93/fastvec/internal/train"
	"github.com/samcharles93/fastvec/internal/vecfile"
)

func loadModel(dir string) (*vecfile.Snapshot, *model.Model, error) {
	snap, err := vecfile.Load(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}
	m, err := snap.Model()
	if err != nil {
		return nil, nil, err
	}
	return snap, m, nil
}

// openInput returns stdin for "-" or an empty path.
func openInput(cmd *cli.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.Root().Reader), nil
	}
	return os.Open(path)
}

func testCmd() *cli.Command {
	var (
		modelDir  string
		k         int64
		threshold float64
		perLabel  bool
	)
	return &cli.Command{
		Name:      "test",
		Usage:     "Report precision and recall at k over a labelled corpus",
		ArgsUsage: "<test-file>",
		Flags: []cli.Flag{
			modelFlag(&modelDir),
			kFlag(&k, 1),
			thresholdFlag(&threshold),
			&cli.BoolFlag{
				Name:        "per-label",
				Usage:       "also print precision and recall for every label",
				Destination: &perLabel,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("test: expected exactly one test file")
			}
			snap, m, err := loadModel(modelDir)
			if err != nil {
				return err
			}
			if snap.Manifest.Mode != train.ModeSupervised {
				return fmt.Errorf("test: model was trained in %s mode, not supervised", snap.Manifest.Mode)
			}
			c, err := corpus.Load(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("load test corpus: %w", err)
			}
			meter, err := eval.Evaluate(m, c, int(k), float32(threshold))
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Debug("evaluated", "examples", meter.Examples(), "k", k)

			w := cmd.Root().Writer
			if perLabel {
				for _, s := range meter.PerLabel() {
					fmt.Fprintf(w, "F1-Score : %-9.6f Precision : %-9.6f Recall : %-9.6f   %s%d\n",
						s.F1, s.Precision, s.Recall, corpus.LabelPrefix, s.Label)
				}
			}
			fmt.Fprintf(w, "N\t%d\n", meter.Examples())
			fmt.Fprintf(w, "P@%d\t%.3f\n", k, meter.Precision())
			fmt.Fprintf(w, "R@%d\t%.3f\n", k, meter.Recall())
			return nil
		},
	}
}

func predictCmd() *cli.Command {
	var (
		modelDir  string
		k         int64
		threshold float64
		withProb  bool
	)
	return &cli.Command{
		Name:      "predict",
		Usage:     "Predict the top k outputs for every line of a file (or stdin)",
		ArgsUsage: "[file|-]",
		Flags: []cli.Flag{
			modelFlag(&modelDir),
			kFlag(&k, 1),
			thresholdFlag(&threshold),
			&cli.BoolFlag{
				Name:        "prob",
				Usage:       "print the probability after each prediction",
				Destination: &withProb,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			snap, m, err := loadModel(modelDir)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, cmd.Args().First())
			if err != nil {
				return err
			}
			defer in.Close()

			prefix := ""
			if snap.Manifest.Mode == train.ModeSupervised {
				prefix = corpus.LabelPrefix
			}
			return predictLines(in, cmd.Root().Writer, m, int(k), float32(threshold), prefix, withProb)
		},
	}
}

// predictLines writes one line of predictions per input line.  Lines
// without word ids produce an empty line.
func predictLines(r io.Reader, w io.Writer, m *model.Model, k int, threshold float32, prefix string, withProb bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<24)
	bw := bufio.NewWriter(w)
	st := m.NewState(0)
	var (
		preds model.Predictions
		out   []byte
	)
	for lineNo := 1; sc.Scan(); lineNo++ {
		ex, err := corpus.ParseLine(sc.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = out[:0]
		if len(ex.Words) > 0 {
			for _, id := range ex.Words {
				if int(id) >= m.Input().R {
					return fmt.Errorf("line %d: word id %d outside vocabulary of %d", lineNo, id, m.Input().R)
				}
			}
			if err := m.Predict(ex.Words, k, threshold, &preds, st); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			for i, p := range preds {
				if i > 0 {
					out = append(out, ' ')
				}
				out = append(out, prefix...)
				out = strconv.AppendInt(out, int64(p.ID), 10)
				if withProb {
					out = append(out, ' ')
					out = strconv.AppendFloat(out, math.Exp(float64(p.Score)), 'f', 5, 32)
				}
			}
		}
		out = append(out, '\n')
		if _, err := bw.Write(out); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

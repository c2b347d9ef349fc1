package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fastvec/internal/neighbors"
)

func loadIndex(dir string) (*neighbors.Index, error) {
	_, m, err := loadModel(dir)
	if err != nil {
		return nil, err
	}
	return neighbors.NewIndex(m.Input()), nil
}

func nnCmd() *cli.Command {
	var (
		modelDir string
		k        int64
	)
	return &cli.Command{
		Name:      "nn",
		Usage:     "Print the nearest neighbours of word ids (arguments or one per stdin line)",
		ArgsUsage: "[id...]",
		Flags:     []cli.Flag{modelFlag(&modelDir), kFlag(&k, 10)},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			index, err := loadIndex(modelDir)
			if err != nil {
				return err
			}
			return eachQuery(cmd, 1, func(ids []int32) ([]neighbors.Neighbor, error) {
				return index.Nearest(ids[0], clampK(k, index))
			})
		},
	}
}

func analogiesCmd() *cli.Command {
	var (
		modelDir string
		k        int64
	)
	return &cli.Command{
		Name:      "analogies",
		Usage:     "Answer \"a is to b as c is to ?\" for id triplets (arguments or one per stdin line)",
		ArgsUsage: "[a b c]",
		Flags:     []cli.Flag{modelFlag(&modelDir), kFlag(&k, 10)},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			index, err := loadIndex(modelDir)
			if err != nil {
				return err
			}
			return eachQuery(cmd, 3, func(ids []int32) ([]neighbors.Neighbor, error) {
				return index.Analogies(ids[0], ids[1], ids[2], clampK(k, index))
			})
		},
	}
}

func clampK(k int64, index *neighbors.Index) int {
	if k < 0 {
		return max(index.Len(), 1)
	}
	return int(k)
}

// eachQuery runs query on groups of arity ids taken from the arguments, or
// from stdin one group per line when there are no arguments.
func eachQuery(cmd *cli.Command, arity int, query func([]int32) ([]neighbors.Neighbor, error)) error {
	w := bufio.NewWriter(cmd.Root().Writer)
	defer w.Flush()

	run := func(fields []string) error {
		if len(fields)%arity != 0 || len(fields) == 0 {
			return fmt.Errorf("expected a multiple of %d ids, got %d", arity, len(fields))
		}
		for i := 0; i < len(fields); i += arity {
			ids, err := parseIDs(fields[i : i+arity])
			if err != nil {
				return err
			}
			res, err := query(ids)
			if err != nil {
				return err
			}
			writeNeighbors(w, res)
		}
		return w.Flush()
	}

	if cmd.Args().Len() > 0 {
		return run(cmd.Args().Slice())
	}
	return eachLine(cmd.Root().Reader, func(line string) error {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil
		}
		return run(fields)
	})
}

func eachLine(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseIDs(fields []string) ([]int32, error) {
	ids := make([]int32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", f, err)
		}
		ids[i] = int32(v)
	}
	return ids, nil
}

func writeNeighbors(w io.Writer, res []neighbors.Neighbor) {
	for _, n := range res {
		fmt.Fprintf(w, "%d %.6f\n", n.ID, n.Similarity)
	}
	fmt.Fprintln(w)
}

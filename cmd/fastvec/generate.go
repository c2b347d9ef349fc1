package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fastvec/internal/corpus"
	"github.com/samcharles93/fastvec/internal/logger"
)

func generateCmd() *cli.Command {
	var (
		output    string
		customers int64
		items     int64
		maxBasket int64
		labeled   bool
		seed      int64
	)
	return &cli.Command{
		Name:  "generate",
		Usage: "Write a synthetic customer basket corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file (stdout when empty)",
				Destination: &output,
			},
			&cli.Int64Flag{
				Name:        "customers",
				Usage:       "number of lines",
				Value:       10_000,
				Destination: &customers,
			},
			&cli.Int64Flag{
				Name:        "items",
				Usage:       "item ids are drawn from 1..items",
				Value:       1_000,
				Destination: &items,
			},
			&cli.Int64Flag{
				Name:        "max-basket",
				Usage:       "largest basket per customer",
				Value:       20,
				Destination: &maxBasket,
			},
			&cli.BoolFlag{
				Name:        "labeled",
				Usage:       "write the customer id as __label__<c> for supervised training instead of a plain leading id",
				Destination: &labeled,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "random seed",
				Value:       1,
				Destination: &seed,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var w io.Writer = cmd.Root().Writer
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			cfg := corpus.GenerateConfig{
				Customers: int(customers),
				NumItems:  int(items),
				MaxBasket: int(maxBasket),
				Labeled:   labeled,
				Seed:      uint64(seed),
			}
			if err := corpus.Generate(w, cfg); err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			if output != "" {
				logger.FromContext(ctx).Info("corpus generated", "path", output, "customers", customers, "items", items)
			}
			return nil
		},
	}
}

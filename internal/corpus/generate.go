package corpus

import (
	"bufio"
	"errors"
	"io"
	"math/rand/v2"
	"strconv"
)

// GenerateConfig describes a synthetic basket corpus: one line per
// customer, listing 1..MaxBasket items drawn uniformly from 1..NumItems.
type GenerateConfig struct {
	Customers int
	NumItems  int
	MaxBasket int
	// Labeled writes the customer as __label__<c> instead of a plain id.
	Labeled bool
	Seed    uint64
}

// Generate writes the corpus described by cfg to w.
func Generate(w io.Writer, cfg GenerateConfig) error {
	if cfg.Customers < 0 || cfg.NumItems < 1 || cfg.MaxBasket < 1 {
		return errors.New("corpus: generate needs customers >= 0, items >= 1 and max basket >= 1")
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 256)
	for c := range cfg.Customers {
		buf = buf[:0]
		if cfg.Labeled {
			buf = append(buf, LabelPrefix...)
		}
		buf = strconv.AppendInt(buf, int64(c), 10)
		n := 1 + rng.IntN(cfg.MaxBasket)
		for range n {
			buf = append(buf, ' ')
			buf = strconv.AppendInt(buf, int64(1+rng.IntN(cfg.NumItems)), 10)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

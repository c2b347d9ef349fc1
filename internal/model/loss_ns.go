package model

import (
	"math"
	"math/rand/v2"

	"github.com/samcharles93/fastvec/internal/tensor"
)

const (
	// DefaultNegativeTableSize is the number of slots in the sampling table.
	DefaultNegativeTableSize = 10_000_000
	negativePower            = 0.75
	maxNegativeRedraws       = 64
)

// NegativeSamplingOption customises NewNegativeSampling.
type NegativeSamplingOption func(*negativeSamplingOptions)

type negativeSamplingOptions struct {
	tableSize int
	seed      uint64
}

// WithNegativeTableSize overrides DefaultNegativeTableSize.
func WithNegativeTableSize(n int) NegativeSamplingOption {
	return func(o *negativeSamplingOptions) {
		if n > 0 {
			o.tableSize = n
		}
	}
}

// WithNegativeTableSeed sets the seed of the one-off table shuffle.
func WithNegativeTableSeed(seed uint64) NegativeSamplingOption {
	return func(o *negativeSamplingOptions) { o.seed = seed }
}

// NegativeSampling approximates softmax with one positive logistic step and
// neg negative steps against ids drawn by frequency.
type NegativeSampling struct {
	binaryLogisticLoss
	neg       int
	negatives []int32
}

// NewNegativeSampling builds the unigram^0.75 table from counts.  The table
// is immutable afterwards and safe to share between workers.
func NewNegativeSampling(wo *tensor.Mat, neg int, counts []int64, opts ...NegativeSamplingOption) *NegativeSampling {
	o := negativeSamplingOptions{tableSize: DefaultNegativeTableSize, seed: 1}
	for _, opt := range opts {
		opt(&o)
	}

	var z float64
	for _, c := range counts {
		z += math.Pow(float64(c), negativePower)
	}
	negatives := make([]int32, 0, o.tableSize)
	if z > 0 {
		for i, c := range counts {
			share := math.Pow(float64(c), negativePower) * float64(o.tableSize) / z
			for j := 0; j < int(math.Ceil(share)); j++ {
				negatives = append(negatives, int32(i))
			}
		}
	}
	rng := rand.New(rand.NewPCG(o.seed, 0))
	rng.Shuffle(len(negatives), func(i, j int) {
		negatives[i], negatives[j] = negatives[j], negatives[i]
	})

	return &NegativeSampling{
		binaryLogisticLoss: binaryLogisticLoss{wo: wo},
		neg:                neg,
		negatives:          negatives,
	}
}

func (l *NegativeSampling) Forward(targets []int32, targetIndex int, st *State, lr float32, backprop bool) float32 {
	target := targets[targetIndex]
	loss := l.binaryLogistic(target, st, true, lr, backprop)
	for range l.neg {
		negative, ok := l.negative(target, st.RNG)
		if !ok {
			break
		}
		loss += l.binaryLogistic(negative, st, false, lr, backprop)
	}
	return loss
}

// negative draws an id different from target.  It gives up when the table
// appears to hold nothing else.
func (l *NegativeSampling) negative(target int32, rng *rand.Rand) (int32, bool) {
	if len(l.negatives) == 0 {
		return 0, false
	}
	for range maxNegativeRedraws {
		n := l.negatives[rng.IntN(len(l.negatives))]
		if n != target {
			return n, true
		}
	}
	return 0, false
}

package model

import (
	"math"
	"math/rand/v2"
)

// State is the scratch space owned by a single training or inference
// worker.  It must never be shared between goroutines; every Model call that
// needs buffers takes one explicitly.
type State struct {
	Hidden []float32 // mean of the input rows for the current bag
	Output []float32 // per-output scores, sized to the output matrix
	Grad   []float32 // gradient w.r.t. Hidden, rebuilt by every Forward

	RNG *rand.Rand

	lossValue float64
	nexamples int64
}

// NewState allocates buffers for the given hidden and output sizes with a
// generator seeded from seed.
func NewState(hiddenSize, outputSize int, seed uint64) *State {
	return &State{
		Hidden: make([]float32, hiddenSize),
		Output: make([]float32, outputSize),
		Grad:   make([]float32, hiddenSize),
		RNG:    rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)),
	}
}

// Loss returns the mean loss over all updates recorded so far.  The result
// is NaN before the first update.
func (s *State) Loss() float32 {
	if s.nexamples == 0 {
		return float32(math.NaN())
	}
	return float32(s.lossValue / float64(s.nexamples))
}

// Examples returns how many updates have been recorded.
func (s *State) Examples() int64 {
	return s.nexamples
}

func (s *State) incrementNExamples(loss float32) {
	s.lossValue += float64(loss)
	s.nexamples++
}

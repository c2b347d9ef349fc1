// Package model implements the shallow embedding engine: averaging input
// rows into a hidden vector, scoring targets through a pluggable Loss, and
// applying SGD updates to the input and output matrices.
//
// The matrices are shared by every worker and updated without any locking
// (Hogwild).  Concurrent writes to the same row may interleave; training
// converges regardless because updates are sparse.  Do not add locks here.
package model

import (
	"errors"

	"github.com/samcharles93/fastvec/internal/tensor"
)

const (
	// UnlimitedPredictions asks Predict for every output.
	UnlimitedPredictions = -1
	// AllLabelsAsTarget is the target index used with one-vs-all, where
	// every label of the example is positive.
	AllLabelsAsTarget = -1
)

var (
	ErrInvalidK   = errors.New("model: k needs to be 1 or higher")
	ErrEmptyInput = errors.New("model: empty input")
)

// Model ties an input matrix, an output matrix and a loss together.  It
// holds no training progress; the learning rate is supplied per call.
type Model struct {
	wi                *tensor.Mat
	wo                *tensor.Mat
	loss              Loss
	normalizeGradient bool
}

// New returns a Model over wi and wo.  With normalizeGradient the input
// gradient is divided by the bag size before being scattered.
func New(wi, wo *tensor.Mat, loss Loss, normalizeGradient bool) *Model {
	return &Model{
		wi:                wi,
		wo:                wo,
		loss:              loss,
		normalizeGradient: normalizeGradient,
	}
}

// NewState allocates worker scratch sized for this model.
func (m *Model) NewState(seed uint64) *State {
	return NewState(m.wi.C, m.wo.R, seed)
}

func (m *Model) Input() *tensor.Mat  { return m.wi }
func (m *Model) Output() *tensor.Mat { return m.wo }
func (m *Model) Loss() Loss          { return m.loss }

// ComputeHidden sets st.Hidden to the mean of the input rows.  input must
// not be empty.
func (m *Model) ComputeHidden(input []int32, st *State) {
	hidden := st.Hidden
	tensor.Zero(hidden)
	for _, id := range input {
		tensor.AddRow(hidden, m.wi, int(id), 1)
	}
	tensor.Scale(hidden, 1/float32(len(input)))
}

// Predict fills heap with the best k outputs for input, ranked by
// descending score.  Outputs whose probability is below threshold are left
// out.  k may be UnlimitedPredictions.
func (m *Model) Predict(input []int32, k int, threshold float32, heap *Predictions, st *State) error {
	if k == UnlimitedPredictions {
		k = m.wo.R
	} else if k <= 0 {
		return ErrInvalidK
	}
	k = min(k, m.wo.R)
	if len(input) == 0 {
		return ErrEmptyInput
	}
	*heap = (*heap)[:0]
	if cap(*heap) < k+1 {
		*heap = make(Predictions, 0, k+1)
	}
	m.ComputeHidden(input, st)
	m.loss.Predict(k, threshold, heap, st)
	return nil
}

// Update runs one SGD step for the example (input, targets[targetIndex]).
// The output matrix is updated by the loss; the gradient it leaves in
// st.Grad is then added to every input row of the bag.  It returns the
// example's loss.  An empty bag is a no-op returning 0.
func (m *Model) Update(input, targets []int32, targetIndex int, lr float32, st *State) float32 {
	if len(input) == 0 {
		return 0
	}
	m.ComputeHidden(input, st)

	grad := st.Grad
	tensor.Zero(grad)
	loss := m.loss.Forward(targets, targetIndex, st, lr, true)
	st.incrementNExamples(loss)

	if m.normalizeGradient {
		tensor.Scale(grad, 1/float32(len(input)))
	}
	for _, id := range input {
		m.wi.AddVectorToRow(grad, int(id), 1)
	}
	return loss
}

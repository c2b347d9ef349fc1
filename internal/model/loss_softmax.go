package model

import (
	"slices"

	"github.com/samcharles93/fastvec/internal/tensor"
)

// Softmax is the exact normalised output distribution.  Every step touches
// all output rows.
type Softmax struct {
	wo *tensor.Mat
}

func NewSoftmax(wo *tensor.Mat) *Softmax {
	return &Softmax{wo: wo}
}

func (l *Softmax) ComputeOutput(st *State) {
	tensor.Mul(st.Output, l.wo, st.Hidden)
	tensor.Softmax(st.Output)
}

func (l *Softmax) Forward(targets []int32, targetIndex int, st *State, lr float32, backprop bool) float32 {
	l.ComputeOutput(st)
	target := int(targets[targetIndex])
	if backprop {
		for i, p := range st.Output {
			var y float32
			if i == target {
				y = 1
			}
			alpha := lr * (y - p)
			tensor.AddRow(st.Grad, l.wo, i, alpha)
			l.wo.AddVectorToRow(st.Hidden, i, alpha)
		}
	}
	return -logf(st.Output[target])
}

func (l *Softmax) Predict(k int, threshold float32, heap *Predictions, st *State) {
	l.ComputeOutput(st)
	findKBest(k, threshold, heap, st.Output)
}

// OneVsAll trains an independent logistic unit per output row so an example
// may carry several positive labels.
type OneVsAll struct {
	binaryLogisticLoss
}

func NewOneVsAll(wo *tensor.Mat) *OneVsAll {
	return &OneVsAll{binaryLogisticLoss{wo: wo}}
}

// Forward ignores targetIndex: every row in targets is positive.
func (l *OneVsAll) Forward(targets []int32, _ int, st *State, lr float32, backprop bool) float32 {
	var loss float32
	for i := range l.wo.R {
		loss += l.binaryLogistic(int32(i), st, slices.Contains(targets, int32(i)), lr, backprop)
	}
	return loss
}

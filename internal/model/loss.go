package model

import (
	"fmt"

	"github.com/samcharles93/fastvec/internal/tensor"
)

// Loss scores targets against a worker's hidden vector.  Forward updates
// the output matrix in place and leaves the gradient w.r.t. the hidden
// vector in st.Grad; the caller owns scattering it into the input matrix.
type Loss interface {
	Forward(targets []int32, targetIndex int, st *State, lr float32, backprop bool) float32
	ComputeOutput(st *State)
	Predict(k int, threshold float32, heap *Predictions, st *State)
}

// Kind names a loss strategy.
type Kind string

const (
	KindNegativeSampling    Kind = "ns"
	KindHierarchicalSoftmax Kind = "hs"
	KindSoftmax             Kind = "softmax"
	KindOneVsAll            Kind = "ova"
)

// ParseKind validates a loss name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindNegativeSampling, KindHierarchicalSoftmax, KindSoftmax, KindOneVsAll:
		return k, nil
	}
	return "", fmt.Errorf("unknown loss %q (want ns, hs, softmax or ova)", s)
}

// NewLoss builds the strategy for kind over the output matrix wo.  counts
// holds one frequency per output row and is only read by ns and hs.
func NewLoss(kind Kind, wo *tensor.Mat, counts []int64, neg int, opts ...NegativeSamplingOption) (Loss, error) {
	switch kind {
	case KindNegativeSampling:
		if neg <= 0 {
			return nil, fmt.Errorf("negative sampling needs neg >= 1, got %d", neg)
		}
		if len(counts) != wo.R {
			return nil, fmt.Errorf("counts length %d does not match %d output rows", len(counts), wo.R)
		}
		return NewNegativeSampling(wo, neg, counts, opts...), nil
	case KindHierarchicalSoftmax:
		if len(counts) != wo.R {
			return nil, fmt.Errorf("counts length %d does not match %d output rows", len(counts), wo.R)
		}
		return NewHierarchicalSoftmax(wo, counts), nil
	case KindSoftmax:
		return NewSoftmax(wo), nil
	case KindOneVsAll:
		return NewOneVsAll(wo), nil
	}
	return nil, fmt.Errorf("unknown loss %q", kind)
}

// binaryLogisticLoss carries the shared step used by ns, hs and ova.
type binaryLogisticLoss struct {
	wo *tensor.Mat
}

// binaryLogistic scores target against the hidden vector as a single
// logistic unit.  With backprop the output row moves toward (or away from)
// the hidden vector before the input side sees any update.
func (l *binaryLogisticLoss) binaryLogistic(target int32, st *State, label bool, lr float32, backprop bool) float32 {
	score := sigmoid(l.wo.DotRow(st.Hidden, int(target)))
	if backprop {
		var y float32
		if label {
			y = 1
		}
		alpha := lr * (y - score)
		tensor.AddRow(st.Grad, l.wo, int(target), alpha)
		l.wo.AddVectorToRow(st.Hidden, int(target), alpha)
	}
	if label {
		return -logf(score)
	}
	return -logf(1 - score)
}

// ComputeOutput fills st.Output with an independent sigmoid per output row.
func (l *binaryLogisticLoss) ComputeOutput(st *State) {
	tensor.Mul(st.Output, l.wo, st.Hidden)
	for i, v := range st.Output {
		st.Output[i] = sigmoid(v)
	}
}

func (l *binaryLogisticLoss) Predict(k int, threshold float32, heap *Predictions, st *State) {
	l.ComputeOutput(st)
	findKBest(k, threshold, heap, st.Output)
}

// findKBest keeps the k highest probabilities at or above threshold.
func findKBest(k int, threshold float32, heap *Predictions, output []float32) {
	for i, p := range output {
		if p < threshold {
			continue
		}
		heap.Offer(k, stdLog(p), int32(i))
	}
	heap.Sort()
}

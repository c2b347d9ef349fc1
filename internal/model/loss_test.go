package model

import (
	"math"
	"slices"
	"testing"

	"github.com/samcharles93/fastvec/internal/tensor"
)

func TestSigmoidTable(t *testing.T) {
	t.Parallel()
	if got := sigmoid(0); math.Abs(float64(got)-0.5) > 1e-6 {
		t.Fatalf("sigmoid(0) = %g", got)
	}
	if got := sigmoid(-maxSigmoid - 0.001); got != 0 {
		t.Fatalf("sigmoid below bound = %g, want exactly 0", got)
	}
	if got := sigmoid(maxSigmoid + 0.001); got != 1 {
		t.Fatalf("sigmoid above bound = %g, want exactly 1", got)
	}
	if got := sigmoid(-1e9); got != 0 {
		t.Fatalf("sigmoid(-inf-ish) = %g", got)
	}
	if got := sigmoid(1e9); got != 1 {
		t.Fatalf("sigmoid(+inf-ish) = %g", got)
	}

	prev := float32(-1)
	for x := float32(-10); x <= 10; x += 0.0137 {
		s := sigmoid(x)
		if s < prev {
			t.Fatalf("sigmoid not monotone at %g: %g < %g", x, s, prev)
		}
		exact := 1 / (1 + math.Exp(-float64(x)))
		if math.Abs(exact-float64(s)) > 1e-3 {
			t.Fatalf("sigmoid(%g) = %g, exact %g", x, s, exact)
		}
		prev = s
	}
}

func TestLogTable(t *testing.T) {
	t.Parallel()
	if got := logf(1.5); got != 0 {
		t.Fatalf("logf above 1 = %g", got)
	}
	for _, x := range []float32{0.01, 0.1, 0.25, 0.5, 0.9, 1} {
		exact := math.Log(float64(x))
		if got := logf(x); math.Abs(exact-float64(got)) > 0.05 {
			t.Fatalf("logf(%g) = %g, exact %g", x, got, exact)
		}
	}
	if got := logf(0); math.IsInf(float64(got), 0) || math.IsNaN(float64(got)) {
		t.Fatalf("logf(0) must stay finite, got %g", got)
	}
}

func TestSoftmaxOutputIsDistribution(t *testing.T) {
	t.Parallel()
	for _, scale := range []float64{0.01, 1, 50, 1e4} {
		wo := tensor.NewMat(9, 3)
		tensor.FillUniform(&wo, scale, uint64(scale))
		l := NewSoftmax(&wo)
		st := NewState(3, 9, 0)
		copy(st.Hidden, []float32{1, -2, 3})
		l.ComputeOutput(st)

		var sum float64
		for _, p := range st.Output {
			if p < 0 || p > 1 || math.IsNaN(float64(p)) {
				t.Fatalf("scale %g: entry %g outside [0,1]", scale, p)
			}
			sum += float64(p)
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Fatalf("scale %g: sum %g", scale, sum)
		}
	}
}

func TestSoftmaxForwardGradient(t *testing.T) {
	t.Parallel()
	wo := tensor.NewMat(3, 2)
	tensor.FillUniform(&wo, 1, 3)
	orig := tensor.NewMatFromData(3, 2, slices.Clone(wo.Data))
	l := NewSoftmax(&wo)
	st := NewState(2, 3, 0)
	copy(st.Hidden, []float32{0.5, -0.25})

	l.ComputeOutput(st)
	probs := slices.Clone(st.Output)
	lr := float32(0.1)
	loss := l.Forward([]int32{1}, 0, st, lr, true)

	if want := -math.Log(float64(probs[1])); math.Abs(want-float64(loss)) > 0.02 {
		t.Fatalf("loss %g, want %g", loss, want)
	}
	for i := range 3 {
		var y float32
		if i == 1 {
			y = 1
		}
		alpha := lr * (y - probs[i])
		for j := range 2 {
			want := orig.Row(i)[j] + alpha*st.Hidden[j]
			if math.Abs(float64(want-wo.Row(i)[j])) > 1e-6 {
				t.Fatalf("row %d col %d: got %g want %g", i, j, wo.Row(i)[j], want)
			}
		}
	}
	var wantGrad [2]float32
	for i := range 3 {
		var y float32
		if i == 1 {
			y = 1
		}
		alpha := lr * (y - probs[i])
		for j := range 2 {
			wantGrad[j] += alpha * orig.Row(i)[j]
		}
	}
	for j := range 2 {
		if math.Abs(float64(wantGrad[j]-st.Grad[j])) > 1e-6 {
			t.Fatalf("grad[%d] = %g want %g", j, st.Grad[j], wantGrad[j])
		}
	}
}

func TestBinaryLogisticStep(t *testing.T) {
	t.Parallel()
	wo := tensor.NewMatFromData(2, 2, []float32{0.5, -0.5, 1, 1})
	l := binaryLogisticLoss{wo: &wo}
	st := NewState(2, 2, 0)
	copy(st.Hidden, []float32{1, 2})

	score := sigmoid(wo.DotRow(st.Hidden, 0))
	loss := l.binaryLogistic(0, st, true, 0.1, true)
	if want := -logf(score); loss != want {
		t.Fatalf("positive loss %g want %g", loss, want)
	}
	alpha := 0.1 * (1 - score)
	if math.Abs(float64(st.Grad[0]-alpha*0.5)) > 1e-7 || math.Abs(float64(st.Grad[1]+alpha*0.5)) > 1e-7 {
		t.Fatalf("grad %v, alpha %g", st.Grad, alpha)
	}
	if math.Abs(float64(wo.Row(0)[0]-(0.5+alpha))) > 1e-7 {
		t.Fatalf("output row not updated: %v", wo.Row(0))
	}

	before := slices.Clone(wo.Data)
	neg := l.binaryLogistic(1, st, false, 0.1, false)
	if !slices.Equal(before, wo.Data) {
		t.Fatal("backprop=false mutated the output matrix")
	}
	if want := -logf(1 - sigmoid(3)); neg != want {
		t.Fatalf("negative loss %g want %g", neg, want)
	}
}

func TestHierarchicalSoftmaxTree(t *testing.T) {
	t.Parallel()
	counts := []int64{5, 40, 1, 12, 3, 7}
	wo := tensor.NewMat(len(counts), 4)
	tensor.FillUniform(&wo, 0.7, 8)
	l := NewHierarchicalSoftmax(&wo, counts)

	if len(l.Path(1)) > len(l.Path(2)) {
		t.Fatalf("frequent id deeper than rare id: %v vs %v", l.Path(1), l.Path(2))
	}
	for id := range counts {
		path, code := l.Path(int32(id)), l.Code(int32(id))
		if len(path) == 0 || len(path) != len(code) {
			t.Fatalf("id %d: path %v code %v", id, path, code)
		}
		// The last hop always reaches the root, which uses the last internal row.
		if root := path[len(path)-1]; int(root) != len(counts)-2 {
			t.Fatalf("id %d: path ends at %d", id, root)
		}
	}

	st := NewState(4, len(counts), 0)
	copy(st.Hidden, []float32{0.3, -1.2, 0.8, 0.1})

	var total float64
	for id := range counts {
		p := 1.0
		for i, node := range l.Path(int32(id)) {
			f := 1 / (1 + math.Exp(-float64(wo.DotRow(st.Hidden, int(node)))))
			if l.Code(int32(id))[i] {
				p *= f
			} else {
				p *= 1 - f
			}
		}
		total += p
	}
	if math.Abs(total-1) > 1e-6 {
		t.Fatalf("leaf probabilities sum to %g", total)
	}
}

func TestHierarchicalSoftmaxLossIsPathSum(t *testing.T) {
	t.Parallel()
	counts := []int64{9, 8, 4, 2, 1}
	wo := tensor.NewMat(len(counts), 3)
	tensor.FillUniform(&wo, 0.9, 12)
	l := NewHierarchicalSoftmax(&wo, counts)
	st := NewState(3, len(counts), 0)
	copy(st.Hidden, []float32{0.4, 0.2, -0.6})

	for target := range counts {
		var want float32
		for i, node := range l.Path(int32(target)) {
			score := sigmoid(wo.DotRow(st.Hidden, int(node)))
			if l.Code(int32(target))[i] {
				want += -logf(score)
			} else {
				want += -logf(1 - score)
			}
		}
		got := l.Forward([]int32{int32(target)}, 0, st, 0.1, false)
		if math.Abs(float64(got-want)) > 1e-5 {
			t.Fatalf("target %d: loss %g want %g", target, got, want)
		}
	}
}

func TestHierarchicalSoftmaxSingleOutput(t *testing.T) {
	t.Parallel()
	wo := tensor.NewMat(1, 2)
	l := NewHierarchicalSoftmax(&wo, []int64{3})
	st := NewState(2, 1, 0)
	if loss := l.Forward([]int32{0}, 0, st, 0.1, true); loss != 0 {
		t.Fatalf("single leaf loss = %g", loss)
	}
	var heap Predictions
	l.Predict(1, 0, &heap, st)
	if len(heap) != 1 || heap[0].ID != 0 {
		t.Fatalf("single leaf predictions: %v", heap)
	}
}

func TestNegativeSamplingTable(t *testing.T) {
	t.Parallel()
	wo := tensor.NewMat(3, 2)
	l := NewNegativeSampling(&wo, 4, []int64{16, 1, 0}, WithNegativeTableSize(1000))

	hist := make([]int, 3)
	for _, id := range l.negatives {
		hist[id]++
	}
	if hist[2] != 0 {
		t.Fatalf("zero-count id sampled %d times", hist[2])
	}
	// 16^0.75 = 8, so id 0 should hold about eight times the slots of id 1.
	ratio := float64(hist[0]) / float64(hist[1])
	if ratio < 7.5 || ratio > 8.5 {
		t.Fatalf("table ratio %g (hist %v)", ratio, hist)
	}

	st := NewState(2, 3, 7)
	for range 100 {
		n, ok := l.negative(0, st.RNG)
		if !ok || n == 0 {
			t.Fatalf("negative returned target (n=%d ok=%v)", n, ok)
		}
	}
}

func TestNegativeSamplingOnlyTarget(t *testing.T) {
	t.Parallel()
	wo := tensor.NewMat(2, 2)
	l := NewNegativeSampling(&wo, 3, []int64{5, 0}, WithNegativeTableSize(10))
	st := NewState(2, 2, 0)
	st.Hidden[0] = 1
	// Only the target is in the table; Forward must terminate with just the positive step.
	want := l.binaryLogistic(0, st, true, 0, false)
	if got := l.Forward([]int32{0}, 0, st, 0, false); got != want {
		t.Fatalf("loss %g want %g", got, want)
	}
}

func TestOneVsAllMultiLabel(t *testing.T) {
	t.Parallel()
	wo := tensor.NewMat(4, 2)
	l := NewOneVsAll(&wo)
	st := NewState(2, 4, 0)
	copy(st.Hidden, []float32{1, 1})

	l.Forward([]int32{0, 2}, AllLabelsAsTarget, st, 0.5, true)
	for i := range 4 {
		d := wo.DotRow(st.Hidden, i)
		positive := i == 0 || i == 2
		if positive && d <= 0 || !positive && d >= 0 {
			t.Fatalf("row %d moved the wrong way: dot=%g", i, d)
		}
	}
}

func TestPredictionsOffer(t *testing.T) {
	t.Parallel()
	var p Predictions
	for i, s := range []float32{0.3, 0.9, 0.1, 0.7, 0.5} {
		p.Offer(3, s, int32(i))
	}
	p.Sort()
	got := []int32{p[0].ID, p[1].ID, p[2].ID}
	if !slices.Equal(got, []int32{1, 3, 4}) {
		t.Fatalf("top-3 ids %v", got)
	}
}

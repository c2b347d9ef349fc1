package model

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/samcharles93/fastvec/internal/tensor"
)

func newMats(nin, nout, dim int, seed uint64) (*tensor.Mat, *tensor.Mat) {
	wi := tensor.NewMat(nin, dim)
	tensor.FillUniform(&wi, 1, seed)
	wo := tensor.NewMat(nout, dim)
	return &wi, &wo
}

func smallNS(t *testing.T, wo *tensor.Mat) Loss {
	t.Helper()
	counts := make([]int64, wo.R)
	for i := range counts {
		counts[i] = int64(i + 1)
	}
	loss, err := NewLoss(KindNegativeSampling, wo, counts, 3, WithNegativeTableSize(1000))
	if err != nil {
		t.Fatalf("NewLoss: %v", err)
	}
	return loss
}

func TestComputeHiddenIsMean(t *testing.T) {
	t.Parallel()
	wi, wo := newMats(10, 4, 7, 1)
	m := New(wi, wo, NewSoftmax(wo), false)
	st := m.NewState(1)

	inputs := [][]int32{{3}, {0, 9}, {1, 1, 5}, {2, 4, 6, 8}}
	for _, input := range inputs {
		m.ComputeHidden(input, st)
		for j := range wi.C {
			var want float64
			for _, id := range input {
				want += float64(wi.Row(int(id))[j])
			}
			want /= float64(len(input))
			if math.Abs(want-float64(st.Hidden[j])) > 1e-6 {
				t.Fatalf("input %v col %d: want %g got %g", input, j, want, st.Hidden[j])
			}
		}
	}
}

func TestUpdateEmptyInputIsNoop(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{KindNegativeSampling, KindHierarchicalSoftmax, KindSoftmax, KindOneVsAll} {
		wi, wo := newMats(6, 6, 4, 2)
		tensor.FillUniform(wo, 0.5, 9)
		loss, err := NewLoss(kind, wo, []int64{6, 5, 4, 3, 2, 1}, 2, WithNegativeTableSize(100))
		if err != nil {
			t.Fatalf("%s: NewLoss: %v", kind, err)
		}
		m := New(wi, wo, loss, true)
		st := m.NewState(3)

		wiBefore := slices.Clone(wi.Data)
		woBefore := slices.Clone(wo.Data)
		if got := m.Update(nil, []int32{1}, 0, 0.1, st); got != 0 {
			t.Fatalf("%s: loss for empty input = %g", kind, got)
		}
		if !slices.Equal(wiBefore, wi.Data) || !slices.Equal(woBefore, wo.Data) {
			t.Fatalf("%s: matrices changed on empty input", kind)
		}
		if st.Examples() != 0 {
			t.Fatalf("%s: examples = %d", kind, st.Examples())
		}
		if !math.IsNaN(float64(st.Loss())) {
			t.Fatalf("%s: expected NaN mean loss before first update", kind)
		}
	}
}

func TestUpdateNegativeSamplingScenario(t *testing.T) {
	t.Parallel()
	const dim, vocab = 4, 6
	wi, wo := newMats(vocab, vocab, dim, 11)
	m := New(wi, wo, smallNS(t, wo), false)
	st := m.NewState(0)

	input := []int32{0, 2}
	m.ComputeHidden(input, st)
	hidden := slices.Clone(st.Hidden)
	for j := range dim {
		want := (wi.Row(0)[j] + wi.Row(2)[j]) / 2
		if math.Abs(float64(want-hidden[j])) > 1e-6 {
			t.Fatalf("hidden[%d]: want %g got %g", j, want, hidden[j])
		}
	}
	before := tensor.Dot(wo.Row(2), hidden)

	loss := m.Update(input, []int32{2}, 0, 0.05, st)

	after := tensor.Dot(wo.Row(2), hidden)
	if after <= before {
		t.Fatalf("target output row did not move toward hidden: before=%g after=%g", before, after)
	}
	if st.Examples() != 1 {
		t.Fatalf("examples: got %d want 1", st.Examples())
	}
	if st.Loss() != loss {
		t.Fatalf("mean loss %g != returned loss %g", st.Loss(), loss)
	}
	if loss <= 0 {
		t.Fatalf("expected positive loss, got %g", loss)
	}
}

func TestUpdateNormalizeGradient(t *testing.T) {
	t.Parallel()
	run := func(normalize bool) []float32 {
		wi, wo := newMats(4, 3, 5, 5)
		tensor.FillUniform(wo, 0.3, 6)
		m := New(wi, wo, NewSoftmax(wo), normalize)
		st := m.NewState(0)
		before := slices.Clone(wi.Row(1))
		m.Update([]int32{1, 3}, []int32{0}, 0, 0.1, st)
		delta := make([]float32, len(before))
		for j := range delta {
			delta[j] = wi.Row(1)[j] - before[j]
		}
		return delta
	}
	plain := run(false)
	halved := run(true)
	for j := range plain {
		if math.Abs(float64(plain[j]/2-halved[j])) > 1e-6 {
			t.Fatalf("col %d: normalized delta %g, want %g", j, halved[j], plain[j]/2)
		}
	}
}

func TestPredictInvalidK(t *testing.T) {
	t.Parallel()
	wi, wo := newMats(5, 3, 4, 1)
	m := New(wi, wo, NewSoftmax(wo), false)
	st := m.NewState(0)
	heap := Predictions{{Score: 1, ID: 7}}
	for _, k := range []int{0, -2, -100} {
		if err := m.Predict([]int32{1}, k, 0, &heap, st); !errors.Is(err, ErrInvalidK) {
			t.Fatalf("k=%d: got err %v", k, err)
		}
		if len(heap) != 1 || heap[0].ID != 7 {
			t.Fatalf("k=%d: heap mutated on invalid argument: %v", k, heap)
		}
	}
	if err := m.Predict(nil, 1, 0, &heap, st); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty input: got err %v", err)
	}
}

func TestPredictReturnsAllSorted(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{KindNegativeSampling, KindHierarchicalSoftmax, KindSoftmax, KindOneVsAll} {
		wi, wo := newMats(8, 5, 6, 21)
		tensor.FillUniform(wo, 0.1, 22)
		loss, err := NewLoss(kind, wo, []int64{50, 20, 10, 5, 1}, 2, WithNegativeTableSize(100))
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		m := New(wi, wo, loss, false)
		st := m.NewState(0)

		for _, k := range []int{UnlimitedPredictions, 5, 50, math.MaxInt} {
			var heap Predictions
			if err := m.Predict([]int32{0, 3, 7}, k, 0, &heap, st); err != nil {
				t.Fatalf("%s k=%d: %v", kind, k, err)
			}
			if len(heap) != wo.R {
				t.Fatalf("%s k=%d: got %d predictions want %d", kind, k, len(heap), wo.R)
			}
			seen := map[int32]bool{}
			for i, p := range heap {
				if i > 0 && heap[i-1].Score < p.Score {
					t.Fatalf("%s k=%d: not sorted descending: %v", kind, k, heap)
				}
				seen[p.ID] = true
			}
			if len(seen) != wo.R {
				t.Fatalf("%s k=%d: duplicate ids: %v", kind, k, heap)
			}
		}
	}
}

func TestPredictLargeKAllocatesOutputSize(t *testing.T) {
	t.Parallel()
	wi, wo := newMats(5, 3, 4, 1)
	m := New(wi, wo, NewSoftmax(wo), false)
	st := m.NewState(0)
	for _, k := range []int{1 << 20, 1 << 40, math.MaxInt} {
		var heap Predictions
		if err := m.Predict([]int32{1}, k, 0, &heap, st); err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if len(heap) != wo.R {
			t.Fatalf("k=%d: got %d predictions want %d", k, len(heap), wo.R)
		}
		if cap(heap) > wo.R+1 {
			t.Fatalf("k=%d: heap capacity %d, want at most %d", k, cap(heap), wo.R+1)
		}
	}
}

func TestPredictTopKAndThreshold(t *testing.T) {
	t.Parallel()
	wi, wo := newMats(4, 6, 3, 4)
	tensor.FillUniform(wo, 2, 5)
	m := New(wi, wo, NewSoftmax(wo), false)
	st := m.NewState(0)

	var all Predictions
	if err := m.Predict([]int32{1}, UnlimitedPredictions, 0, &all, st); err != nil {
		t.Fatal(err)
	}
	var top Predictions
	if err := m.Predict([]int32{1}, 2, 0, &top, st); err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0] != all[0] || top[1] != all[1] {
		t.Fatalf("top-2 %v does not match head of full ranking %v", top, all)
	}

	var none Predictions
	if err := m.Predict([]int32{1}, UnlimitedPredictions, 1.01, &none, st); err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("threshold above 1 kept %v", none)
	}
}

func TestPredictIdempotent(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{KindNegativeSampling, KindHierarchicalSoftmax, KindSoftmax} {
		wi, wo := newMats(7, 4, 5, 31)
		tensor.FillUniform(wo, 0.5, 32)
		loss, err := NewLoss(kind, wo, []int64{4, 3, 2, 1}, 1, WithNegativeTableSize(100))
		if err != nil {
			t.Fatal(err)
		}
		m := New(wi, wo, loss, false)
		st := m.NewState(0)

		var first, second Predictions
		if err := m.Predict([]int32{2, 5}, 3, 0, &first, st); err != nil {
			t.Fatal(err)
		}
		first = slices.Clone(first)
		// Predict on a different bag in between must not leak into the next call.
		var other Predictions
		if err := m.Predict([]int32{6}, 3, 0, &other, st); err != nil {
			t.Fatal(err)
		}
		if err := m.Predict([]int32{2, 5}, 3, 0, &second, st); err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(first, second) {
			t.Fatalf("%s: predictions differ: %v vs %v", kind, first, second)
		}
	}
}

func TestTrainingReducesLoss(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{KindNegativeSampling, KindHierarchicalSoftmax, KindSoftmax, KindOneVsAll} {
		wi, wo := newMats(6, 3, 8, 41)
		loss, err := NewLoss(kind, wo, []int64{3, 2, 1}, 2, WithNegativeTableSize(300))
		if err != nil {
			t.Fatal(err)
		}
		m := New(wi, wo, loss, true)
		st := m.NewState(1)

		input := []int32{0, 4}
		target := []int32{1}
		first := m.Update(input, target, 0, 0.2, st)
		var last float32
		for range 200 {
			last = m.Update(input, target, 0, 0.2, st)
		}
		if !(last < first) {
			t.Fatalf("%s: loss did not decrease: first=%g last=%g", kind, first, last)
		}

		var heap Predictions
		if err := m.Predict(input, 1, 0, &heap, st); err != nil {
			t.Fatal(err)
		}
		if heap[0].ID != 1 {
			t.Fatalf("%s: best prediction %v, want id 1", kind, heap)
		}
	}
}

func TestNewLossRejectsBadArguments(t *testing.T) {
	t.Parallel()
	_, wo := newMats(1, 3, 2, 1)
	if _, err := NewLoss(KindNegativeSampling, wo, []int64{1, 1, 1}, 0); err == nil {
		t.Fatal("expected error for neg=0")
	}
	if _, err := NewLoss(KindHierarchicalSoftmax, wo, []int64{1}, 0); err == nil {
		t.Fatal("expected error for short counts")
	}
	if _, err := NewLoss("bogus", wo, nil, 0); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := ParseKind("hs"); err != nil {
		t.Fatalf("ParseKind(hs): %v", err)
	}
	if _, err := ParseKind("HS"); err == nil {
		t.Fatal("ParseKind is expected to be case-sensitive")
	}
}

func BenchmarkUpdateNegativeSampling(b *testing.B) {
	wi := tensor.NewMat(10000, 100)
	tensor.FillUniform(&wi, 0.01, 1)
	wo := tensor.NewMat(10000, 100)
	counts := make([]int64, wo.R)
	for i := range counts {
		counts[i] = int64(wo.R - i)
	}
	m := New(&wi, &wo, NewNegativeSampling(&wo, 5, counts, WithNegativeTableSize(100000)), false)
	st := m.NewState(0)
	input := []int32{1, 20, 300, 4000}
	targets := []int32{42}

	for b.Loop() {
		m.Update(input, targets, 0, 0.05, st)
	}
}

package model

import (
	"container/heap"
	"slices"
)

// Prediction is a scored output id.  Score is a log probability.
type Prediction struct {
	Score float32
	ID    int32
}

// Predictions collects the k best predictions.  While filling it is a
// min-heap keyed on Score so the weakest entry sits at index 0; Sort turns
// it into a descending ranking.
type Predictions []Prediction

func (p Predictions) Len() int           { return len(p) }
func (p Predictions) Less(i, j int) bool { return p[i].Score < p[j].Score }
func (p Predictions) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

func (p *Predictions) Push(x any) { *p = append(*p, x.(Prediction)) }

func (p *Predictions) Pop() any {
	old := *p
	n := len(old)
	x := old[n-1]
	*p = old[:n-1]
	return x
}

// Full reports whether the heap already holds k entries.
func (p Predictions) Full(k int) bool { return len(p) >= k }

// Worst returns the lowest score currently kept.  The heap must be non-empty.
func (p Predictions) Worst() float32 { return p[0].Score }

// Offer inserts (score, id) if it ranks among the best k seen so far.
func (p *Predictions) Offer(k int, score float32, id int32) {
	if p.Full(k) && score < p.Worst() {
		return
	}
	heap.Push(p, Prediction{Score: score, ID: id})
	if p.Len() > k {
		heap.Pop(p)
	}
}

// Sort orders the predictions by descending score, breaking ties by id.
func (p Predictions) Sort() {
	slices.SortFunc(p, func(a, b Prediction) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return int(a.ID) - int(b.ID)
		}
	})
}

package model

import (
	"cmp"
	"math"
	"slices"

	"github.com/samcharles93/fastvec/internal/tensor"
)

type treeNode struct {
	parent int32
	left   int32
	right  int32
	count  int64
	binary bool
}

// HierarchicalSoftmax scores a target as the product of binary decisions
// along its path in a Huffman tree built from output frequencies.  Leaves
// are output ids 0..osz-1; internal node n uses output row n-osz.
type HierarchicalSoftmax struct {
	binaryLogisticLoss
	osz   int
	tree  []treeNode
	paths [][]int32
	codes [][]bool
}

// NewHierarchicalSoftmax builds the tree once.  counts need not be sorted.
func NewHierarchicalSoftmax(wo *tensor.Mat, counts []int64) *HierarchicalSoftmax {
	l := &HierarchicalSoftmax{
		binaryLogisticLoss: binaryLogisticLoss{wo: wo},
		osz:                len(counts),
	}
	l.buildTree(counts)
	return l
}

func (l *HierarchicalSoftmax) buildTree(counts []int64) {
	osz := l.osz
	if osz == 0 {
		return
	}
	l.tree = make([]treeNode, 2*osz-1)
	for i := range l.tree {
		l.tree[i] = treeNode{parent: -1, left: -1, right: -1, count: math.MaxInt64}
	}
	for i, c := range counts {
		l.tree[i].count = c
	}

	// Leaves are consumed from the least frequent end of a descending order.
	order := make([]int32, osz)
	for i := range order {
		order[i] = int32(i)
	}
	slices.SortStableFunc(order, func(a, b int32) int {
		return cmp.Compare(counts[b], counts[a])
	})

	leaf := osz - 1
	node := osz
	for i := osz; i < 2*osz-1; i++ {
		var mini [2]int32
		for j := range mini {
			if leaf >= 0 && l.tree[order[leaf]].count < l.tree[node].count {
				mini[j] = order[leaf]
				leaf--
			} else {
				mini[j] = int32(node)
				node++
			}
		}
		l.tree[i].left = mini[0]
		l.tree[i].right = mini[1]
		l.tree[i].count = l.tree[mini[0]].count + l.tree[mini[1]].count
		l.tree[mini[0]].parent = int32(i)
		l.tree[mini[1]].parent = int32(i)
		l.tree[mini[1]].binary = true
	}

	l.paths = make([][]int32, osz)
	l.codes = make([][]bool, osz)
	for i := range osz {
		var path []int32
		var code []bool
		for j := int32(i); l.tree[j].parent != -1; j = l.tree[j].parent {
			path = append(path, l.tree[j].parent-int32(osz))
			code = append(code, l.tree[j].binary)
		}
		l.paths[i] = path
		l.codes[i] = code
	}
}

// Path returns the internal output rows visited for target, leaf to root.
func (l *HierarchicalSoftmax) Path(target int32) []int32 { return l.paths[target] }

// Code returns the branch bits matching Path.
func (l *HierarchicalSoftmax) Code(target int32) []bool { return l.codes[target] }

func (l *HierarchicalSoftmax) Forward(targets []int32, targetIndex int, st *State, lr float32, backprop bool) float32 {
	target := targets[targetIndex]
	path := l.paths[target]
	code := l.codes[target]
	var loss float32
	for i, node := range path {
		loss += l.binaryLogistic(node, st, code[i], lr, backprop)
	}
	return loss
}

func (l *HierarchicalSoftmax) Predict(k int, threshold float32, heap *Predictions, st *State) {
	if l.osz == 0 {
		return
	}
	l.dfs(k, threshold, int32(2*l.osz-2), 0, heap, st.Hidden)
	heap.Sort()
}

func (l *HierarchicalSoftmax) dfs(k int, threshold float32, node int32, score float32, heap *Predictions, hidden []float32) {
	if score < stdLog(threshold) {
		return
	}
	if heap.Full(k) && score < heap.Worst() {
		return
	}
	n := l.tree[node]
	if n.left == -1 && n.right == -1 {
		heap.Offer(k, score, node)
		return
	}
	f := l.wo.DotRow(hidden, int(node)-l.osz)
	f = float32(1 / (1 + math.Exp(-float64(f))))
	l.dfs(k, threshold, n.left, score+stdLog(1-f), heap, hidden)
	l.dfs(k, threshold, n.right, score+stdLog(f), heap, hidden)
}

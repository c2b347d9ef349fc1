package tensor

import (
	"runtime"
	"sync"
)

type matVecTask struct {
	dst    []float32
	w      *Mat
	x      []float32
	rs, re int
	done   chan struct{}
}

type matVecPool struct {
	size      int
	tasks     chan matVecTask
	doneSlots chan chan struct{}
}

var matVecWorkPool *matVecPool

var matVecPoolOnce sync.Once

func getMatVecPool() *matVecPool {
	matVecPoolOnce.Do(func() {
		matVecWorkPool = newMatVecPool()
	})
	return matVecWorkPool
}

func newMatVecPool() *matVecPool {
	size := max(runtime.GOMAXPROCS(0), 1)
	p := &matVecPool{
		size:      size,
		tasks:     make(chan matVecTask, size*2),
		doneSlots: make(chan chan struct{}, size),
	}
	// A call never splits into more than size tasks, so workers can always
	// deliver without waiting for the caller to start receiving.
	for range size {
		p.doneSlots <- make(chan struct{}, size)
	}
	for range size {
		go func() {
			for task := range p.tasks {
				matVecRange(task.dst, task.w, task.x, task.rs, task.re)
				task.done <- struct{}{}
			}
		}()
	}
	return p
}

// minRowsPerTask keeps small products on the caller; dispatch costs more
// than the dot products for tiny label sets.
const minRowsPerTask = 256

// MatVec computes dst = w * x where w is a matrix and x is a vector.
// Rows are split across a process-wide worker pool.  It is meant for
// inference over large matrices (nearest neighbour scans); training workers
// use Mul.
func MatVec(dst []float32, w *Mat, x []float32) {
	if len(dst) < w.R || len(x) != w.C {
		panic("matvec shape mismatch")
	}
	if w.R == 0 {
		return
	}

	pool := getMatVecPool()
	workers := min(pool.size, (w.R+minRowsPerTask-1)/minRowsPerTask)
	if workers <= 1 {
		matVecRange(dst, w, x, 0, w.R)
		return
	}

	chunk := (w.R + workers - 1) / workers
	done := <-pool.doneSlots

	active := 0
	for i := range workers {
		rs := i * chunk
		re := min(rs+chunk, w.R)
		if rs >= re {
			break
		}
		active++
		pool.tasks <- matVecTask{
			dst:  dst,
			w:    w,
			x:    x,
			rs:   rs,
			re:   re,
			done: done,
		}
	}

	for range active {
		<-done
	}
	pool.doneSlots <- done
}

func matVecRange(dst []float32, w *Mat, x []float32, rs, re int) {
	for i := rs; i < re; i++ {
		dst[i] = w.DotRow(x, i)
	}
}

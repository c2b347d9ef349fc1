package tensor

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func vec(x []float32) blas32.Vector {
	return blas32.Vector{N: len(x), Data: x, Inc: 1}
}

// Zero sets every element of x to zero.
func Zero(x []float32) {
	clear(x)
}

// Scale multiplies x by a in place.
func Scale(x []float32, a float32) {
	if len(x) == 0 {
		return
	}
	blas32.Scal(a, vec(x))
}

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	AddScaled(dst, src, 1)
}

// AddScaled performs dst += a*src.
func AddScaled(dst, src []float32, a float32) {
	if len(dst) != len(src) {
		panic("add shape mismatch")
	}
	if len(dst) == 0 {
		return
	}
	blas32.Axpy(a, vec(src), vec(dst))
}

// AddRow performs dst += a*m[i].
func AddRow(dst []float32, m *Mat, i int, a float32) {
	AddScaled(dst, m.Row(i), a)
}

// Dot computes the dot product of a and b.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic("dot shape mismatch")
	}
	if len(a) == 0 {
		return 0
	}
	return blas32.Dot(vec(a), vec(b))
}

// Norm returns the euclidean norm of x.
func Norm(x []float32) float32 {
	if len(x) == 0 {
		return 0
	}
	return blas32.Nrm2(vec(x))
}

// Mul computes dst = m * x on the calling goroutine.  Training workers use
// this path; each already owns a core.
func Mul(dst []float32, m *Mat, x []float32) {
	if len(dst) != m.R || len(x) != m.C {
		panic("mul shape mismatch")
	}
	if m.R == 0 {
		return
	}
	if m.C == 0 {
		Zero(dst)
		return
	}
	blas32.Gemv(blas.NoTrans, 1, m.general(), vec(x), 0, vec(dst))
}

// Softmax applies the softmax function to x, subtracting the maximum before
// exponentiation so large scores cannot overflow.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxv {
			maxv = x[i]
		}
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	inv := float32(1.0 / sum)
	for i := range x {
		x[i] *= inv
	}
}

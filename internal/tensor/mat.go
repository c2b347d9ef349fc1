package tensor

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mat represents a dense row‑major matrix of float32 values.
//
// R and C represent the number of rows and columns respectively.  Stride is the
// number of elements between the starts of two consecutive rows (for row‑major
// matrices this is equal to C).  Data holds the flattened matrix values.
//
// Mat carries no synchronisation. Embedding matrices are shared by pointer
// between training workers and written concurrently without locks; readers
// may observe partially applied updates.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMat allocates a new matrix with the given number of rows and columns.
// The underlying slice is zero initialised.  The stride is set to the
// number of columns.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float32, r*c),
	}
}

// NewMatFromData creates a matrix from existing data.
// It checks that the data length matches r*c.
func NewMatFromData(r, c int, data []float32) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	if r*c != len(data) {
		panic("data length mismatch")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   data,
	}
}

// Row returns a view of the i‑th row of the matrix as a slice.  The slice
// has length equal to the number of columns.  Modifications to the returned
// slice update the underlying matrix values.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// DotRow returns the dot product of x with the i-th row.
func (m *Mat) DotRow(x []float32, i int) float32 {
	row := m.Row(i)
	if len(x) != m.C {
		panic("dot row shape mismatch")
	}
	return blas32.Dot(vec(x), vec(row))
}

// AddVectorToRow performs row[i] += a*x in place.
func (m *Mat) AddVectorToRow(x []float32, i int, a float32) {
	row := m.Row(i)
	if len(x) != m.C {
		panic("add vector shape mismatch")
	}
	blas32.Axpy(a, vec(x), vec(row))
}

// general exposes the matrix to gonum's BLAS routines without copying.
func (m *Mat) general() blas32.General {
	return blas32.General{
		Rows:   m.R,
		Cols:   m.C,
		Stride: m.Stride,
		Data:   m.Data,
	}
}

// FillUniform fills the matrix with values drawn uniformly from
// [-bound, bound).  Multiple calls with the same seed produce identical
// matrices.
func FillUniform(m *Mat, bound float64, seed uint64) {
	dist := distuv.Uniform{
		Min: -bound,
		Max: bound,
		Src: rand.NewPCG(seed, 0x9e3779b97f4a7c15),
	}
	for r := 0; r < m.R; r++ {
		row := m.Row(r)
		for j := range row {
			row[j] = float32(dist.Rand())
		}
	}
}

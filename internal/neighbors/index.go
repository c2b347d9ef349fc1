// Package neighbors answers cosine-similarity queries over trained input
// vectors.
package neighbors

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/fastvec/internal/model"
	"github.com/samcharles93/fastvec/internal/tensor"
)

var (
	ErrUnknownID = errors.New("neighbors: id out of range")
	ErrZeroQuery = errors.New("neighbors: query vector has zero norm")
	ErrDimension = errors.New("neighbors: query dimension mismatch")
)

// Neighbor is one result of a similarity query.
type Neighbor struct {
	ID         int32   `json:"id"`
	Similarity float32 `json:"similarity"`
}

// Index holds unit-length copies of the input rows.  Rows with zero norm
// stay zero and never rank above a real match.
type Index struct {
	norm tensor.Mat
}

// NewIndex normalises every row of wi into a private matrix.  wi is not
// modified and may keep changing afterwards.
func NewIndex(wi *tensor.Mat) *Index {
	norm := tensor.NewMat(wi.R, wi.C)
	for i := range wi.R {
		dst := norm.Row(i)
		copy(dst, wi.Row(i))
		if n := tensor.Norm(dst); n > 0 {
			tensor.Scale(dst, 1/n)
		}
	}
	return &Index{norm: norm}
}

// Len is the number of indexed vectors.
func (x *Index) Len() int { return x.norm.R }

// Dim is the vector width.
func (x *Index) Dim() int { return x.norm.C }

// Vector returns the unit vector of id.  The slice aliases the index.
func (x *Index) Vector(id int32) ([]float32, error) {
	if id < 0 || int(id) >= x.norm.R {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrUnknownID, id, x.norm.R)
	}
	return x.norm.Row(int(id)), nil
}

// Search returns the k rows most similar to query, best first, skipping
// every id in ban.  query need not be normalised.
func (x *Index) Search(query []float32, k int, ban []int32) ([]Neighbor, error) {
	if k <= 0 {
		return nil, model.ErrInvalidK
	}
	k = min(k, x.norm.R)
	if len(query) != x.norm.C {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimension, len(query), x.norm.C)
	}
	qn := tensor.Norm(query)
	if qn == 0 {
		return nil, ErrZeroQuery
	}

	scores := make([]float32, x.norm.R)
	tensor.MatVec(scores, &x.norm, query)

	heap := make(model.Predictions, 0, k+1)
	for i, s := range scores {
		if slices.Contains(ban, int32(i)) {
			continue
		}
		heap.Offer(k, s/qn, int32(i))
	}
	heap.Sort()

	out := make([]Neighbor, len(heap))
	for i, p := range heap {
		out[i] = Neighbor{ID: p.ID, Similarity: p.Score}
	}
	return out, nil
}

// Nearest returns the k nearest neighbours of id, excluding id itself.
func (x *Index) Nearest(id int32, k int) ([]Neighbor, error) {
	v, err := x.Vector(id)
	if err != nil {
		return nil, err
	}
	return x.Search(v, k, []int32{id})
}

// Analogies answers "a is to b as c is to ?" by searching around
// a - b + c.  The three query ids are excluded from the answer.
func (x *Index) Analogies(a, b, c int32, k int) ([]Neighbor, error) {
	query := make([]float32, x.norm.C)
	for _, term := range []struct {
		id    int32
		scale float32
	}{{a, 1}, {b, -1}, {c, 1}} {
		v, err := x.Vector(term.id)
		if err != nil {
			return nil, err
		}
		tensor.AddScaled(query, v, term.scale)
	}
	return x.Search(query, k, []int32{a, b, c})
}

package container

import (
	"bytes"
	"slices"
)

// Index selects rows along the first dimension of an array. A nil Index
// selects the whole array.
type Index interface {
	rows() []int
}

type atIndex int

func (i atIndex) rows() []int { return []int{int(i)} }

type rowsIndex []int

func (r rowsIndex) rows() []int { return r }

// At selects row i; the selected array has one dimension less.
func At(i int) Index {
	return atIndex(i)
}

// Rows selects the given rows in order; the selected array keeps its rank
// and has len(rows) as first dimension.
func Rows(rows ...int) Index {
	return rowsIndex(slices.Clone(rows))
}

// Clone returns a deep copy of a.
func (a *Array) Clone() *Array {
	return &Array{dtype: a.dtype, shape: slices.Clone(a.shape), data: bytes.Clone(a.data)}
}

func selectRows(a *Array, idx Index) (*Array, error) {
	switch v := idx.(type) {
	case nil:
		return a.Clone(), nil
	case atIndex:
		return a.Row(int(v))
	case rowsIndex:
		return a.Take(v)
	default:
		return a.Take(idx.rows())
	}
}

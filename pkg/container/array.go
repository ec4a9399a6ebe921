package container

import (
	"bytes"
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Array is an n-dimensional, row-major array of one [DType].
//
// A 0-dimensional array holds exactly one element. Arrays returned by a
// [Reader] own their memory and stay valid after the reader is closed.
type Array struct {
	dtype DType
	shape []int
	data  []byte
}

// NewArray builds an array of the given shape from values. The element type
// is derived from T; only uint8, int32, int64, float32 and float64 are
// supported. Arrays have at most 32 dimensions.
func NewArray[T Number](shape []int, values []T) (*Array, error) {
	dtype := dtypeOf[T]()
	if !dtype.Valid() {
		return nil, errors.Wrapf(ErrInvalidInput, "unsupported element type %T", *new(T))
	}

	if len(shape) > maxNdim {
		return nil, errors.Wrapf(ErrInvalidInput, "rank %d exceeds %d", len(shape), maxNdim)
	}

	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}

	if count != len(values) {
		return nil, errors.Wrapf(ErrInvalidInput, "shape %v needs %d values, got %d", shape, count, len(values))
	}

	data := make([]byte, count*dtype.Size())
	for i, v := range values {
		putElement(dtype, data, i, v)
	}

	return &Array{dtype: dtype, shape: slices.Clone(shape), data: data}, nil
}

// Vector builds a 1-D array from values.
func Vector[T Number](values ...T) (*Array, error) {
	return NewArray([]int{len(values)}, values)
}

// TextArray encodes strings as a 2-D [Uint8] array of character codes, one
// row per string, zero-padded to the longest string.
func TextArray(strs []string) *Array {
	width := 1
	for _, s := range strs {
		width = max(width, len(s))
	}

	data := make([]byte, len(strs)*width)
	for i, s := range strs {
		copy(data[i*width:], s)
	}

	return &Array{dtype: Uint8, shape: []int{len(strs), width}, data: data}
}

func newArrayView(dtype DType, shape []int, data []byte) *Array {
	return &Array{dtype: dtype, shape: shape, data: data}
}

func elementCount(shape []int) (int, error) {
	count := uint64(1)

	for _, dim := range shape {
		if dim < 0 {
			return 0, errors.Wrapf(ErrInvalidInput, "negative dimension in shape %v", shape)
		}

		hi, lo := bits.Mul64(count, uint64(dim))
		if hi != 0 || lo > uint64(maxInt) {
			return 0, errors.Wrapf(ErrInvalidInput, "shape %v overflows", shape)
		}

		count = lo
	}

	return int(count), nil
}

// DType returns the element type.
func (a *Array) DType() DType {
	return a.dtype
}

// Shape returns a copy of the array's shape. 0-D arrays have an empty shape.
func (a *Array) Shape() []int {
	return slices.Clone(a.shape)
}

// Ndim returns the number of dimensions.
func (a *Array) Ndim() int {
	return len(a.shape)
}

// Len returns the length of the first dimension, or 1 for a 0-D array.
func (a *Array) Len() int {
	if len(a.shape) == 0 {
		return 1
	}

	return a.shape[0]
}

// NumElements returns the total number of elements.
func (a *Array) NumElements() int {
	return len(a.data) / a.dtype.Size()
}

// Bytes returns the raw little-endian element data. The slice must not be
// modified.
func (a *Array) Bytes() []byte {
	return a.data
}

// Equal reports whether both arrays have the same type, shape and data.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.dtype == b.dtype && slices.Equal(a.shape, b.shape) && bytes.Equal(a.data, b.data)
}

// Row returns a copy of row i along the first dimension. The result has one
// dimension less. Negative indexes count from the end.
func (a *Array) Row(i int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, errors.Wrap(ErrOutOfRange, "cannot index a 0-d array")
	}

	row, err := a.normalize(i)
	if err != nil {
		return nil, err
	}

	size := a.rowBytes()
	data := bytes.Clone(a.data[row*size : (row+1)*size])

	return &Array{dtype: a.dtype, shape: slices.Clone(a.shape[1:]), data: data}, nil
}

// Take returns a copy of the given rows, in the given order, stacked along
// the first dimension. Negative indexes count from the end.
func (a *Array) Take(rows []int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, errors.Wrap(ErrOutOfRange, "cannot index a 0-d array")
	}

	size := a.rowBytes()
	data := make([]byte, 0, len(rows)*size)

	for _, i := range rows {
		row, err := a.normalize(i)
		if err != nil {
			return nil, err
		}

		data = append(data, a.data[row*size:(row+1)*size]...)
	}

	shape := append([]int{len(rows)}, a.shape[1:]...)

	return &Array{dtype: a.dtype, shape: shape, data: data}, nil
}

// Int64 returns the element at the given position as int64. The number of
// indexes must equal [Array.Ndim]; a 0-D array takes none.
func (a *Array) Int64(idx ...int) (int64, error) {
	flat, err := a.flatIndex(idx)
	if err != nil {
		return 0, err
	}

	return a.dtype.int64At(a.data, flat), nil
}

// Float64 returns the element at the given position as float64.
func (a *Array) Float64(idx ...int) (float64, error) {
	flat, err := a.flatIndex(idx)
	if err != nil {
		return 0, err
	}

	return a.dtype.float64At(a.data, flat), nil
}

// Values decodes all elements of a in row-major order, converting them to T.
func Values[T Number](a *Array) []T {
	count := a.NumElements()
	out := make([]T, count)

	for i := range count {
		if a.dtype.IsInteger() {
			out[i] = T(a.dtype.int64At(a.data, i))
		} else {
			out[i] = T(a.dtype.float64At(a.data, i))
		}
	}

	return out
}

// Text decodes a 1-D [Uint8] array of character codes into a string,
// dropping trailing zero padding.
func (a *Array) Text() (string, error) {
	if a.dtype != Uint8 || len(a.shape) != 1 {
		return "", errors.Wrapf(ErrTypeMismatch, "text needs a 1-d uint8 array, got %s%v", a.dtype, a.shape)
	}

	return string(bytes.TrimRight(a.data, "\x00")), nil
}

// Strings decodes a 2-D [Uint8] array of character codes into one string
// per row. See [Array.Text].
func (a *Array) Strings() ([]string, error) {
	if a.dtype != Uint8 || len(a.shape) != 2 {
		return nil, errors.Wrapf(ErrTypeMismatch, "strings need a 2-d uint8 array, got %s%v", a.dtype, a.shape)
	}

	width := a.shape[1]
	out := make([]string, a.shape[0])

	for i := range out {
		out[i] = string(bytes.TrimRight(a.data[i*width:(i+1)*width], "\x00"))
	}

	return out, nil
}

// String formats the array like a nested list, e.g. [[1 2] [3 4]].
func (a *Array) String() string {
	var b strings.Builder

	a.format(&b, 0, 0)

	return b.String()
}

func (a *Array) format(b *strings.Builder, dim, offset int) {
	if dim == len(a.shape) {
		if a.dtype.IsInteger() {
			fmt.Fprintf(b, "%d", a.dtype.int64At(a.data, offset))
		} else {
			fmt.Fprintf(b, "%g", a.dtype.float64At(a.data, offset))
		}

		return
	}

	stride := 1
	for _, d := range a.shape[dim+1:] {
		stride *= d
	}

	b.WriteByte('[')

	for i := range a.shape[dim] {
		if i > 0 {
			b.WriteByte(' ')
		}

		a.format(b, dim+1, offset+i*stride)
	}

	b.WriteByte(']')
}

func (a *Array) rowBytes() int {
	size := a.dtype.Size()
	for _, d := range a.shape[1:] {
		size *= d
	}

	return size
}

func (a *Array) normalize(i int) (int, error) {
	n := a.shape[0]

	row := i
	if row < 0 {
		row += n
	}

	if row < 0 || row >= n {
		return 0, errors.Wrapf(ErrOutOfRange, "index %d for length %d", i, n)
	}

	return row, nil
}

func (a *Array) flatIndex(idx []int) (int, error) {
	if len(idx) != len(a.shape) {
		return 0, errors.Wrapf(ErrOutOfRange, "got %d indexes for %d-d array", len(idx), len(a.shape))
	}

	flat := 0

	for dim, i := range idx {
		n := a.shape[dim]
		if i < 0 {
			i += n
		}

		if i < 0 || i >= n {
			return 0, errors.Wrapf(ErrOutOfRange, "index %d for dimension %d of length %d", idx[dim], dim, n)
		}

		flat = flat*n + i
	}

	return flat, nil
}

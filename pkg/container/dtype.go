package container

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// DType is the element type of an [Array].
type DType uint8

// Supported element types. The zero value is invalid.
const (
	Uint8 DType = iota + 1
	Int32
	Int64
	Float32
	Float64
)

// Number is the set of Go types an [Array] can be built from or decoded into.
type Number interface {
	constraints.Integer | constraints.Float
}

var le = binary.LittleEndian

// Size returns the element size in bytes, or 0 for an invalid type.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d is a supported type.
func (d DType) Valid() bool {
	return d.Size() != 0
}

// IsInteger reports whether d holds integers.
func (d DType) IsInteger() bool {
	return d == Uint8 || d == Int32 || d == Int64
}

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// dtypeOf maps a Go element type to its DType. Types without a storage
// representation return 0.
func dtypeOf[T Number]() DType {
	var zero T

	switch any(zero).(type) {
	case uint8:
		return Uint8
	case int32:
		return Int32
	case int64:
		return Int64
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		return 0
	}
}

func (d DType) int64At(buf []byte, i int) int64 {
	switch d {
	case Uint8:
		return int64(buf[i])
	case Int32:
		return int64(int32(le.Uint32(buf[i*4:])))
	case Int64:
		return int64(le.Uint64(buf[i*8:]))
	case Float32:
		return int64(math.Float32frombits(le.Uint32(buf[i*4:])))
	case Float64:
		return int64(math.Float64frombits(le.Uint64(buf[i*8:])))
	default:
		panic("container: invalid dtype")
	}
}

func (d DType) float64At(buf []byte, i int) float64 {
	switch d {
	case Uint8:
		return float64(buf[i])
	case Int32:
		return float64(int32(le.Uint32(buf[i*4:])))
	case Int64:
		return float64(int64(le.Uint64(buf[i*8:])))
	case Float32:
		return float64(math.Float32frombits(le.Uint32(buf[i*4:])))
	case Float64:
		return math.Float64frombits(le.Uint64(buf[i*8:]))
	default:
		panic("container: invalid dtype")
	}
}

func putElement[T Number](d DType, buf []byte, i int, v T) {
	switch d {
	case Uint8:
		buf[i] = uint8(v)
	case Int32:
		le.PutUint32(buf[i*4:], uint32(int32(v)))
	case Int64:
		le.PutUint64(buf[i*8:], uint64(int64(v)))
	case Float32:
		le.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	case Float64:
		le.PutUint64(buf[i*8:], math.Float64bits(float64(v)))
	default:
		panic("container: invalid dtype")
	}
}

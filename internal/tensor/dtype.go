// Package tensor provides the dense tensor container consumed by the blitz kernels.
package tensor

import "fmt"

// Scalar is the constraint for element types a Tensor can hold.
type Scalar interface {
	float32 | float64 | int | int32 | int64
}

// Float is the constraint for element types the numeric kernels operate on.
type Float interface {
	float32 | float64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int
	Int32
	Int64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64, Int:
		return 8
	default:
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int:
		return "int"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// DataTypeOf returns the DataType matching the type parameter T.
func DataTypeOf[T Scalar]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int:
		return Int
	case int32:
		return Int32
	default:
		return Int64
	}
}

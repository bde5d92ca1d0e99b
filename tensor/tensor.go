// Copyright 2026 Blitz Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/jackzcai/blitz/internal/tensor"
)

// Scalar is the constraint for element types a Tensor can hold.
type Scalar = tensor.Scalar

// Float is the constraint for element types the numeric kernels accept.
type Float = tensor.Float

// DataType represents the runtime element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int     DataType = tensor.Int
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
)

// Shape represents the dimensions of a tensor in storage order.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Layout tags how a rank-4 image tensor orders its dimensions.
type Layout = tensor.Layout

// Layout constants.
const (
	ChannelMajor Layout = tensor.ChannelMajor // N, C, H, W
	SpatialMajor Layout = tensor.SpatialMajor // N, H, W, C
)

// Tensor is a dense, owned, row-major tensor of scalars of type T.
//
// Example:
//
//	x := tensor.Zeros[float64](tensor.Shape{2, 3}, tensor.ChannelMajor)
//	x.Fill(1)
type Tensor[T Scalar] = tensor.Tensor[T]

// ErrRank is returned when an operation needs a tensor of a different rank.
var ErrRank = tensor.ErrRank

// New allocates a zero-filled tensor.
func New[T Scalar](shape Shape, layout Layout) (*Tensor[T], error) {
	return tensor.New[T](shape, layout)
}

// FromSlice wraps data, without copying, in a tensor of the given shape.
func FromSlice[T Scalar](data []T, shape Shape, layout Layout) (*Tensor[T], error) {
	return tensor.FromSlice(data, shape, layout)
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice[T Scalar](data []T, shape Shape, layout Layout) *Tensor[T] {
	return tensor.MustFromSlice(data, shape, layout)
}

// Zeros creates a tensor filled with zeros. It panics on an invalid shape.
func Zeros[T Scalar](shape Shape, layout Layout) *Tensor[T] {
	return tensor.Zeros[T](shape, layout)
}

// Full creates a tensor filled with value.
func Full[T Scalar](shape Shape, value T, layout Layout) *Tensor[T] {
	return tensor.Full(shape, value, layout)
}

// Arange creates a tensor holding 0, 1, 2, ... in storage order.
func Arange[T Scalar](shape Shape, layout Layout) *Tensor[T] {
	return tensor.Arange[T](shape, layout)
}

// ParseLayout maps "nchw"/"channel-major" and "nhwc"/"spatial-major" to a Layout.
func ParseLayout(s string) (Layout, error) {
	return tensor.ParseLayout(s)
}

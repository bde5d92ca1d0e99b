package tensor

import (
	"errors"
	"fmt"
)

// ErrRank is returned when an operation needs a tensor of a different rank.
var ErrRank = errors.New("tensor: unexpected rank")

// Tensor is an owned, contiguous, row-major buffer of scalars with a shape and
// a layout tag.
//
// The shape is stored in physical order. For rank-4 image tensors the layout
// tag says how to read it: (N, C, H, W) for ChannelMajor, (N, H, W, C) for
// SpatialMajor. Use Dims to get the logical sizes regardless of layout.
type Tensor[T Scalar] struct {
	data   []T
	shape  Shape
	stride []int
	layout Layout
}

// New allocates a zero-filled tensor.
func New[T Scalar](shape Shape, layout Layout) (*Tensor[T], error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if !layout.Valid() {
		return nil, fmt.Errorf("invalid layout %s", layout)
	}
	return &Tensor[T]{
		data:   make([]T, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		layout: layout,
	}, nil
}

// FromSlice wraps data (without copying) in a tensor of the given shape.
func FromSlice[T Scalar](data []T, shape Shape, layout Layout) (*Tensor[T], error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if !layout.Valid() {
		return nil, fmt.Errorf("invalid layout %s", layout)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d != shape %v elements %d", len(data), shape, shape.NumElements())
	}
	return &Tensor[T]{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		layout: layout,
	}, nil
}

// Data returns the underlying storage.
func (t *Tensor[T]) Data() []T {
	return t.data
}

// Shape returns a copy of the physical shape.
func (t *Tensor[T]) Shape() Shape {
	return t.shape.Clone()
}

// Strides returns a copy of the row-major strides of the physical shape.
func (t *Tensor[T]) Strides() []int {
	return append([]int(nil), t.stride...)
}

// Layout returns the layout tag.
func (t *Tensor[T]) Layout() Layout {
	return t.layout
}

// DType returns the runtime data type.
func (t *Tensor[T]) DType() DataType {
	return DataTypeOf[T]()
}

// Rank returns the number of dimensions.
func (t *Tensor[T]) Rank() int {
	return len(t.shape)
}

// NumElements returns the total number of elements.
func (t *Tensor[T]) NumElements() int {
	return len(t.data)
}

// Dims returns the logical (N, C, H, W) of a rank-4 image tensor.
func (t *Tensor[T]) Dims() (n, c, h, w int, err error) {
	if len(t.shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%w: want 4, got %d (shape %v)", ErrRank, len(t.shape), t.shape)
	}
	if t.layout == SpatialMajor {
		return t.shape[0], t.shape[3], t.shape[1], t.shape[2], nil
	}
	return t.shape[0], t.shape[1], t.shape[2], t.shape[3], nil
}

// FilterDims returns the logical (K, C, R, S) of a rank-4 filter bank,
// reading (K, R, S, C) when the tag is SpatialMajor.
func (t *Tensor[T]) FilterDims() (k, c, r, s int, err error) {
	if len(t.shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%w: want 4, got %d (shape %v)", ErrRank, len(t.shape), t.shape)
	}
	if t.layout == SpatialMajor {
		return t.shape[0], t.shape[3], t.shape[1], t.shape[2], nil
	}
	return t.shape[0], t.shape[1], t.shape[2], t.shape[3], nil
}

// BatchSize returns the outermost dimension (1 for scalars).
func (t *Tensor[T]) BatchSize() int {
	if len(t.shape) == 0 {
		return 1
	}
	return t.shape[0]
}

// SampleSize returns the number of elements per outermost index.
func (t *Tensor[T]) SampleSize() int {
	return len(t.data) / t.BatchSize()
}

// Sample returns the storage of the n-th outermost index.
func (t *Tensor[T]) Sample(n int) []T {
	size := t.SampleSize()
	return t.data[n*size : (n+1)*size]
}

// At returns the element at the given physical multi-index.
func (t *Tensor[T]) At(index ...int) (T, error) {
	off, err := t.shape.Offset(index...)
	if err != nil {
		var zero T
		return zero, err
	}
	return t.data[off], nil
}

// Set stores v at the given physical multi-index.
func (t *Tensor[T]) Set(v T, index ...int) error {
	off, err := t.shape.Offset(index...)
	if err != nil {
		return err
	}
	t.data[off] = v
	return nil
}

// Zero sets every element to zero.
func (t *Tensor[T]) Zero() {
	clear(t.data)
}

// Fill sets every element to v.
func (t *Tensor[T]) Fill(v T) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Clone returns a deep copy.
func (t *Tensor[T]) Clone() *Tensor[T] {
	return &Tensor[T]{
		data:   append([]T(nil), t.data...),
		shape:  t.shape.Clone(),
		stride: append([]int(nil), t.stride...),
		layout: t.layout,
	}
}

// Reshape returns a view with a new shape over the same storage.
func (t *Tensor[T]) Reshape(shape Shape) (*Tensor[T], error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("reshape: incompatible shapes: %v -> %v (different number of elements)", t.shape, shape)
	}
	return &Tensor[T]{
		data:   t.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		layout: t.layout,
	}, nil
}

// String implements fmt.Stringer.
func (t *Tensor[T]) String() string {
	return fmt.Sprintf("Tensor[%s](%v %s)", t.DType(), t.shape, t.layout)
}

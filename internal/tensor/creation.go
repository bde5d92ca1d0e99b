package tensor

// Zeros creates a tensor filled with zeros.
// Panics on an invalid shape or layout, like the other Must-style helpers.
//
// Example:
//
//	x := tensor.Zeros[float32](tensor.Shape{2, 3, 8, 8}, tensor.ChannelMajor)
func Zeros[T Scalar](shape Shape, layout Layout) *Tensor[T] {
	t, err := New[T](shape, layout)
	if err != nil {
		panic(err)
	}
	return t
}

// Full creates a tensor filled with value.
func Full[T Scalar](shape Shape, value T, layout Layout) *Tensor[T] {
	t := Zeros[T](shape, layout)
	t.Fill(value)
	return t
}

// Arange creates a tensor holding 0, 1, 2, ... in storage order.
// Handy for tests and examples that need distinct values.
func Arange[T Scalar](shape Shape, layout Layout) *Tensor[T] {
	t := Zeros[T](shape, layout)
	for i := range t.data {
		t.data[i] = T(i)
	}
	return t
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice[T Scalar](data []T, shape Shape, layout Layout) *Tensor[T] {
	t, err := FromSlice(data, shape, layout)
	if err != nil {
		panic(err)
	}
	return t
}

// ZerosLike allocates a zero tensor with the shape and layout of t.
func ZerosLike[T, U Scalar](t *Tensor[U]) *Tensor[T] {
	return Zeros[T](t.shape, t.layout)
}

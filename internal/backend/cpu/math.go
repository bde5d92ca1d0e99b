package cpu

import (
	"github.com/jackzcai/blitz/internal/tensor"
)

// Maximum writes output = max(input, threshold) element-wise.
func (b *Backend[T]) Maximum(input, output *tensor.Tensor[T], threshold T) error {
	return b.unary("maximum", input, output, func(x T) T { return max(x, threshold) })
}

// MultiplyScalar writes output = input·scale element-wise.
func (b *Backend[T]) MultiplyScalar(input, output *tensor.Tensor[T], scale T) error {
	return b.unary("multiply scalar", input, output, func(x T) T { return x * scale })
}

// Minus writes output = left - right element-wise.
func (b *Backend[T]) Minus(left, right, output *tensor.Tensor[T]) error {
	return b.binary("minus", left, right, output, func(x, y T) T { return x - y })
}

// Add writes output = left + right element-wise.
func (b *Backend[T]) Add(left, right, output *tensor.Tensor[T]) error {
	return b.binary("add", left, right, output, func(x, y T) T { return x + y })
}

// Multiply writes output = left·right element-wise.
func (b *Backend[T]) Multiply(left, right, output *tensor.Tensor[T]) error {
	return b.binary("multiply", left, right, output, func(x, y T) T { return x * y })
}

// Sum returns the sum of every element, accumulated in float64.
func (b *Backend[T]) Sum(input *tensor.Tensor[T]) T {
	var sum float64
	for _, v := range input.Data() {
		sum += float64(v)
	}
	return T(sum)
}

func (b *Backend[T]) unary(op string, input, output *tensor.Tensor[T], f func(T) T) error {
	if err := sameSize(op, input, output); err != nil {
		return err
	}
	src, dst := input.Data(), output.Data()
	b.forRange(len(src), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = f(src[i])
		}
	})
	return nil
}

func (b *Backend[T]) binary(op string, left, right, output *tensor.Tensor[T], f func(T, T) T) error {
	if err := sameSize(op, left, right, output); err != nil {
		return err
	}
	l, r, dst := left.Data(), right.Data(), output.Data()
	b.forRange(len(l), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = f(l[i], r[i])
		}
	})
	return nil
}

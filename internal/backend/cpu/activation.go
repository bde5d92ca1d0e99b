package cpu

import (
	"math"

	"github.com/jackzcai/blitz/internal/tensor"
)

// RectlinApply computes output = max(x, 0) + slope·min(x, 0).
// slope = 0 gives ReLU, a small positive slope gives leaky ReLU.
func (b *Backend[T]) RectlinApply(input, output *tensor.Tensor[T], slope T) error {
	if err := sameSize("rectlin", input, output); err != nil {
		return err
	}
	src, dst := input.Data(), output.Data()
	b.forRange(len(src), func(start, end int) {
		for i := start; i < end; i++ {
			x := src[i]
			if x > 0 {
				dst[i] = x
			} else {
				dst[i] = slope * x
			}
		}
	})
	return nil
}

// RectlinDerivative scales the incoming gradient held in output by the
// derivative of RectlinApply at the forward input:
//
//	output[i] *= 1      if input[i] > 0
//	output[i] *= slope  otherwise
func (b *Backend[T]) RectlinDerivative(input, output *tensor.Tensor[T], slope T) error {
	if err := sameSize("rectlin derivative", input, output); err != nil {
		return err
	}
	src, dst := input.Data(), output.Data()
	b.forRange(len(src), func(start, end int) {
		for i := start; i < end; i++ {
			if src[i] <= 0 {
				dst[i] *= slope
			}
		}
	})
	return nil
}

// LogisticApply computes output = 1 / (1 + exp(-x)).
func (b *Backend[T]) LogisticApply(input, output *tensor.Tensor[T]) error {
	if err := sameSize("logistic", input, output); err != nil {
		return err
	}
	src, dst := input.Data(), output.Data()
	b.forRange(len(src), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = T(1 / (1 + math.Exp(-float64(src[i]))))
		}
	})
	return nil
}

// LogisticDerivative scales the incoming gradient held in output by y(1-y),
// input being the forward output y.
func (b *Backend[T]) LogisticDerivative(input, output *tensor.Tensor[T]) error {
	if err := sameSize("logistic derivative", input, output); err != nil {
		return err
	}
	src, dst := input.Data(), output.Data()
	b.forRange(len(src), func(start, end int) {
		for i := start; i < end; i++ {
			y := src[i]
			dst[i] *= y * (1 - y)
		}
	})
	return nil
}

// SoftmaxApply computes a softmax over each sample (outermost index).
// Each row is shifted by its maximum before exponentiation.
func (b *Backend[T]) SoftmaxApply(input, output *tensor.Tensor[T]) error {
	if err := sameShape("softmax", input, output); err != nil {
		return err
	}
	b.forEach(input.BatchSize(), func(n int) {
		src, dst := input.Sample(n), output.Sample(n)

		maxVal := src[0]
		for _, v := range src[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for i, v := range src {
			e := math.Exp(float64(v - maxVal))
			dst[i] = T(e)
			sum += e
		}
		inv := T(1 / sum)
		for i := range dst {
			dst[i] *= inv
		}
	})
	return nil
}

// SoftmaxDerivative applies the softmax Jacobian to the incoming gradient
// held in output, input being the forward output y:
//
//	g_i = y_i · (g_i - Σ_j g_j·y_j)
func (b *Backend[T]) SoftmaxDerivative(input, output *tensor.Tensor[T]) error {
	if err := sameShape("softmax derivative", input, output); err != nil {
		return err
	}
	b.forEach(input.BatchSize(), func(n int) {
		y, g := input.Sample(n), output.Sample(n)
		var dot T
		for i := range y {
			dot += g[i] * y[i]
		}
		for i := range y {
			g[i] = y[i] * (g[i] - dot)
		}
	})
	return nil
}

package cpu

import (
	"fmt"

	"github.com/jackzcai/blitz/internal/tensor"
)

// MatrixMultiply computes output = alpha·op(left)·op(right) + beta·output
// for rank-2 tensors, where op transposes when transA/transB is set.
//
// With beta == 0 the prior contents of output are ignored; with beta == 1 the
// product is accumulated into it. An unknown algorithm fails with
// ErrUnsupportedAlgorithm; there is no fallback.
func (b *Backend[T]) MatrixMultiply(left, right, output *tensor.Tensor[T], transA, transB bool, alpha, beta T, alg Algorithm) error {
	const op = "matmul"

	mul, err := newMultiplier[T](alg, b.par)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	a, err := matrixOf(op, "left", left)
	if err != nil {
		return err
	}
	bm, err := matrixOf(op, "right", right)
	if err != nil {
		return err
	}
	c, err := matrixOf(op, "output", output)
	if err != nil {
		return err
	}
	if err := gemm(mul, a, transA, bm, transB, c, alpha, beta); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Transpose2D writes the transpose of a rank-2 input into output.
func (b *Backend[T]) Transpose2D(input, output *tensor.Tensor[T]) error {
	const op = "transpose2d"

	in, err := matrixOf(op, "input", input)
	if err != nil {
		return err
	}
	out, err := matrixOf(op, "output", output)
	if err != nil {
		return err
	}
	if out.rows != in.cols || out.cols != in.rows {
		return fmt.Errorf("%s: input %dx%d, output %dx%d: %w", op, in.rows, in.cols, out.rows, out.cols, ErrShapeMismatch)
	}

	b.transposeInto(in, out)
	return nil
}

func (b *Backend[T]) transposeInto(in, out matrix[T]) {
	b.forEach(out.rows, func(i int) {
		row := out.data[i*out.cols : (i+1)*out.cols]
		for j := range row {
			row[j] = in.data[j*in.cols+i]
		}
	})
}

func matrixOf[T tensor.Float](op, name string, t *tensor.Tensor[T]) (matrix[T], error) {
	if t.Rank() != 2 {
		return matrix[T]{}, fmt.Errorf("%s: %s must be 2D, got shape %v: %w", op, name, t.Shape(), ErrShapeMismatch)
	}
	return asMatrix(t.Data(), t.Shape()[0], t.Shape()[1]), nil
}

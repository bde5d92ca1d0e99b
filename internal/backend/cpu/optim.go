package cpu

import (
	"fmt"

	"github.com/jackzcai/blitz/internal/tensor"
)

// GradientDescent applies one momentum SGD step with L2 weight decay:
//
//	velocity = momentum·velocity - learningRate·(gradient/batchSize + decay·filter)
//	filter  += velocity
//
// gradient holds the sum over the batch, as accumulated by the update kernels.
func (b *Backend[T]) GradientDescent(filter, gradient, velocity *tensor.Tensor[T], momentum, learningRate, decay T, batchSize int) error {
	const op = "gradient descent"

	if batchSize <= 0 {
		return fmt.Errorf("%s: batch size %d: %w", op, batchSize, ErrInvalidConfig)
	}
	if err := lossShapes(op, filter, gradient, velocity); err != nil {
		return err
	}

	w, g, v := filter.Data(), gradient.Data(), velocity.Data()
	scale := 1 / T(batchSize)
	b.forRange(len(w), func(start, end int) {
		for i := start; i < end; i++ {
			v[i] = momentum*v[i] - learningRate*(g[i]*scale+decay*w[i])
			w[i] += v[i]
		}
	})
	return nil
}

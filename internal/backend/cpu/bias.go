package cpu

import (
	"fmt"

	"github.com/jackzcai/blitz/internal/tensor"
)

// BiasForward writes output[n] = input[n] + bias for every sample n.
// bias holds one value per element of a sample.
func (b *Backend[T]) BiasForward(input, bias, output *tensor.Tensor[T]) error {
	const op = "bias forward"

	if err := sameShape(op, input, output); err != nil {
		return err
	}
	if err := perSample(op, "bias", input, bias); err != nil {
		return err
	}
	bv := bias.Data()
	b.forEach(input.BatchSize(), func(n int) {
		src, dst := input.Sample(n), output.Sample(n)
		for i, v := range src {
			dst[i] = v + bv[i]
		}
	})
	return nil
}

// BiasBackwardUpdate accumulates update[i] += Σ_n input[n, i].
func (b *Backend[T]) BiasBackwardUpdate(input, update *tensor.Tensor[T]) error {
	const op = "bias backward update"

	if err := perSample(op, "update", input, update); err != nil {
		return err
	}
	upd := update.Data()
	batch := input.BatchSize()
	b.forRange(len(upd), func(start, end int) {
		for n := 0; n < batch; n++ {
			src := input.Sample(n)
			for i := start; i < end; i++ {
				upd[i] += src[i]
			}
		}
	})
	return nil
}

// perSample checks that t holds exactly one value per element of a sample of
// input.
func perSample[T tensor.Float](op, name string, input, t *tensor.Tensor[T]) error {
	if t.NumElements() != input.SampleSize() {
		return fmt.Errorf("%s: %s has %d elements, want %d per sample: %w",
			op, name, t.NumElements(), input.SampleSize(), ErrShapeMismatch)
	}
	return nil
}

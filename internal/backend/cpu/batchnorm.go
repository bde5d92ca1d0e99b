package cpu

import (
	"fmt"
	"math"

	"github.com/jackzcai/blitz/internal/tensor"
)

// BatchNormForward normalizes every feature (element of a sample) across the
// batch:
//
//	x̂ = (x - mean) / sqrt(var + epsilon)
//	y = gamma·x̂ + beta
//
// inputVar receives the biased per-feature variance and inputHat receives x̂;
// BatchNormBackward consumes both.
func (b *Backend[T]) BatchNormForward(input, gamma, beta, inputVar, inputHat, output *tensor.Tensor[T], epsilon T) error {
	const op = "batchnorm forward"

	if epsilon <= 0 {
		return fmt.Errorf("%s: epsilon %v: %w", op, epsilon, ErrInvalidConfig)
	}
	if err := lossShapes(op, input, inputHat, output); err != nil {
		return err
	}
	if err := perFeature(op, input, []string{"gamma", "beta", "variance"}, gamma, beta, inputVar); err != nil {
		return err
	}

	batch, features := input.BatchSize(), input.SampleSize()
	x, xHat, y := input.Data(), inputHat.Data(), output.Data()
	g, bt, vr := gamma.Data(), beta.Data(), inputVar.Data()
	invN := 1 / float64(batch)

	b.forRange(features, func(start, end int) {
		for f := start; f < end; f++ {
			var mean float64
			for n := 0; n < batch; n++ {
				mean += float64(x[n*features+f])
			}
			mean *= invN

			var variance float64
			for n := 0; n < batch; n++ {
				d := float64(x[n*features+f]) - mean
				variance += d * d
			}
			variance *= invN
			vr[f] = T(variance)

			inv := 1 / math.Sqrt(variance+float64(epsilon))
			for n := 0; n < batch; n++ {
				i := n*features + f
				h := (float64(x[i]) - mean) * inv
				xHat[i] = T(h)
				y[i] = g[f]*T(h) + bt[f]
			}
		}
	})
	return nil
}

// BatchNormBackward propagates the gradient backwardInput through a batch
// normalization:
//
//	gammaUpdate += Σ_n g·x̂
//	betaUpdate  += Σ_n g
//	output = gamma/sqrt(var + epsilon) · (g - mean(g) - x̂·mean(g·x̂))
func (b *Backend[T]) BatchNormBackward(backwardInput, inputHat, inputVar, gamma, gammaUpdate, betaUpdate, output *tensor.Tensor[T], epsilon T) error {
	const op = "batchnorm backward"

	if epsilon <= 0 {
		return fmt.Errorf("%s: epsilon %v: %w", op, epsilon, ErrInvalidConfig)
	}
	if err := lossShapes(op, backwardInput, inputHat, output); err != nil {
		return err
	}
	if err := perFeature(op, backwardInput, []string{"variance", "gamma", "gamma update", "beta update"},
		inputVar, gamma, gammaUpdate, betaUpdate); err != nil {
		return err
	}

	batch, features := backwardInput.BatchSize(), backwardInput.SampleSize()
	grad, xHat, out := backwardInput.Data(), inputHat.Data(), output.Data()
	vr, g, gu, bu := inputVar.Data(), gamma.Data(), gammaUpdate.Data(), betaUpdate.Data()
	invN := 1 / float64(batch)

	b.forRange(features, func(start, end int) {
		for f := start; f < end; f++ {
			var sumG, sumGX float64
			for n := 0; n < batch; n++ {
				i := n*features + f
				sumG += float64(grad[i])
				sumGX += float64(grad[i]) * float64(xHat[i])
			}
			gu[f] += T(sumGX)
			bu[f] += T(sumG)

			scale := float64(g[f]) / math.Sqrt(float64(vr[f])+float64(epsilon))
			meanG, meanGX := sumG*invN, sumGX*invN
			for n := 0; n < batch; n++ {
				i := n*features + f
				out[i] = T(scale * (float64(grad[i]) - meanG - float64(xHat[i])*meanGX))
			}
		}
	})
	return nil
}

func perFeature[T tensor.Float](op string, input *tensor.Tensor[T], names []string, ts ...*tensor.Tensor[T]) error {
	for i, t := range ts {
		if err := perSample(op, names[i], input, t); err != nil {
			return err
		}
	}
	return nil
}

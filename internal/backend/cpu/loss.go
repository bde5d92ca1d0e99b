package cpu

import (
	"math"

	"github.com/jackzcai/blitz/internal/tensor"
)

// crossEntropyEpsilon bounds predictions away from 0 and 1 before the log.
const crossEntropyEpsilon = 1e-7

// Losses reduce over the whole tensor and divide by the batch size N
// (outermost dimension). Derivatives write ∂loss/∂input into output, so the
// 1/N factor is already applied.

// SquareMeanApply returns Σ ½(x-t)² / N.
func (b *Backend[T]) SquareMeanApply(input, target *tensor.Tensor[T]) (T, error) {
	if err := sameShape("square mean", input, target); err != nil {
		return 0, err
	}
	var sum float64
	t := target.Data()
	for i, x := range input.Data() {
		d := float64(x - t[i])
		sum += 0.5 * d * d
	}
	return T(sum / float64(input.BatchSize())), nil
}

// SquareMeanDerivative writes (x-t) / N.
func (b *Backend[T]) SquareMeanDerivative(input, target, output *tensor.Tensor[T]) error {
	if err := lossShapes("square mean derivative", input, target, output); err != nil {
		return err
	}
	inv := 1 / T(input.BatchSize())
	x, t, out := input.Data(), target.Data(), output.Data()
	b.forRange(len(x), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = (x[i] - t[i]) * inv
		}
	})
	return nil
}

// AbsMeanApply returns Σ |x-t| / N.
func (b *Backend[T]) AbsMeanApply(input, target *tensor.Tensor[T]) (T, error) {
	if err := sameShape("abs mean", input, target); err != nil {
		return 0, err
	}
	var sum float64
	t := target.Data()
	for i, x := range input.Data() {
		sum += math.Abs(float64(x - t[i]))
	}
	return T(sum / float64(input.BatchSize())), nil
}

// AbsMeanDerivative writes sign(x-t) / N, with sign(0) = 0.
func (b *Backend[T]) AbsMeanDerivative(input, target, output *tensor.Tensor[T]) error {
	if err := lossShapes("abs mean derivative", input, target, output); err != nil {
		return err
	}
	inv := 1 / T(input.BatchSize())
	x, t, out := input.Data(), target.Data(), output.Data()
	b.forRange(len(x), func(start, end int) {
		for i := start; i < end; i++ {
			switch d := x[i] - t[i]; {
			case d > 0:
				out[i] = inv
			case d < 0:
				out[i] = -inv
			default:
				out[i] = 0
			}
		}
	})
	return nil
}

// CrossEntropyBinaryApply returns -Σ [t·ln x + (1-t)·ln(1-x)] / N with x
// clamped to [ε, 1-ε].
func (b *Backend[T]) CrossEntropyBinaryApply(input, target *tensor.Tensor[T]) (T, error) {
	if err := sameShape("cross entropy binary", input, target); err != nil {
		return 0, err
	}
	var sum float64
	t := target.Data()
	for i, x := range input.Data() {
		p := clampProbability(float64(x))
		tv := float64(t[i])
		sum -= tv*math.Log(p) + (1-tv)*math.Log(1-p)
	}
	return T(sum / float64(input.BatchSize())), nil
}

// CrossEntropyBinaryDerivative writes (x-t) / (x(1-x)) / N on the clamped x.
func (b *Backend[T]) CrossEntropyBinaryDerivative(input, target, output *tensor.Tensor[T]) error {
	if err := lossShapes("cross entropy binary derivative", input, target, output); err != nil {
		return err
	}
	n := float64(input.BatchSize())
	x, t, out := input.Data(), target.Data(), output.Data()
	b.forRange(len(x), func(start, end int) {
		for i := start; i < end; i++ {
			p := clampProbability(float64(x[i]))
			out[i] = T((p - float64(t[i])) / (p * (1 - p)) / n)
		}
	})
	return nil
}

// CrossEntropyMultiApply returns -Σ t·ln x / N with x bounded below by ε.
func (b *Backend[T]) CrossEntropyMultiApply(input, target *tensor.Tensor[T]) (T, error) {
	if err := sameShape("cross entropy multi", input, target); err != nil {
		return 0, err
	}
	var sum float64
	t := target.Data()
	for i, x := range input.Data() {
		sum -= float64(t[i]) * math.Log(max(float64(x), crossEntropyEpsilon))
	}
	return T(sum / float64(input.BatchSize())), nil
}

// CrossEntropyMultiDerivative writes -t/x / N with x bounded below by ε.
func (b *Backend[T]) CrossEntropyMultiDerivative(input, target, output *tensor.Tensor[T]) error {
	if err := lossShapes("cross entropy multi derivative", input, target, output); err != nil {
		return err
	}
	n := float64(input.BatchSize())
	x, t, out := input.Data(), target.Data(), output.Data()
	b.forRange(len(x), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = T(-float64(t[i]) / max(float64(x[i]), crossEntropyEpsilon) / n)
		}
	})
	return nil
}

func clampProbability(p float64) float64 {
	return min(max(p, crossEntropyEpsilon), 1-crossEntropyEpsilon)
}

func lossShapes[T tensor.Float](op string, input, target, output *tensor.Tensor[T]) error {
	if err := sameShape(op, input, target); err != nil {
		return err
	}
	return sameShape(op, input, output)
}

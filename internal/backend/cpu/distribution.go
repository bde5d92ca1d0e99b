package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jackzcai/blitz/internal/tensor"
)

// ConstantDistribution fills output with val.
func (b *Backend[T]) ConstantDistribution(output *tensor.Tensor[T], val T) {
	output.Fill(val)
}

// NormalDistribution fills output with draws from N(loc, scale²).
//
// Draws come from the backend's seeded source, so two backends created with
// the same seed produce the same sequence.
func (b *Backend[T]) NormalDistribution(output *tensor.Tensor[T], loc, scale T) error {
	if scale <= 0 {
		return fmt.Errorf("normal distribution: scale %v: %w", scale, ErrInvalidConfig)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	dist := distuv.Normal{Mu: float64(loc), Sigma: float64(scale), Src: b.src}
	fillFrom(output.Data(), dist.Rand)
	return nil
}

// UniformDistribution fills output with draws from U[low, high).
func (b *Backend[T]) UniformDistribution(output *tensor.Tensor[T], low, high T) error {
	if high <= low {
		return fmt.Errorf("uniform distribution: range [%v, %v): %w", low, high, ErrInvalidConfig)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	dist := distuv.Uniform{Min: float64(low), Max: float64(high), Src: b.src}
	fillFrom(output.Data(), dist.Rand)
	return nil
}

// MakeBinaryMask draws u ~ U[low, high) per element and writes 1 where
// u < keep and 0 elsewhere. With low = 0, high = 1 each element survives with
// probability keep, as in dropout.
func (b *Backend[T]) MakeBinaryMask(output *tensor.Tensor[T], low, high, keep T) error {
	if high <= low {
		return fmt.Errorf("binary mask: range [%v, %v): %w", low, high, ErrInvalidConfig)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	dist := distuv.Uniform{Min: float64(low), Max: float64(high), Src: b.src}
	k := float64(keep)
	fillFrom(output.Data(), func() float64 {
		if dist.Rand() < k {
			return 1
		}
		return 0
	})
	return nil
}

func fillFrom[T tensor.Float](dst []T, draw func() float64) {
	for i := range dst {
		dst[i] = T(draw())
	}
}

package cpu

import (
	"math"

	"github.com/jackzcai/blitz/internal/tensor"
)

// EvaluateClassify returns the fraction of samples whose arg-max in output
// equals the arg-max in target. Ties resolve to the lowest index.
func (b *Backend[T]) EvaluateClassify(output, target *tensor.Tensor[T]) (T, error) {
	if err := sameShape("evaluate classify", output, target); err != nil {
		return 0, err
	}
	batch := output.BatchSize()
	correct := 0
	for n := 0; n < batch; n++ {
		if argmax(output.Sample(n)) == argmax(target.Sample(n)) {
			correct++
		}
	}
	return T(correct) / T(batch), nil
}

// EvaluateRegress returns the mean absolute error per element.
func (b *Backend[T]) EvaluateRegress(output, target *tensor.Tensor[T]) (T, error) {
	if err := sameShape("evaluate regress", output, target); err != nil {
		return 0, err
	}
	var sum float64
	t := target.Data()
	for i, v := range output.Data() {
		sum += math.Abs(float64(v - t[i]))
	}
	return T(sum / float64(output.NumElements())), nil
}

func argmax[T tensor.Float](row []T) int {
	best := 0
	for i, v := range row[1:] {
		if v > row[best] {
			best = i + 1
		}
	}
	return best
}

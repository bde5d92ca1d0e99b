package cpu

import (
	"errors"
	"fmt"

	"github.com/jackzcai/blitz/internal/tensor"
)

// Errors returned by the kernels. They are wrapped with the failing
// operation's name; match with errors.Is. A kernel that returns an error has
// not written to any of its outputs. An unknown Algorithm is reported as both
// ErrUnsupportedAlgorithm and ErrInvalidConfig.
var (
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrUnsupportedLayout    = errors.New("unsupported layout")
	ErrWorkspaceTooSmall    = errors.New("workspace too small")
	ErrInvalidIndex         = errors.New("invalid max index")
)

func sameShape[T, U tensor.Scalar](op string, a *tensor.Tensor[T], b *tensor.Tensor[U]) error {
	if !a.Shape().Equal(b.Shape()) {
		return fmt.Errorf("%s: shapes %v and %v differ: %w", op, a.Shape(), b.Shape(), ErrShapeMismatch)
	}
	return nil
}

func checkLayout(op string, layouts ...tensor.Layout) error {
	for _, l := range layouts {
		if !l.Valid() {
			return fmt.Errorf("%s: %s: %w", op, l, ErrUnsupportedLayout)
		}
	}
	return nil
}

// imageDims reads the logical dims of a rank-4 tensor and checks them.
func imageDims[T tensor.Scalar](op, name string, t *tensor.Tensor[T], n, c, h, w int) error {
	gn, gc, gh, gw, err := t.Dims()
	if err != nil {
		return fmt.Errorf("%s: %s: %w: %w", op, name, ErrShapeMismatch, err)
	}
	if gn != n || gc != c || gh != h || gw != w {
		return fmt.Errorf("%s: %s is (N=%d,C=%d,H=%d,W=%d) in %s, want (N=%d,C=%d,H=%d,W=%d): %w",
			op, name, gn, gc, gh, gw, t.Layout(), n, c, h, w, ErrShapeMismatch)
	}
	return nil
}

// sameSize checks that every tensor holds as many elements as the first.
func sameSize[T tensor.Scalar](op string, ts ...*tensor.Tensor[T]) error {
	for _, t := range ts[1:] {
		if t.NumElements() != ts[0].NumElements() {
			return fmt.Errorf("%s: %d elements vs %d: %w", op, t.NumElements(), ts[0].NumElements(), ErrShapeMismatch)
		}
	}
	return nil
}

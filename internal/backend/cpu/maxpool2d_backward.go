package cpu

import (
	"fmt"

	"github.com/jackzcai/blitz/internal/parallel"
	"github.com/jackzcai/blitz/internal/tensor"
)

// MaxPooling2DBackward routes gradients to the positions recorded by
// MaxPooling2DForward.
//
// Algorithm: Route gradients to max positions.
//   - inputGrad is zeroed first
//   - For each output position, exactly ONE input position receives gradient
//   - All other positions in the pooling window receive zero gradient
//
// Example (2x2 pool, stride=2):
//
//	Input:  [[1, 2],  Output: [4]  Input Grad: [[0, 0],
//	         [3, 4]]                             [0, grad]]
//
// Every recorded index must address the same sample and channel as its
// output element; otherwise ErrInvalidIndex is returned before inputGrad is
// touched.
func (b *Backend[T]) MaxPooling2DBackward(outputGrad, inputGrad *tensor.Tensor[T], maxIndex *tensor.Tensor[int]) error {
	const op = "maxpool2d backward"

	if err := checkLayout(op, inputGrad.Layout()); err != nil {
		return err
	}
	if outputGrad.Layout() != inputGrad.Layout() {
		return fmt.Errorf("%s: output gradient layout %s != input gradient layout %s: %w",
			op, outputGrad.Layout(), inputGrad.Layout(), ErrUnsupportedLayout)
	}
	N, C, H, W, err := inputGrad.Dims()
	if err != nil {
		return fmt.Errorf("%s: input gradient: %w: %w", op, ErrShapeMismatch, err)
	}
	gn, gc, P, Q, err := outputGrad.Dims()
	if err != nil {
		return fmt.Errorf("%s: output gradient: %w: %w", op, ErrShapeMismatch, err)
	}
	if gn != N || gc != C {
		return fmt.Errorf("%s: output gradient batch/channels %d/%d, input gradient %d/%d: %w", op, gn, gc, N, C, ErrShapeMismatch)
	}
	if err := sameShape(op, outputGrad, maxIndex); err != nil {
		return err
	}

	inImg := imageIndex{layout: inputGrad.Layout(), c: C, h: H, w: W}
	outImg := imageIndex{layout: outputGrad.Layout(), c: C, h: P, w: Q}
	if err := checkMaxIndex(op, maxIndex.Data(), inImg, outImg, N); err != nil {
		return err
	}

	inputGrad.Zero()
	inData, gradData, idxData := inputGrad.Data(), outputGrad.Data(), maxIndex.Data()

	// Each (n, c) plane routes only into itself, so planes run in parallel.
	parallel.ForBatch(N, C, func(n, c int) {
		outBase := n * outImg.size()
		for p := 0; p < P; p++ {
			for q := 0; q < Q; q++ {
				o := outBase + outImg.at(c, p, q)
				inData[idxData[o]] += gradData[o]
			}
		}
	}, b.par)
	return nil
}

// checkMaxIndex verifies every index lies inside the (n, c) plane of its
// output element.
func checkMaxIndex(op string, idx []int, inImg, outImg imageIndex, N int) error {
	for n := 0; n < N; n++ {
		inBase := n * inImg.size()
		outBase := n * outImg.size()
		for c := 0; c < outImg.c; c++ {
			for p := 0; p < outImg.h; p++ {
				for q := 0; q < outImg.w; q++ {
					o := outBase + outImg.at(c, p, q)
					local := idx[o] - inBase
					if local < 0 || local >= inImg.size() || inImg.channelOf(local) != c {
						return fmt.Errorf("%s: index %d at output (n=%d,c=%d,p=%d,q=%d) outside its input plane: %w",
							op, idx[o], n, c, p, q, ErrInvalidIndex)
					}
				}
			}
		}
	}
	return nil
}

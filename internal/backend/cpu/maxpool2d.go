package cpu

import (
	"fmt"

	"github.com/jackzcai/blitz/internal/parallel"
	"github.com/jackzcai/blitz/internal/tensor"
)

// MaxPooling2DForward performs 2D max pooling and records where each maximum
// came from.
//
// Input shape:  [batch, channels, height, width] (or NHWC)
// Output shape: [batch, channels, out_height, out_width], same layout as input
//
// Where:
//
//	out_height = (height - R) / strH + 1
//	out_width = (width - S) / strW + 1
//
// maxIndex has the output's shape and receives, per output element, the flat
// offset into input of the selected element. When a window holds several
// equal maxima the first one in row-major window order wins.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],     Index: [[5,7],
//	        [5,6,7,8],             [14,16]]           [13,15]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (b *Backend[T]) MaxPooling2DForward(input, output *tensor.Tensor[T], maxIndex *tensor.Tensor[int], R, S, strH, strW int) error {
	const op = "maxpool2d forward"

	if err := checkLayout(op, input.Layout()); err != nil {
		return err
	}
	N, C, H, W, err := input.Dims()
	if err != nil {
		return fmt.Errorf("%s: input: %w: %w", op, ErrShapeMismatch, err)
	}
	win, err := newWindow(op, H, W, R, S, 0, 0, strH, strW)
	if err != nil {
		return err
	}
	if output.Layout() != input.Layout() {
		return fmt.Errorf("%s: output layout %s != input layout %s: %w", op, output.Layout(), input.Layout(), ErrUnsupportedLayout)
	}
	if err := imageDims(op, "output", output, N, C, win.p, win.q); err != nil {
		return err
	}
	if err := sameShape(op, output, maxIndex); err != nil {
		return err
	}

	inImg := imageIndex{layout: input.Layout(), c: C, h: H, w: W}
	outImg := imageIndex{layout: output.Layout(), c: C, h: win.p, w: win.q}
	inData, outData, idxData := input.Data(), output.Data(), maxIndex.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		inBase := n * inImg.size()
		outBase := n * outImg.size()

		for p := 0; p < win.p; p++ {
			hStart := p * win.strH
			for q := 0; q < win.q; q++ {
				wStart := q * win.strW

				best := inBase + inImg.at(c, hStart, wStart)
				maxVal := inData[best]
				for r := 0; r < win.r; r++ {
					for s := 0; s < win.s; s++ {
						off := inBase + inImg.at(c, hStart+r, wStart+s)
						if inData[off] > maxVal {
							maxVal = inData[off]
							best = off
						}
					}
				}

				o := outBase + outImg.at(c, p, q)
				outData[o] = maxVal
				idxData[o] = best
			}
		}
	}, b.par)
	return nil
}

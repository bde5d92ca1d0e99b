package cpu

import (
	"fmt"

	"github.com/jackzcai/blitz/internal/tensor"
)

// TransformCopy copies source into dest. When the layout tags match the
// shapes must be equal and the copy is flat. Otherwise both must be rank-4
// images with the same logical (N, C, H, W) and the data is re-laid out
// between ChannelMajor and SpatialMajor.
func (b *Backend[T]) TransformCopy(source, dest *tensor.Tensor[T]) error {
	const op = "transform copy"

	if err := checkLayout(op, source.Layout(), dest.Layout()); err != nil {
		return err
	}
	if source.Layout() == dest.Layout() {
		if err := sameShape(op, source, dest); err != nil {
			return err
		}
		copy(dest.Data(), source.Data())
		return nil
	}

	n, c, h, w, err := source.Dims()
	if err != nil {
		return fmt.Errorf("%s: source: %w: %w", op, ErrShapeMismatch, err)
	}
	if err := imageDims(op, "dest", dest, n, c, h, w); err != nil {
		return err
	}

	from := imageIndex{layout: source.Layout(), c: c, h: h, w: w}
	to := imageIndex{layout: dest.Layout(), c: c, h: h, w: w}
	b.forEach(n, func(i int) {
		src, dst := source.Sample(i), dest.Sample(i)
		for ch := 0; ch < c; ch++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					dst[to.at(ch, y, x)] = src[from.at(ch, y, x)]
				}
			}
		}
	})
	return nil
}

package cpu

import (
	"fmt"

	"github.com/jackzcai/blitz/internal/tensor"
)

// Unpack2D copies every receptive field of input into a patch matrix
// (image-to-column).
//
// Input is a batched image tensor. Unpack receives one patch matrix per
// sample, N × (C·R·S) × (P·Q) for ChannelMajor input and N × (P·Q) × (R·S·C)
// for SpatialMajor input, where
//
//	P = (H + 2*padH - R)/strH + 1
//	Q = (W + 2*padW - S)/strW + 1
//
// Receptive-field samples that fall into the padding are written as zero.
// Only the element count of unpack is checked; its own shape is not read.
func (b *Backend[T]) Unpack2D(input, unpack *tensor.Tensor[T], R, S, padH, padW, strH, strW int) error {
	const op = "unpack2d"

	img, win, n, err := patchGeometry(op, input, unpack, R, S, padH, padW, strH, strW)
	if err != nil {
		return err
	}
	px := patchIndex{layout: img.layout, c: img.c, r: R, s: S, pq: win.p * win.q}

	for i := 0; i < n; i++ {
		dst := unpack.Data()[i*px.size() : (i+1)*px.size()]
		unpack2D(input.Sample(i), dst, img, win)
	}
	return nil
}

// Pack2D is the adjoint of Unpack2D (column-to-image). It adds every entry of
// unpack into the input position it was read from, so overlapping windows sum.
// Input is accumulated into, not overwritten; zero it first for a plain scatter.
func (b *Backend[T]) Pack2D(unpack, input *tensor.Tensor[T], R, S, padH, padW, strH, strW int) error {
	const op = "pack2d"

	img, win, n, err := patchGeometry(op, input, unpack, R, S, padH, padW, strH, strW)
	if err != nil {
		return err
	}
	px := patchIndex{layout: img.layout, c: img.c, r: R, s: S, pq: win.p * win.q}

	for i := 0; i < n; i++ {
		src := unpack.Data()[i*px.size() : (i+1)*px.size()]
		pack2D(src, input.Sample(i), img, win)
	}
	return nil
}

func patchGeometry[T tensor.Float](op string, input, unpack *tensor.Tensor[T], R, S, padH, padW, strH, strW int) (imageIndex, window, int, error) {
	if err := checkLayout(op, input.Layout()); err != nil {
		return imageIndex{}, window{}, 0, err
	}
	n, c, h, w, err := input.Dims()
	if err != nil {
		return imageIndex{}, window{}, 0, fmt.Errorf("%s: input: %w: %w", op, ErrShapeMismatch, err)
	}
	win, err := newWindow(op, h, w, R, S, padH, padW, strH, strW)
	if err != nil {
		return imageIndex{}, window{}, 0, err
	}
	want := n * c * R * S * win.p * win.q
	if unpack.NumElements() != want {
		return imageIndex{}, window{}, 0, fmt.Errorf("%s: unpack has %d elements, want N*C*R*S*P*Q = %d: %w",
			op, unpack.NumElements(), want, ErrShapeMismatch)
	}
	return imageIndex{layout: input.Layout(), c: c, h: h, w: w}, win, n, nil
}

func newWindow(op string, h, w, R, S, padH, padW, strH, strW int) (window, error) {
	if R <= 0 || S <= 0 {
		return window{}, fmt.Errorf("%s: window %dx%d: %w", op, R, S, ErrInvalidConfig)
	}
	if strH <= 0 || strW <= 0 {
		return window{}, fmt.Errorf("%s: stride %dx%d: %w", op, strH, strW, ErrInvalidConfig)
	}
	if padH < 0 || padW < 0 {
		return window{}, fmt.Errorf("%s: padding %dx%d: %w", op, padH, padW, ErrInvalidConfig)
	}
	if h+2*padH < R || w+2*padW < S {
		return window{}, fmt.Errorf("%s: window %dx%d larger than padded input %dx%d: %w",
			op, R, S, h+2*padH, w+2*padW, ErrInvalidConfig)
	}
	return window{
		r: R, s: S,
		padH: padH, padW: padW,
		strH: strH, strW: strW,
		p: outputSize(h, padH, R, strH),
		q: outputSize(w, padW, S, strW),
	}, nil
}

// unpack2D fills the patch matrix dst of one sample from src.
func unpack2D[T tensor.Float](src, dst []T, img imageIndex, win window) {
	if img.layout == tensor.SpatialMajor {
		unpack2DSpatial(src, dst, img, win)
		return
	}
	unpack2DChannel(src, dst, img, win)
}

// unpack2DChannel writes a (C·R·S) × (P·Q) matrix: row (c,r,s), column (p,q).
func unpack2DChannel[T tensor.Float](src, dst []T, img imageIndex, win window) {
	px := patchIndex{layout: tensor.ChannelMajor, c: img.c, r: win.r, s: win.s, pq: win.p * win.q}

	for c := 0; c < img.c; c++ {
		for r := 0; r < win.r; r++ {
			for s := 0; s < win.s; s++ {
				row := dst[px.at(c, r, s, 0):px.at(c, r, s, 0)+px.pq]
				for p := 0; p < win.p; p++ {
					y := p*win.strH + r - win.padH
					line := row[p*win.q : (p+1)*win.q]
					if y < 0 || y >= img.h {
						clear(line)
						continue
					}
					for q := 0; q < win.q; q++ {
						x := q*win.strW + s - win.padW
						if x < 0 || x >= img.w {
							line[q] = 0
							continue
						}
						line[q] = src[img.at(c, y, x)]
					}
				}
			}
		}
	}
}

// unpack2DSpatial writes a (P·Q) × (R·S·C) matrix: row (p,q), column (r,s,c).
// Channels are contiguous on both sides, so each (r,s) tap is one copy.
func unpack2DSpatial[T tensor.Float](src, dst []T, img imageIndex, win window) {
	px := patchIndex{layout: tensor.SpatialMajor, c: img.c, r: win.r, s: win.s, pq: win.p * win.q}

	for p := 0; p < win.p; p++ {
		for q := 0; q < win.q; q++ {
			pos := p*win.q + q
			for r := 0; r < win.r; r++ {
				y := p*win.strH + r - win.padH
				for s := 0; s < win.s; s++ {
					x := q*win.strW + s - win.padW
					tap := dst[px.at(0, r, s, pos) : px.at(0, r, s, pos)+img.c]
					if y < 0 || y >= img.h || x < 0 || x >= img.w {
						clear(tap)
						continue
					}
					from := img.at(0, y, x)
					copy(tap, src[from:from+img.c])
				}
			}
		}
	}
}

// pack2D adds the patch matrix src of one sample into dst.
func pack2D[T tensor.Float](src, dst []T, img imageIndex, win window) {
	if img.layout == tensor.SpatialMajor {
		pack2DSpatial(src, dst, img, win)
		return
	}
	pack2DChannel(src, dst, img, win)
}

func pack2DChannel[T tensor.Float](src, dst []T, img imageIndex, win window) {
	px := patchIndex{layout: tensor.ChannelMajor, c: img.c, r: win.r, s: win.s, pq: win.p * win.q}

	for c := 0; c < img.c; c++ {
		for r := 0; r < win.r; r++ {
			for s := 0; s < win.s; s++ {
				row := src[px.at(c, r, s, 0):px.at(c, r, s, 0)+px.pq]
				for p := 0; p < win.p; p++ {
					y := p*win.strH + r - win.padH
					if y < 0 || y >= img.h {
						continue
					}
					line := row[p*win.q : (p+1)*win.q]
					for q := 0; q < win.q; q++ {
						x := q*win.strW + s - win.padW
						if x < 0 || x >= img.w {
							continue
						}
						dst[img.at(c, y, x)] += line[q]
					}
				}
			}
		}
	}
}

func pack2DSpatial[T tensor.Float](src, dst []T, img imageIndex, win window) {
	px := patchIndex{layout: tensor.SpatialMajor, c: img.c, r: win.r, s: win.s, pq: win.p * win.q}

	for p := 0; p < win.p; p++ {
		for q := 0; q < win.q; q++ {
			pos := p*win.q + q
			for r := 0; r < win.r; r++ {
				y := p*win.strH + r - win.padH
				if y < 0 || y >= img.h {
					continue
				}
				for s := 0; s < win.s; s++ {
					x := q*win.strW + s - win.padW
					if x < 0 || x >= img.w {
						continue
					}
					tap := src[px.at(0, r, s, pos) : px.at(0, r, s, pos)+img.c]
					to := dst[img.at(0, y, x) : img.at(0, y, x)+img.c]
					for c, v := range tap {
						to[c] += v
					}
				}
			}
		}
	}
}

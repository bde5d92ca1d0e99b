package cpu

import (
	"fmt"

	"github.com/jackzcai/blitz/internal/tensor"
)

// Convolution2DForward computes output[n] = filter ⊛ input[n] for every sample.
//
// Algorithm: unpack + GEMM
//  1. Unpack2D input[n] into the context workspace
//  2. Multiply with the filter viewed as a K × (C·R·S) matrix
//  3. Write the K × (P·Q) (or (P·Q) × K) product straight into output[n]
//
// The filter's layout tag must equal the input's; it is stored (K, C, R, S)
// next to ChannelMajor input and (K, R, S, C) next to SpatialMajor input, so
// that each filter flattens in the same order as a patch. The output may use
// either layout. Samples are processed one after another on the shared
// workspace.
func (b *Backend[T]) Convolution2DForward(input, filter, output *tensor.Tensor[T], ctx *ConvolutionContext[T]) error {
	const op = "conv2d forward"

	if err := ctx.checkInput(op, "input", input); err != nil {
		return err
	}
	if err := ctx.checkFilter(op, "filter", filter, input.Layout()); err != nil {
		return err
	}
	if err := ctx.checkOutput(op, "output", output); err != nil {
		return err
	}

	in, out := input.Layout(), output.Layout()
	img := ctx.image(in)
	px := ctx.patches(in)
	ws := ctx.buffer()
	k := ctx.cfg.Filters

	for n := 0; n < ctx.cfg.Batch; n++ {
		unpack2D(input.Sample(n), ws, img, ctx.win)
		if err := forwardGEMM(ctx.mul, in, out, filter.Data(), ws, output.Sample(n), k, px); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// Convolution2DBackward computes the input gradient of a convolution.
//
// inputGrad is zeroed, then for every sample the unpacked gradient
// filterᵀ · outputGrad[n] is formed in the workspace and scattered back with
// Pack2D. This is the adjoint of Convolution2DForward.
func (b *Backend[T]) Convolution2DBackward(outputGrad, filter, inputGrad *tensor.Tensor[T], ctx *ConvolutionContext[T]) error {
	const op = "conv2d backward"

	if err := ctx.checkOutput(op, "output gradient", outputGrad); err != nil {
		return err
	}
	if err := ctx.checkInput(op, "input gradient", inputGrad); err != nil {
		return err
	}
	if err := ctx.checkFilter(op, "filter", filter, inputGrad.Layout()); err != nil {
		return err
	}

	in, out := inputGrad.Layout(), outputGrad.Layout()
	img := ctx.image(in)
	px := ctx.patches(in)
	ws := ctx.buffer()
	k := ctx.cfg.Filters

	inputGrad.Zero()
	for n := 0; n < ctx.cfg.Batch; n++ {
		if err := backwardGEMM(ctx.mul, in, out, filter.Data(), outputGrad.Sample(n), ws, k, px); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		pack2D(ws, inputGrad.Sample(n), img, ctx.win)
	}
	return nil
}

// Convolution2DUpdate accumulates the filter gradient of a convolution:
//
//	filterGrad += Σ_n outputGrad[n] · Unpack2D(input[n])ᵀ
//
// filterGrad is never cleared here; zero it once per optimizer step.
func (b *Backend[T]) Convolution2DUpdate(input, outputGrad, filterGrad *tensor.Tensor[T], ctx *ConvolutionContext[T]) error {
	const op = "conv2d update"

	if err := ctx.checkInput(op, "input", input); err != nil {
		return err
	}
	if err := ctx.checkOutput(op, "output gradient", outputGrad); err != nil {
		return err
	}
	if err := ctx.checkFilter(op, "filter gradient", filterGrad, input.Layout()); err != nil {
		return err
	}

	in, out := input.Layout(), outputGrad.Layout()
	img := ctx.image(in)
	px := ctx.patches(in)
	ws := ctx.buffer()
	k := ctx.cfg.Filters

	for n := 0; n < ctx.cfg.Batch; n++ {
		unpack2D(input.Sample(n), ws, img, ctx.win)
		if err := updateGEMM(ctx.mul, in, out, outputGrad.Sample(n), ws, filterGrad.Data(), k, px); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// forwardGEMM multiplies one sample's patch matrix u by the filter f.
//
//	NCHW in, NCHW out:  O(K×PQ) = F(K×CRS) · U(CRS×PQ)
//	NCHW in, NHWC out:  O(PQ×K) = Uᵀ · Fᵀ
//	NHWC in, NCHW out:  O(K×PQ) = F(K×RSC) · Uᵀ,  U is PQ×RSC
//	NHWC in, NHWC out:  O(PQ×K) = U · Fᵀ
func forwardGEMM[T tensor.Float](mul Multiplier[T], in, out tensor.Layout, f, u, o []T, k int, px patchIndex) error {
	fm := asMatrix(f, k, px.crs())
	um := asMatrix(u, px.rows(), px.cols())
	switch {
	case in == tensor.ChannelMajor && out == tensor.ChannelMajor:
		return gemm(mul, fm, false, um, false, asMatrix(o, k, px.pq), 1, 0)
	case in == tensor.ChannelMajor && out == tensor.SpatialMajor:
		return gemm(mul, um, true, fm, true, asMatrix(o, px.pq, k), 1, 0)
	case in == tensor.SpatialMajor && out == tensor.ChannelMajor:
		return gemm(mul, fm, false, um, true, asMatrix(o, k, px.pq), 1, 0)
	case in == tensor.SpatialMajor && out == tensor.SpatialMajor:
		return gemm(mul, um, false, fm, true, asMatrix(o, px.pq, k), 1, 0)
	default:
		return fmt.Errorf("layouts %s/%s: %w", in, out, ErrUnsupportedLayout)
	}
}

// backwardGEMM forms one sample's unpacked input gradient u from the output
// gradient g.
//
//	NCHW in, NCHW out:  U(CRS×PQ) = Fᵀ · G(K×PQ)
//	NCHW in, NHWC out:  U(CRS×PQ) = Fᵀ · Gᵀ,  G is PQ×K
//	NHWC in, NCHW out:  U(PQ×RSC) = Gᵀ · F
//	NHWC in, NHWC out:  U(PQ×RSC) = G · F
func backwardGEMM[T tensor.Float](mul Multiplier[T], in, out tensor.Layout, f, g, u []T, k int, px patchIndex) error {
	fm := asMatrix(f, k, px.crs())
	um := asMatrix(u, px.rows(), px.cols())
	switch {
	case in == tensor.ChannelMajor && out == tensor.ChannelMajor:
		return gemm(mul, fm, true, asMatrix(g, k, px.pq), false, um, 1, 0)
	case in == tensor.ChannelMajor && out == tensor.SpatialMajor:
		return gemm(mul, fm, true, asMatrix(g, px.pq, k), true, um, 1, 0)
	case in == tensor.SpatialMajor && out == tensor.ChannelMajor:
		return gemm(mul, asMatrix(g, k, px.pq), true, fm, false, um, 1, 0)
	case in == tensor.SpatialMajor && out == tensor.SpatialMajor:
		return gemm(mul, asMatrix(g, px.pq, k), false, fm, false, um, 1, 0)
	default:
		return fmt.Errorf("layouts %s/%s: %w", in, out, ErrUnsupportedLayout)
	}
}

// updateGEMM accumulates one sample's contribution to the filter gradient df.
//
//	NCHW in, NCHW out:  dF(K×CRS) += G(K×PQ) · Uᵀ
//	NCHW in, NHWC out:  dF += Gᵀ · Uᵀ,  G is PQ×K
//	NHWC in, NCHW out:  dF(K×RSC) += G · U,  U is PQ×RSC
//	NHWC in, NHWC out:  dF += Gᵀ · U
func updateGEMM[T tensor.Float](mul Multiplier[T], in, out tensor.Layout, g, u, df []T, k int, px patchIndex) error {
	dfm := asMatrix(df, k, px.crs())
	um := asMatrix(u, px.rows(), px.cols())
	switch {
	case in == tensor.ChannelMajor && out == tensor.ChannelMajor:
		return gemm(mul, asMatrix(g, k, px.pq), false, um, true, dfm, 1, 1)
	case in == tensor.ChannelMajor && out == tensor.SpatialMajor:
		return gemm(mul, asMatrix(g, px.pq, k), true, um, true, dfm, 1, 1)
	case in == tensor.SpatialMajor && out == tensor.ChannelMajor:
		return gemm(mul, asMatrix(g, k, px.pq), false, um, false, dfm, 1, 1)
	case in == tensor.SpatialMajor && out == tensor.SpatialMajor:
		return gemm(mul, asMatrix(g, px.pq, k), true, um, false, dfm, 1, 1)
	default:
		return fmt.Errorf("layouts %s/%s: %w", in, out, ErrUnsupportedLayout)
	}
}

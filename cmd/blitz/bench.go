package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzcai/blitz/backend/cpu"
	"github.com/jackzcai/blitz/tensor"
)

func newBenchCmd() *cobra.Command {
	bench := &cobra.Command{
		Use:   "bench",
		Short: "Time kernels on synthetic data",
	}
	bench.AddCommand(newBenchConvCmd(), newBenchGemmCmd())
	return bench
}

type convOptions struct {
	batch, channels, height, width int
	filters, filterSize            int
	pad, stride                    int
	algorithm, layout, dtype       string
	iterations                     int
}

func newBenchConvCmd() *cobra.Command {
	var o convOptions

	cmd := &cobra.Command{
		Use:   "conv",
		Short: "Benchmark convolution forward, backward and update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			alg, err := cpu.ParseAlgorithm(o.algorithm)
			if err != nil {
				return err
			}
			layout, err := tensor.ParseLayout(o.layout)
			if err != nil {
				return err
			}
			cfg := cpu.ConvolutionConfig{
				Batch: o.batch, Channels: o.channels, Height: o.height, Width: o.width,
				Filters: o.filters, FilterHeight: o.filterSize, FilterWidth: o.filterSize,
				PadH: o.pad, PadW: o.pad, StrideH: o.stride, StrideW: o.stride,
				Algorithm: alg,
			}

			switch o.dtype {
			case "float32":
				return benchConv[float32](cmd.OutOrStdout(), cfg, layout, o.iterations)
			case "float64":
				return benchConv[float64](cmd.OutOrStdout(), cfg, layout, o.iterations)
			default:
				return fmt.Errorf("unsupported dtype %q (want float32 or float64)", o.dtype)
			}
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.batch, "batch", 8, "batch size N")
	f.IntVar(&o.channels, "channels", 16, "input channels C")
	f.IntVar(&o.height, "height", 32, "input height H")
	f.IntVar(&o.width, "width", 32, "input width W")
	f.IntVar(&o.filters, "filters", 32, "output channels K")
	f.IntVar(&o.filterSize, "filter-size", 3, "filter height and width")
	f.IntVar(&o.pad, "pad", 1, "zero padding on each side")
	f.IntVar(&o.stride, "stride", 1, "stride in both directions")
	f.StringVar(&o.algorithm, "algorithm", "blas", "multiply strategy: blas, naive or blocked")
	f.StringVar(&o.layout, "layout", "nchw", "image layout: nchw or nhwc")
	f.StringVar(&o.dtype, "dtype", "float32", "scalar type: float32 or float64")
	f.IntVar(&o.iterations, "iterations", 10, "timed iterations per kernel")
	return cmd
}

func benchConv[T tensor.Float](w io.Writer, cfg cpu.ConvolutionConfig, layout tensor.Layout, iterations int) error {
	if iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	b := cpu.New[T]()
	ctx, err := b.NewConvolutionContext(cfg)
	if err != nil {
		return err
	}
	defer ctx.Release()

	input := tensor.Zeros[T](ctx.InputShape(layout), layout)
	filter := tensor.Zeros[T](ctx.FilterShape(layout), layout)
	output := tensor.Zeros[T](ctx.OutputShape(layout), layout)
	for _, t := range []*tensor.Tensor[T]{input, filter, output} {
		if err := b.UniformDistribution(t, -1, 1); err != nil {
			return err
		}
	}
	inputGrad := tensor.Zeros[T](ctx.InputShape(layout), layout)
	filterGrad := tensor.Zeros[T](ctx.FilterShape(layout), layout)

	kernels := []struct {
		name string
		run  func() error
	}{
		{"forward", func() error { return b.Convolution2DForward(input, filter, output, ctx) }},
		{"backward", func() error { return b.Convolution2DBackward(output, filter, inputGrad, ctx) }},
		{"update", func() error { return b.Convolution2DUpdate(input, output, filterGrad, ctx) }},
	}

	flops := 2 * float64(cfg.Batch) * float64(cfg.Filters) *
		float64(cfg.Channels*cfg.FilterHeight*cfg.FilterWidth) *
		float64(ctx.OutputHeight()*ctx.OutputWidth())

	slog.Debug("conv benchmark",
		"dtype", b.DType(), "layout", layout, "algorithm", cfg.Algorithm,
		"workspace", ctx.WorkspaceSize(), "iterations", iterations)

	fmt.Fprintf(w, "conv %dx%dx%dx%d * %dx%dx%d pad=%d stride=%d %s %s %s\n",
		cfg.Batch, cfg.Channels, cfg.Height, cfg.Width,
		cfg.Filters, cfg.FilterHeight, cfg.FilterWidth, cfg.PadH, cfg.StrideH,
		layout, cfg.Algorithm, b.DType())
	for _, k := range kernels {
		elapsed, err := timeIt(iterations, k.run)
		if err != nil {
			return fmt.Errorf("%s: %w", k.name, err)
		}
		fmt.Fprintf(w, "  %-8s %12s/op %8.2f GFLOP/s\n", k.name, elapsed, flops/elapsed.Seconds()/1e9)
	}
	return nil
}

type gemmOptions struct {
	m, n, k    int
	algorithm  string
	iterations int
}

func newBenchGemmCmd() *cobra.Command {
	var o gemmOptions

	cmd := &cobra.Command{
		Use:   "gemm",
		Short: "Benchmark a float32 matrix multiply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			alg, err := cpu.ParseAlgorithm(o.algorithm)
			if err != nil {
				return err
			}
			return benchGemm(cmd.OutOrStdout(), o.m, o.n, o.k, alg, o.iterations)
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.m, "m", 256, "rows of A and C")
	f.IntVar(&o.n, "n", 256, "columns of B and C")
	f.IntVar(&o.k, "k", 256, "columns of A, rows of B")
	f.StringVar(&o.algorithm, "algorithm", "blas", "multiply strategy: blas, naive or blocked")
	f.IntVar(&o.iterations, "iterations", 10, "timed iterations")
	return cmd
}

func benchGemm(w io.Writer, m, n, k int, alg cpu.Algorithm, iterations int) error {
	if iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	if m <= 0 || n <= 0 || k <= 0 {
		return fmt.Errorf("matrix dims must be positive, got m=%d n=%d k=%d", m, n, k)
	}
	b := cpu.New[float32]()

	a := tensor.Zeros[float32](tensor.Shape{m, k}, tensor.ChannelMajor)
	bm := tensor.Zeros[float32](tensor.Shape{k, n}, tensor.ChannelMajor)
	c := tensor.Zeros[float32](tensor.Shape{m, n}, tensor.ChannelMajor)
	if err := b.UniformDistribution(a, -1, 1); err != nil {
		return err
	}
	if err := b.UniformDistribution(bm, -1, 1); err != nil {
		return err
	}

	elapsed, err := timeIt(iterations, func() error {
		return b.MatrixMultiply(a, bm, c, false, false, 1, 0, alg)
	})
	if err != nil {
		return err
	}
	flops := 2 * float64(m) * float64(n) * float64(k)
	fmt.Fprintf(w, "gemm %dx%dx%d %s: %s/op %.2f GFLOP/s\n", m, n, k, alg, elapsed, flops/elapsed.Seconds()/1e9)
	return nil
}

// timeIt runs f once to warm up, then returns the mean duration of
// iterations further calls.
func timeIt(iterations int, f func() error) (time.Duration, error) {
	if err := f(); err != nil {
		return 0, err
	}
	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := f(); err != nil {
			return 0, err
		}
	}
	return time.Since(start) / time.Duration(iterations), nil
}

package cpu

import (
	"fmt"
	"log/slog"

	"github.com/jackzcai/blitz/internal/parallel"
	"github.com/jackzcai/blitz/internal/tensor"
)

// ConvolutionConfig describes one 2-D convolution.
//
// Input is N×C×H×W, the filter bank K×C×R×S and the output N×K×P×Q, with
//
//	P = (H + 2*PadH - R)/StrideH + 1
//	Q = (W + 2*PadW - S)/StrideW + 1
type ConvolutionConfig struct {
	Batch    int // N
	Channels int // C
	Height   int // H
	Width    int // W

	Filters      int // K
	FilterHeight int // R
	FilterWidth  int // S

	PadH    int
	PadW    int
	StrideH int
	StrideW int

	Algorithm Algorithm
}

// Validate checks that the configuration describes a non-empty convolution
// with a known algorithm. An unknown algorithm matches both
// ErrUnsupportedAlgorithm and ErrInvalidConfig.
func (c ConvolutionConfig) Validate() error {
	if !c.Algorithm.Valid() {
		return fmt.Errorf("%s: %w: %w", c.Algorithm, ErrUnsupportedAlgorithm, ErrInvalidConfig)
	}
	if c.Batch <= 0 || c.Channels <= 0 || c.Height <= 0 || c.Width <= 0 {
		return fmt.Errorf("input dims N=%d C=%d H=%d W=%d: %w", c.Batch, c.Channels, c.Height, c.Width, ErrInvalidConfig)
	}
	if c.Filters <= 0 || c.FilterHeight <= 0 || c.FilterWidth <= 0 {
		return fmt.Errorf("filter dims K=%d R=%d S=%d: %w", c.Filters, c.FilterHeight, c.FilterWidth, ErrInvalidConfig)
	}
	if c.StrideH <= 0 || c.StrideW <= 0 {
		return fmt.Errorf("stride %dx%d: %w", c.StrideH, c.StrideW, ErrInvalidConfig)
	}
	if c.PadH < 0 || c.PadW < 0 {
		return fmt.Errorf("padding %dx%d: %w", c.PadH, c.PadW, ErrInvalidConfig)
	}
	if c.Height+2*c.PadH < c.FilterHeight || c.Width+2*c.PadW < c.FilterWidth {
		return fmt.Errorf("filter %dx%d larger than padded input %dx%d: %w",
			c.FilterHeight, c.FilterWidth, c.Height+2*c.PadH, c.Width+2*c.PadW, ErrInvalidConfig)
	}
	return nil
}

// OutputHeight returns P.
func (c ConvolutionConfig) OutputHeight() int {
	return outputSize(c.Height, c.PadH, c.FilterHeight, c.StrideH)
}

// OutputWidth returns Q.
func (c ConvolutionConfig) OutputWidth() int {
	return outputSize(c.Width, c.PadW, c.FilterWidth, c.StrideW)
}

// ConvolutionContext holds the derived shape of one convolution
// configuration, the multiply strategy chosen for it and a workspace of
// C·R·S·P·Q scalars shared by the forward, backward and update kernels.
//
// A context is not safe for concurrent use: two kernels running at once on
// the same context overwrite each other's workspace. Use one context per
// goroutine, or serialize the calls.
type ConvolutionContext[T tensor.Float] struct {
	cfg ConvolutionConfig
	win window
	mul Multiplier[T]
	par parallel.Config

	workspace []T
	logger    *slog.Logger
}

// NewConvolutionContext validates cfg and resolves its algorithm.
// The workspace is allocated on first use.
//
// Parallelism and logging come from opts alone; use
// Backend.NewConvolutionContext to inherit a backend's settings.
func NewConvolutionContext[T tensor.Float](cfg ConvolutionConfig, opts ...Option) (*ConvolutionContext[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("convolution context: %w", err)
	}
	o := applyOptions(opts)

	mul, err := newMultiplier[T](cfg.Algorithm, o.par)
	if err != nil {
		return nil, fmt.Errorf("convolution context: %w", err)
	}

	ctx := &ConvolutionContext[T]{
		cfg: cfg,
		win: window{
			r: cfg.FilterHeight, s: cfg.FilterWidth,
			padH: cfg.PadH, padW: cfg.PadW,
			strH: cfg.StrideH, strW: cfg.StrideW,
			p: cfg.OutputHeight(), q: cfg.OutputWidth(),
		},
		mul:    mul,
		par:    o.par,
		logger: o.logger,
	}
	ctx.logger.Debug("convolution context created",
		"algorithm", cfg.Algorithm,
		"input", fmt.Sprintf("%dx%dx%dx%d", cfg.Batch, cfg.Channels, cfg.Height, cfg.Width),
		"filter", fmt.Sprintf("%dx%dx%dx%d", cfg.Filters, cfg.Channels, cfg.FilterHeight, cfg.FilterWidth),
		"output", fmt.Sprintf("%dx%dx%dx%d", cfg.Batch, cfg.Filters, ctx.win.p, ctx.win.q),
		"workspace", ctx.WorkspaceSize())
	return ctx, nil
}

// NewConvolutionContext builds a context that multiplies with the backend's
// parallel config and logs to its logger. Later opts override both.
func (b *Backend[T]) NewConvolutionContext(cfg ConvolutionConfig, opts ...Option) (*ConvolutionContext[T], error) {
	inherited := append([]Option{WithParallel(b.par), WithLogger(b.logger)}, opts...)
	return NewConvolutionContext[T](cfg, inherited...)
}

// NewConvolutionContextFromTensors reads N, C, H, W from input and K, R, S
// from filter, each through its own layout tag.
func NewConvolutionContextFromTensors[T tensor.Float](
	input, filter *tensor.Tensor[T],
	padH, padW, strH, strW int,
	alg Algorithm,
	opts ...Option,
) (*ConvolutionContext[T], error) {
	n, c, h, w, err := input.Dims()
	if err != nil {
		return nil, fmt.Errorf("convolution context: input: %w", err)
	}
	k, fc, r, s, err := filter.FilterDims()
	if err != nil {
		return nil, fmt.Errorf("convolution context: filter: %w", err)
	}
	if fc != c {
		return nil, fmt.Errorf("convolution context: input channels %d != filter channels %d: %w", c, fc, ErrShapeMismatch)
	}
	return NewConvolutionContext[T](ConvolutionConfig{
		Batch: n, Channels: c, Height: h, Width: w,
		Filters: k, FilterHeight: r, FilterWidth: s,
		PadH: padH, PadW: padW, StrideH: strH, StrideW: strW,
		Algorithm: alg,
	}, opts...)
}

// Config returns the configuration the context was built from.
func (ctx *ConvolutionContext[T]) Config() ConvolutionConfig {
	return ctx.cfg
}

// Parallel returns the parallel config the multiply strategy runs with.
func (ctx *ConvolutionContext[T]) Parallel() parallel.Config {
	return ctx.par
}

// Algorithm returns the multiply strategy in use.
func (ctx *ConvolutionContext[T]) Algorithm() Algorithm {
	return ctx.cfg.Algorithm
}

// OutputHeight returns P.
func (ctx *ConvolutionContext[T]) OutputHeight() int {
	return ctx.win.p
}

// OutputWidth returns Q.
func (ctx *ConvolutionContext[T]) OutputWidth() int {
	return ctx.win.q
}

// InputShape returns the physical input shape for layout.
func (ctx *ConvolutionContext[T]) InputShape(layout tensor.Layout) tensor.Shape {
	return layout.ImageShape(ctx.cfg.Batch, ctx.cfg.Channels, ctx.cfg.Height, ctx.cfg.Width)
}

// FilterShape returns the physical filter shape for layout.
func (ctx *ConvolutionContext[T]) FilterShape(layout tensor.Layout) tensor.Shape {
	return layout.FilterShape(ctx.cfg.Filters, ctx.cfg.Channels, ctx.cfg.FilterHeight, ctx.cfg.FilterWidth)
}

// OutputShape returns the physical output shape for layout.
func (ctx *ConvolutionContext[T]) OutputShape(layout tensor.Layout) tensor.Shape {
	return layout.ImageShape(ctx.cfg.Batch, ctx.cfg.Filters, ctx.win.p, ctx.win.q)
}

// WorkspaceSize returns C·R·S·P·Q, the number of scalars in one patch matrix.
func (ctx *ConvolutionContext[T]) WorkspaceSize() int {
	return ctx.cfg.Channels * ctx.cfg.FilterHeight * ctx.cfg.FilterWidth * ctx.win.p * ctx.win.q
}

// SetWorkspace installs buf as the workspace. Only the first WorkspaceSize
// elements are used.
func (ctx *ConvolutionContext[T]) SetWorkspace(buf []T) error {
	if len(buf) < ctx.WorkspaceSize() {
		return fmt.Errorf("convolution context: buffer of %d, need %d: %w", len(buf), ctx.WorkspaceSize(), ErrWorkspaceTooSmall)
	}
	ctx.workspace = buf[:ctx.WorkspaceSize()]
	ctx.logger.Debug("convolution workspace replaced", "size", len(ctx.workspace))
	return nil
}

// Release drops the workspace. The context stays usable and allocates a new
// one on the next kernel call.
func (ctx *ConvolutionContext[T]) Release() {
	ctx.workspace = nil
}

// buffer returns the workspace, allocating it on first use.
func (ctx *ConvolutionContext[T]) buffer() []T {
	if ctx.workspace == nil {
		ctx.workspace = make([]T, ctx.WorkspaceSize())
		ctx.logger.Debug("convolution workspace allocated", "size", len(ctx.workspace))
	}
	return ctx.workspace
}

// patches describes one sample's patch matrix for images in layout.
func (ctx *ConvolutionContext[T]) patches(layout tensor.Layout) patchIndex {
	return patchIndex{
		layout: layout,
		c:      ctx.cfg.Channels,
		r:      ctx.cfg.FilterHeight,
		s:      ctx.cfg.FilterWidth,
		pq:     ctx.win.p * ctx.win.q,
	}
}

func (ctx *ConvolutionContext[T]) image(layout tensor.Layout) imageIndex {
	return imageIndex{layout: layout, c: ctx.cfg.Channels, h: ctx.cfg.Height, w: ctx.cfg.Width}
}

func (ctx *ConvolutionContext[T]) checkInput(op, name string, t *tensor.Tensor[T]) error {
	if err := checkLayout(op, t.Layout()); err != nil {
		return err
	}
	return imageDims(op, name, t, ctx.cfg.Batch, ctx.cfg.Channels, ctx.cfg.Height, ctx.cfg.Width)
}

func (ctx *ConvolutionContext[T]) checkOutput(op, name string, t *tensor.Tensor[T]) error {
	if err := checkLayout(op, t.Layout()); err != nil {
		return err
	}
	return imageDims(op, name, t, ctx.cfg.Batch, ctx.cfg.Filters, ctx.win.p, ctx.win.q)
}

// checkFilter requires the filter's per-filter ordering to match the images
// it is applied to: (C, R, S) next to ChannelMajor, (R, S, C) next to SpatialMajor.
func (ctx *ConvolutionContext[T]) checkFilter(op, name string, t *tensor.Tensor[T], image tensor.Layout) error {
	if t.Layout() != image {
		return fmt.Errorf("%s: %s layout %s does not match image layout %s: %w", op, name, t.Layout(), image, ErrUnsupportedLayout)
	}
	k, c, r, s, err := t.FilterDims()
	if err != nil {
		return fmt.Errorf("%s: %s: %w: %w", op, name, ErrShapeMismatch, err)
	}
	if k != ctx.cfg.Filters || c != ctx.cfg.Channels || r != ctx.cfg.FilterHeight || s != ctx.cfg.FilterWidth {
		return fmt.Errorf("%s: %s is (K=%d,C=%d,R=%d,S=%d), want (K=%d,C=%d,R=%d,S=%d): %w",
			op, name, k, c, r, s, ctx.cfg.Filters, ctx.cfg.Channels, ctx.cfg.FilterHeight, ctx.cfg.FilterWidth, ErrShapeMismatch)
	}
	return nil
}

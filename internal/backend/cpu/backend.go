// Package cpu implements the blitz CPU backend: convolution, pooling, matrix
// multiplication and the elementwise, loss and optimizer kernels around them.
package cpu

import (
	"log/slog"
	"sync"

	"golang.org/x/exp/rand"

	"github.com/jackzcai/blitz/internal/parallel"
	"github.com/jackzcai/blitz/internal/tensor"
)

// DefaultSeed seeds the random source of backends created without WithSeed.
const DefaultSeed uint64 = 0x5eed

// Backend runs kernels over tensors of scalar type T.
//
// All kernels are synchronous: they return only after every write is
// visible. A Backend may be shared between goroutines, but a
// ConvolutionContext may not (see ConvolutionContext).
type Backend[T tensor.Float] struct {
	par    parallel.Config
	logger *slog.Logger

	mu  sync.Mutex // guards src
	src rand.Source
}

// Option configures a Backend or a ConvolutionContext.
type Option func(*options)

type options struct {
	par    parallel.Config
	logger *slog.Logger
	seed   uint64
}

func defaultOptions() options {
	return options{
		par:    parallel.DefaultConfig(),
		logger: slog.Default(),
		seed:   DefaultSeed,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithParallel sets the intra-kernel parallelism.
func WithParallel(cfg parallel.Config) Option {
	return func(o *options) { o.par = cfg }
}

// WithLogger sets the logger used for debug diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSeed seeds the source used by the distribution kernels.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a new CPU backend.
func New[T tensor.Float](opts ...Option) *Backend[T] {
	o := applyOptions(opts)
	b := &Backend[T]{
		par:    o.par,
		logger: o.logger,
		src:    rand.NewSource(o.seed),
	}
	b.logger.Debug("cpu backend created",
		"dtype", b.DType(),
		"parallel", o.par.Enabled,
		"workers", o.par.NumWorkers,
		"seed", o.seed)
	return b
}

// Name returns the backend name.
func (b *Backend[T]) Name() string {
	return "CPU"
}

// DType returns the scalar type the backend computes in.
func (b *Backend[T]) DType() tensor.DataType {
	return tensor.DataTypeOf[T]()
}

// Parallel returns the intra-kernel parallelism config.
func (b *Backend[T]) Parallel() parallel.Config {
	return b.par
}

// forEach runs f(i) for i in [0, n) on the backend's workers.
func (b *Backend[T]) forEach(n int, f func(i int)) {
	parallel.For(n, f, b.par)
}

// forRange runs f over contiguous sub-ranges of [0, n) on the backend's workers.
func (b *Backend[T]) forRange(n int, f func(start, end int)) {
	parallel.ForRange(n, f, b.par)
}

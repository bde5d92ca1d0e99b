// Copyright 2026 Blitz Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"log/slog"

	internalcpu "github.com/jackzcai/blitz/internal/backend/cpu"
	"github.com/jackzcai/blitz/internal/parallel"
	"github.com/jackzcai/blitz/tensor"
)

// Backend runs kernels over tensors of scalar type T.
type Backend[T tensor.Float] = internalcpu.Backend[T]

// ConvolutionConfig describes one 2-D convolution.
type ConvolutionConfig = internalcpu.ConvolutionConfig

// ConvolutionContext holds the derived shape, multiply strategy and
// workspace of one convolution configuration.
type ConvolutionContext[T tensor.Float] = internalcpu.ConvolutionContext[T]

// Algorithm selects the matrix-multiply strategy.
type Algorithm = internalcpu.Algorithm

// Multiply strategies.
const (
	AlgorithmBLASGEMM    Algorithm = internalcpu.AlgorithmBLASGEMM
	AlgorithmNaiveGEMM   Algorithm = internalcpu.AlgorithmNaiveGEMM
	AlgorithmBlockedGEMM Algorithm = internalcpu.AlgorithmBlockedGEMM
)

// Option configures a Backend or a ConvolutionContext.
type Option = internalcpu.Option

// ParallelConfig controls intra-kernel parallelism.
type ParallelConfig = parallel.Config

// DefaultSeed seeds the random source of backends created without WithSeed.
const DefaultSeed = internalcpu.DefaultSeed

// Errors returned by the kernels.
var (
	ErrShapeMismatch        = internalcpu.ErrShapeMismatch
	ErrInvalidConfig        = internalcpu.ErrInvalidConfig
	ErrUnsupportedAlgorithm = internalcpu.ErrUnsupportedAlgorithm
	ErrUnsupportedLayout    = internalcpu.ErrUnsupportedLayout
	ErrWorkspaceTooSmall    = internalcpu.ErrWorkspaceTooSmall
	ErrInvalidIndex         = internalcpu.ErrInvalidIndex
)

// New creates a CPU backend.
//
// Example:
//
//	b := cpu.New[float64](cpu.WithParallel(cpu.SequentialParallel()))
func New[T tensor.Float](opts ...Option) *Backend[T] {
	return internalcpu.New[T](opts...)
}

// NewConvolutionContext validates cfg and resolves its algorithm.
func NewConvolutionContext[T tensor.Float](cfg ConvolutionConfig, opts ...Option) (*ConvolutionContext[T], error) {
	return internalcpu.NewConvolutionContext[T](cfg, opts...)
}

// NewConvolutionContextFromTensors reads the convolution dims from input and
// filter through their layout tags.
func NewConvolutionContextFromTensors[T tensor.Float](
	input, filter *tensor.Tensor[T],
	padH, padW, strH, strW int,
	alg Algorithm,
	opts ...Option,
) (*ConvolutionContext[T], error) {
	return internalcpu.NewConvolutionContextFromTensors(input, filter, padH, padW, strH, strW, alg, opts...)
}

// ParseAlgorithm maps "blas", "naive" or "blocked" to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	return internalcpu.ParseAlgorithm(name)
}

// WithParallel sets the intra-kernel parallelism.
func WithParallel(cfg ParallelConfig) Option {
	return internalcpu.WithParallel(cfg)
}

// WithLogger sets the logger used for debug diagnostics.
// A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return internalcpu.WithLogger(logger)
}

// WithSeed seeds the source used by the distribution kernels.
func WithSeed(seed uint64) Option {
	return internalcpu.WithSeed(seed)
}

// DefaultParallel returns a config sized to GOMAXPROCS.
func DefaultParallel() ParallelConfig {
	return parallel.DefaultConfig()
}

// SequentialParallel returns a config that keeps every kernel on the
// calling goroutine.
func SequentialParallel() ParallelConfig {
	return parallel.Sequential()
}

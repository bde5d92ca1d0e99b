package cpu

import (
	"bytes"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/jackzcai/blitz/internal/parallel"
	"github.com/jackzcai/blitz/internal/tensor"
)

var layouts = []tensor.Layout{tensor.ChannelMajor, tensor.SpatialMajor}

var algorithms = []Algorithm{AlgorithmBLASGEMM, AlgorithmNaiveGEMM, AlgorithmBlockedGEMM}

// testParallel forces work onto several goroutines even for tiny tensors.
var testParallel = parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

func newTestBackend() *Backend[float64] {
	return New[float64](WithParallel(testParallel))
}

func randTensor(rng *rand.Rand, shape tensor.Shape, layout tensor.Layout) *tensor.Tensor[float64] {
	t := tensor.Zeros[float64](shape, layout)
	for i := range t.Data() {
		t.Data()[i] = rng.Float64()*2 - 1
	}
	return t
}

// imageAt reads logical (n, c, y, x) of an image or filter tensor in either layout.
func imageAt(t *tensor.Tensor[float64], n, c, y, x int) float64 {
	_, ch, h, w, err := t.Dims()
	if err != nil {
		panic(err)
	}
	ix := imageIndex{layout: t.Layout(), c: ch, h: h, w: w}
	return t.Sample(n)[ix.at(c, y, x)]
}

func dot(a, b *tensor.Tensor[float64]) float64 {
	return floats.Dot(a.Data(), b.Data())
}

// TestBackend_New tests backend creation.
func TestBackend_New(t *testing.T) {
	b := New[float32]()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.Float32, b.DType())
	assert.Equal(t, parallel.DefaultConfig(), b.Parallel())

	d := New[float64](WithParallel(parallel.Sequential()))
	assert.Equal(t, tensor.Float64, d.DType())
	assert.False(t, d.Parallel().Enabled)
}

// TestBackend_WithLogger tests that a nil logger keeps the default.
func TestBackend_WithLogger(t *testing.T) {
	o := applyOptions([]Option{WithLogger(nil)})
	assert.Same(t, slog.Default(), o.logger)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o = applyOptions([]Option{WithLogger(logger), WithSeed(7)})
	assert.Same(t, logger, o.logger)
	assert.Equal(t, uint64(7), o.seed)
}

// TestBackend_Float32Kernels runs a convolution in single precision.
func TestBackend_Float32Kernels(t *testing.T) {
	b := New[float32]()

	input := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3}, tensor.ChannelMajor)
	filter := tensor.MustFromSlice([]float32{1, 0, 0, 1}, tensor.Shape{1, 1, 2, 2}, tensor.ChannelMajor)

	ctx, err := NewConvolutionContextFromTensors(input, filter, 0, 0, 1, 1, AlgorithmBLASGEMM)
	require.NoError(t, err)
	output := tensor.Zeros[float32](ctx.OutputShape(tensor.ChannelMajor), tensor.ChannelMajor)

	require.NoError(t, b.Convolution2DForward(input, filter, output, ctx))
	assert.Equal(t, []float32{6, 8, 12, 14}, output.Data())
}

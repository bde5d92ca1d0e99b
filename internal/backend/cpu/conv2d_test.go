package cpu

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzcai/blitz/internal/tensor"
)

// referenceConv computes the convolution directly from its definition and
// returns it in NCHW order.
func referenceConv(input, filter *tensor.Tensor[float64], cfg ConvolutionConfig) []float64 {
	P, Q := cfg.OutputHeight(), cfg.OutputWidth()
	out := make([]float64, 0, cfg.Batch*cfg.Filters*P*Q)
	for n := 0; n < cfg.Batch; n++ {
		for k := 0; k < cfg.Filters; k++ {
			for p := 0; p < P; p++ {
				for q := 0; q < Q; q++ {
					var sum float64
					for c := 0; c < cfg.Channels; c++ {
						for r := 0; r < cfg.FilterHeight; r++ {
							y := p*cfg.StrideH + r - cfg.PadH
							if y < 0 || y >= cfg.Height {
								continue
							}
							for s := 0; s < cfg.FilterWidth; s++ {
								x := q*cfg.StrideW + s - cfg.PadW
								if x < 0 || x >= cfg.Width {
									continue
								}
								sum += imageAt(filter, k, c, r, s) * imageAt(input, n, c, y, x)
							}
						}
					}
					out = append(out, sum)
				}
			}
		}
	}
	return out
}

// asNCHW reads an image tensor of either layout in NCHW order.
func asNCHW(t *tensor.Tensor[float64]) []float64 {
	n, c, h, w, err := t.Dims()
	if err != nil {
		panic(err)
	}
	out := make([]float64, 0, t.NumElements())
	for i := 0; i < n; i++ {
		for ch := 0; ch < c; ch++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					out = append(out, imageAt(t, i, ch, y, x))
				}
			}
		}
	}
	return out
}

var convConfigs = []struct {
	name string
	cfg  ConvolutionConfig
}{
	{"3x3 same", ConvolutionConfig{Batch: 2, Channels: 3, Height: 6, Width: 6, Filters: 4, FilterHeight: 3, FilterWidth: 3, PadH: 1, PadW: 1, StrideH: 1, StrideW: 1}},
	{"strided", ConvolutionConfig{Batch: 1, Channels: 2, Height: 7, Width: 9, Filters: 3, FilterHeight: 3, FilterWidth: 2, PadH: 0, PadW: 1, StrideH: 2, StrideW: 3}},
	{"1x1", ConvolutionConfig{Batch: 3, Channels: 5, Height: 4, Width: 3, Filters: 2, FilterHeight: 1, FilterWidth: 1, StrideH: 1, StrideW: 1}},
	{"full window", ConvolutionConfig{Batch: 2, Channels: 1, Height: 4, Width: 5, Filters: 3, FilterHeight: 4, FilterWidth: 5, StrideH: 1, StrideW: 1}},
}

// TestConv2D_BasicForward tests a single 2x2 diagonal kernel on a 3x3 image.
func TestConv2D_BasicForward(t *testing.T) {
	b := newTestBackend()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := tensor.MustFromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3}, tensor.ChannelMajor)
	// 1 0
	// 0 1
	filter := tensor.MustFromSlice([]float64{1, 0, 0, 1}, tensor.Shape{1, 1, 2, 2}, tensor.ChannelMajor)

	ctx, err := NewConvolutionContextFromTensors(input, filter, 0, 0, 1, 1, AlgorithmNaiveGEMM)
	require.NoError(t, err)
	require.Equal(t, 2, ctx.OutputHeight())
	require.Equal(t, 2, ctx.OutputWidth())

	output := tensor.Zeros[float64](ctx.OutputShape(tensor.ChannelMajor), tensor.ChannelMajor)
	require.NoError(t, b.Convolution2DForward(input, filter, output, ctx))

	// Diagonal sums: 1+5, 2+6, 4+8, 5+9.
	assert.Equal(t, []float64{6, 8, 12, 14}, output.Data())
}

// TestConv2D_PointwiseMix tests a 1x1 convolution mixing two channels.
func TestConv2D_PointwiseMix(t *testing.T) {
	b := newTestBackend()

	data := make([]float64, 18)
	for i := range data {
		data[i] = float64(i + 1)
	}
	input := tensor.MustFromSlice(data, tensor.Shape{1, 2, 3, 3}, tensor.ChannelMajor)
	// Filter k0 copies channel 0, k1 copies channel 1, k2 takes their difference.
	filter := tensor.MustFromSlice([]float64{1, 0, 0, 1, 1, -1}, tensor.Shape{3, 2, 1, 1}, tensor.ChannelMajor)

	want := append(append([]float64{}, data...), -9, -9, -9, -9, -9, -9, -9, -9, -9)

	for _, alg := range algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			ctx, err := NewConvolutionContextFromTensors(input, filter, 0, 0, 1, 1, alg)
			require.NoError(t, err)
			output := tensor.Zeros[float64](tensor.Shape{1, 3, 3, 3}, tensor.ChannelMajor)
			require.NoError(t, b.Convolution2DForward(input, filter, output, ctx))
			assert.Equal(t, want, output.Data())
		})
	}
}

// TestConv2D_MatchesReference checks every algorithm and layout pair against
// the direct definition.
func TestConv2D_MatchesReference(t *testing.T) {
	b := newTestBackend()
	rng := rand.New(rand.NewPCG(7, 8))

	for _, tc := range convConfigs {
		for _, in := range layouts {
			input := randTensor(rng, in.ImageShape(tc.cfg.Batch, tc.cfg.Channels, tc.cfg.Height, tc.cfg.Width), in)
			filter := randTensor(rng, in.FilterShape(tc.cfg.Filters, tc.cfg.Channels, tc.cfg.FilterHeight, tc.cfg.FilterWidth), in)
			want := referenceConv(input, filter, tc.cfg)

			for _, out := range layouts {
				for _, alg := range algorithms {
					t.Run(fmt.Sprintf("%s/%s-%s/%s", tc.name, in, out, alg), func(t *testing.T) {
						cfg := tc.cfg
						cfg.Algorithm = alg
						ctx, err := NewConvolutionContext[float64](cfg)
						require.NoError(t, err)

						output := tensor.Full(ctx.OutputShape(out), 123.0, out)
						require.NoError(t, b.Convolution2DForward(input, filter, output, ctx))
						assert.InDeltaSlice(t, want, asNCHW(output), 1e-10)
					})
				}
			}
		}
	}
}

// TestConv2D_Linearity checks conv(a·x + y) == a·conv(x) + conv(y).
func TestConv2D_Linearity(t *testing.T) {
	b := newTestBackend()
	rng := rand.New(rand.NewPCG(9, 10))
	cfg := convConfigs[0].cfg

	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			ctx, err := NewConvolutionContext[float64](cfg)
			require.NoError(t, err)

			inShape := ctx.InputShape(layout)
			x := randTensor(rng, inShape, layout)
			y := randTensor(rng, inShape, layout)
			filter := randTensor(rng, ctx.FilterShape(layout), layout)

			const alpha = 2.5
			mix := tensor.Zeros[float64](inShape, layout)
			require.NoError(t, b.MultiplyScalar(x, mix, alpha))
			require.NoError(t, b.Add(mix, y, mix))

			cx := tensor.Zeros[float64](ctx.OutputShape(layout), layout)
			cy := tensor.Zeros[float64](ctx.OutputShape(layout), layout)
			cmix := tensor.Zeros[float64](ctx.OutputShape(layout), layout)
			require.NoError(t, b.Convolution2DForward(x, filter, cx, ctx))
			require.NoError(t, b.Convolution2DForward(y, filter, cy, ctx))
			require.NoError(t, b.Convolution2DForward(mix, filter, cmix, ctx))

			want := make([]float64, cx.NumElements())
			for i := range want {
				want[i] = alpha*cx.Data()[i] + cy.Data()[i]
			}
			assert.InDeltaSlice(t, want, cmix.Data(), 1e-10)
		})
	}
}

// TestConv2D_BackwardAdjoint checks <conv(x), g> == <x, backward(g)>.
func TestConv2D_BackwardAdjoint(t *testing.T) {
	b := newTestBackend()
	rng := rand.New(rand.NewPCG(11, 12))

	for _, tc := range convConfigs {
		for _, in := range layouts {
			for _, out := range layouts {
				for _, alg := range algorithms {
					t.Run(fmt.Sprintf("%s/%s-%s/%s", tc.name, in, out, alg), func(t *testing.T) {
						cfg := tc.cfg
						cfg.Algorithm = alg
						ctx, err := NewConvolutionContext[float64](cfg)
						require.NoError(t, err)

						x := randTensor(rng, ctx.InputShape(in), in)
						filter := randTensor(rng, ctx.FilterShape(in), in)
						g := randTensor(rng, ctx.OutputShape(out), out)

						y := tensor.Zeros[float64](ctx.OutputShape(out), out)
						require.NoError(t, b.Convolution2DForward(x, filter, y, ctx))

						// Stale contents must not leak into the result.
						dx := tensor.Full(ctx.InputShape(in), 5.0, in)
						require.NoError(t, b.Convolution2DBackward(g, filter, dx, ctx))

						assert.InDelta(t, dot(y, g), dot(x, dx), 1e-9)
					})
				}
			}
		}
	}
}

// TestConv2D_UpdateAdjoint checks <dF, F'> == <conv(x; F'), g>, i.e. the
// update kernel is the gradient of the forward pass with respect to the filter.
func TestConv2D_UpdateAdjoint(t *testing.T) {
	b := newTestBackend()
	rng := rand.New(rand.NewPCG(13, 14))

	for _, tc := range convConfigs {
		for _, in := range layouts {
			for _, out := range layouts {
				t.Run(fmt.Sprintf("%s/%s-%s", tc.name, in, out), func(t *testing.T) {
					ctx, err := NewConvolutionContext[float64](tc.cfg)
					require.NoError(t, err)

					x := randTensor(rng, ctx.InputShape(in), in)
					probe := randTensor(rng, ctx.FilterShape(in), in)
					g := randTensor(rng, ctx.OutputShape(out), out)

					y := tensor.Zeros[float64](ctx.OutputShape(out), out)
					require.NoError(t, b.Convolution2DForward(x, probe, y, ctx))

					df := tensor.Zeros[float64](ctx.FilterShape(in), in)
					require.NoError(t, b.Convolution2DUpdate(x, g, df, ctx))

					assert.InDelta(t, dot(y, g), dot(df, probe), 1e-9)
				})
			}
		}
	}
}

// TestConv2D_UpdateAccumulates tests that filterGrad is never cleared.
func TestConv2D_UpdateAccumulates(t *testing.T) {
	b := newTestBackend()
	rng := rand.New(rand.NewPCG(15, 16))

	ctx, err := NewConvolutionContext[float64](convConfigs[1].cfg)
	require.NoError(t, err)

	x := randTensor(rng, ctx.InputShape(tensor.ChannelMajor), tensor.ChannelMajor)
	g := randTensor(rng, ctx.OutputShape(tensor.ChannelMajor), tensor.ChannelMajor)

	once := tensor.Zeros[float64](ctx.FilterShape(tensor.ChannelMajor), tensor.ChannelMajor)
	require.NoError(t, b.Convolution2DUpdate(x, g, once, ctx))

	twice := tensor.Zeros[float64](ctx.FilterShape(tensor.ChannelMajor), tensor.ChannelMajor)
	require.NoError(t, b.Convolution2DUpdate(x, g, twice, ctx))
	require.NoError(t, b.Convolution2DUpdate(x, g, twice, ctx))

	for i, v := range once.Data() {
		assert.InDelta(t, 2*v, twice.Data()[i], 1e-10)
	}
}

// TestConv2D_FailureLeavesOutputsUntouched tests that validation happens
// before any write.
func TestConv2D_FailureLeavesOutputsUntouched(t *testing.T) {
	b := newTestBackend()
	cfg := convConfigs[0].cfg

	ctx, err := NewConvolutionContext[float64](cfg)
	require.NoError(t, err)

	input := tensor.Full(ctx.InputShape(tensor.ChannelMajor), 1.0, tensor.ChannelMajor)
	filter := tensor.Full(ctx.FilterShape(tensor.ChannelMajor), 1.0, tensor.ChannelMajor)
	smFilter := tensor.Full(ctx.FilterShape(tensor.SpatialMajor), 1.0, tensor.SpatialMajor)
	output := tensor.Full(ctx.OutputShape(tensor.ChannelMajor), 7.0, tensor.ChannelMajor)
	wrongOut := tensor.Full(tensor.Shape{cfg.Batch, cfg.Filters, 5, 5}, 7.0, tensor.ChannelMajor)
	inputGrad := tensor.Full(ctx.InputShape(tensor.ChannelMajor), 7.0, tensor.ChannelMajor)
	filterGrad := tensor.Full(tensor.Shape{cfg.Filters, cfg.Channels, 2, 2}, 7.0, tensor.ChannelMajor)

	require.ErrorIs(t, b.Convolution2DForward(input, smFilter, output, ctx), ErrUnsupportedLayout)
	require.ErrorIs(t, b.Convolution2DForward(input, filter, wrongOut, ctx), ErrShapeMismatch)
	require.ErrorIs(t, b.Convolution2DBackward(wrongOut, filter, inputGrad, ctx), ErrShapeMismatch)
	require.ErrorIs(t, b.Convolution2DUpdate(input, output, filterGrad, ctx), ErrShapeMismatch)

	for _, tt := range []*tensor.Tensor[float64]{output, wrongOut, inputGrad, filterGrad} {
		for _, v := range tt.Data() {
			require.Equal(t, 7.0, v)
		}
	}
	assert.Nil(t, ctx.workspace, "workspace allocated by a failed call")
}

// TestConv2D_CallerWorkspace tests convolution on a caller-provided buffer.
func TestConv2D_CallerWorkspace(t *testing.T) {
	b := newTestBackend()
	rng := rand.New(rand.NewPCG(17, 18))
	cfg := convConfigs[1].cfg

	ctx, err := NewConvolutionContext[float64](cfg)
	require.NoError(t, err)

	buf := make([]float64, ctx.WorkspaceSize()+10)
	require.NoError(t, ctx.SetWorkspace(buf))

	input := randTensor(rng, ctx.InputShape(tensor.SpatialMajor), tensor.SpatialMajor)
	filter := randTensor(rng, ctx.FilterShape(tensor.SpatialMajor), tensor.SpatialMajor)
	output := tensor.Zeros[float64](ctx.OutputShape(tensor.SpatialMajor), tensor.SpatialMajor)
	require.NoError(t, b.Convolution2DForward(input, filter, output, ctx))

	assert.InDeltaSlice(t, referenceConv(input, filter, cfg), asNCHW(output), 1e-10)
	assert.Equal(t, make([]float64, 10), buf[ctx.WorkspaceSize():], "wrote past the workspace")
}

func BenchmarkConv2DForward(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 1))
	cfg := ConvolutionConfig{
		Batch: 8, Channels: 16, Height: 32, Width: 32,
		Filters: 32, FilterHeight: 3, FilterWidth: 3,
		PadH: 1, PadW: 1, StrideH: 1, StrideW: 1,
	}
	backend := New[float64]()

	for _, layout := range layouts {
		for _, alg := range algorithms {
			cfg.Algorithm = alg
			ctx, err := NewConvolutionContext[float64](cfg)
			require.NoError(b, err)

			input := randTensor(rng, ctx.InputShape(layout), layout)
			filter := randTensor(rng, ctx.FilterShape(layout), layout)
			output := tensor.Zeros[float64](ctx.OutputShape(layout), layout)

			b.Run(fmt.Sprintf("%s/%s", layout, alg), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if err := backend.Convolution2DForward(input, filter, output, ctx); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

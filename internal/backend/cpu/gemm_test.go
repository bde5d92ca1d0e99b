package cpu

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzcai/blitz/internal/tensor"
)

func randSlice(rng *rand.Rand, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = rng.Float64()*2 - 1
	}
	return s
}

// TestGemm_StrategiesAgree compares every strategy against the naive one for
// all transpose combinations.
func TestGemm_StrategiesAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	const m, n, k = 37, 29, 41

	strategies := map[string]Multiplier[float64]{
		"blas":          blasMultiplier[float64]{},
		"blocked":       blockedMultiplier[float64]{block: defaultBlockSize, par: testParallel},
		"blocked small": blockedMultiplier[float64]{block: 8, par: testParallel},
	}

	for _, transA := range []bool{false, true} {
		for _, transB := range []bool{false, true} {
			for _, ab := range [][2]float64{{1, 0}, {1, 1}, {-0.5, 2}} {
				alpha, beta := ab[0], ab[1]

				a := randSlice(rng, m*k)
				bm := randSlice(rng, k*n)
				lda, ldb := k, n
				if transA {
					lda = m
				}
				if transB {
					ldb = k
				}
				c0 := randSlice(rng, m*n)

				want := append([]float64(nil), c0...)
				naiveMultiplier[float64]{}.Gemm(transA, transB, m, n, k, alpha, a, lda, bm, ldb, beta, want, n)

				for name, mul := range strategies {
					t.Run(fmt.Sprintf("%s/tA=%t/tB=%t/alpha=%g/beta=%g", name, transA, transB, alpha, beta), func(t *testing.T) {
						got := append([]float64(nil), c0...)
						mul.Gemm(transA, transB, m, n, k, alpha, a, lda, bm, ldb, beta, got, n)
						assert.InDeltaSlice(t, want, got, 1e-10)
					})
				}
			}
		}
	}
}

// TestGemm_BetaZeroIgnoresOutput tests that NaN in C does not leak through
// when beta is zero.
func TestGemm_BetaZeroIgnoresOutput(t *testing.T) {
	b := newTestBackend()

	left := tensor.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.ChannelMajor)
	right := tensor.MustFromSlice([]float64{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2}, tensor.ChannelMajor)

	for _, alg := range algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			out := tensor.Full(tensor.Shape{2, 2}, math.NaN(), tensor.ChannelMajor)
			require.NoError(t, b.MatrixMultiply(left, right, out, false, false, 1, 0, alg))
			assert.Equal(t, []float64{58, 64, 139, 154}, out.Data())
		})
	}
}

// TestMatrixMultiply_Accumulate tests beta = 1 and transposed operands.
func TestMatrixMultiply_Accumulate(t *testing.T) {
	b := newTestBackend()

	// leftᵀ is [[1,2,3],[4,5,6]], rightᵀ is [[7,8],[9,10],[11,12]].
	left := tensor.MustFromSlice([]float64{1, 4, 2, 5, 3, 6}, tensor.Shape{3, 2}, tensor.ChannelMajor)
	right := tensor.MustFromSlice([]float64{7, 9, 11, 8, 10, 12}, tensor.Shape{2, 3}, tensor.ChannelMajor)

	for _, alg := range algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			out := tensor.Full[float64](tensor.Shape{2, 2}, 1, tensor.ChannelMajor)
			require.NoError(t, b.MatrixMultiply(left, right, out, true, true, 2, 1, alg))
			assert.Equal(t, []float64{117, 129, 279, 309}, out.Data())
		})
	}
}

// TestMatrixMultiply_Errors tests shape and algorithm validation.
func TestMatrixMultiply_Errors(t *testing.T) {
	b := newTestBackend()

	a := tensor.Zeros[float64](tensor.Shape{2, 3}, tensor.ChannelMajor)
	bm := tensor.Zeros[float64](tensor.Shape{3, 4}, tensor.ChannelMajor)
	out := tensor.Full[float64](tensor.Shape{2, 4}, 9, tensor.ChannelMajor)

	err := b.MatrixMultiply(a, bm, out, false, false, 1, 0, Algorithm(99))
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, []float64{9, 9, 9, 9, 9, 9, 9, 9}, out.Data())

	err = b.MatrixMultiply(a, bm, out, true, false, 1, 0, AlgorithmNaiveGEMM)
	require.ErrorIs(t, err, ErrShapeMismatch)

	wrong := tensor.Zeros[float64](tensor.Shape{2, 3}, tensor.ChannelMajor)
	err = b.MatrixMultiply(a, bm, wrong, false, false, 1, 0, AlgorithmNaiveGEMM)
	require.ErrorIs(t, err, ErrShapeMismatch)

	rank3 := tensor.Zeros[float64](tensor.Shape{1, 2, 3}, tensor.ChannelMajor)
	err = b.MatrixMultiply(rank3, bm, out, false, false, 1, 0, AlgorithmNaiveGEMM)
	require.ErrorIs(t, err, ErrShapeMismatch)

	for _, v := range out.Data() {
		assert.Equal(t, 9.0, v)
	}
}

// TestTranspose2D tests the rank-2 transpose.
func TestTranspose2D(t *testing.T) {
	b := newTestBackend()

	in := tensor.Arange[float64](tensor.Shape{2, 3}, tensor.ChannelMajor)
	out := tensor.Zeros[float64](tensor.Shape{3, 2}, tensor.ChannelMajor)
	require.NoError(t, b.Transpose2D(in, out))
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, out.Data())

	require.ErrorIs(t, b.Transpose2D(in, tensor.Zeros[float64](tensor.Shape{2, 3}, tensor.ChannelMajor)), ErrShapeMismatch)
}

// TestParseAlgorithm tests name parsing and round trip through String.
func TestParseAlgorithm(t *testing.T) {
	for _, alg := range algorithms {
		got, err := ParseAlgorithm(alg.String())
		require.NoError(t, err)
		assert.Equal(t, alg, got)
	}

	got, err := ParseAlgorithm("GEMM")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmBLASGEMM, got)

	_, err = ParseAlgorithm("winograd")
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	require.ErrorIs(t, err, ErrInvalidConfig)

	assert.True(t, AlgorithmBlockedGEMM.Valid())
	assert.False(t, Algorithm(7).Valid())

	assert.Equal(t, "Algorithm(7)", Algorithm(7).String())
}

// TestBlockSizeForCPU tests that the tile size is one of the known values.
func TestBlockSizeForCPU(t *testing.T) {
	assert.Contains(t, []int{32, 48, 64}, blockSizeForCPU())
}

func BenchmarkGemm(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 1))
	sizes := []int{64, 128, 256}

	for _, size := range sizes {
		a := randSlice(rng, size*size)
		bm := randSlice(rng, size*size)
		c := make([]float64, size*size)

		for _, alg := range algorithms {
			mul, err := newMultiplier[float64](alg, testParallel)
			require.NoError(b, err)
			b.Run(fmt.Sprintf("%s/%d", alg, size), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					mul.Gemm(false, false, size, size, size, 1, a, size, bm, size, 0, c, size)
				}
			})
		}
	}
}

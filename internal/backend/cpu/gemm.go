package cpu

import (
	"fmt"
	"strings"

	"golang.org/x/sys/cpu"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/jackzcai/blitz/internal/parallel"
	"github.com/jackzcai/blitz/internal/tensor"
)

// Algorithm selects the matrix-multiply strategy.
type Algorithm int

// Supported algorithms. The zero value is the default.
const (
	// AlgorithmBLASGEMM uses gonum's BLAS Sgemm/Dgemm.
	AlgorithmBLASGEMM Algorithm = iota
	// AlgorithmNaiveGEMM is the reference triple loop.
	AlgorithmNaiveGEMM
	// AlgorithmBlockedGEMM tiles the product for cache reuse and splits
	// row strips across workers.
	AlgorithmBlockedGEMM
)

// String returns the algorithm's short name.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmBLASGEMM:
		return "blas"
	case AlgorithmNaiveGEMM:
		return "naive"
	case AlgorithmBlockedGEMM:
		return "blocked"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// Valid reports whether a names a known strategy.
func (a Algorithm) Valid() bool {
	return a >= AlgorithmBLASGEMM && a <= AlgorithmBlockedGEMM
}

// ParseAlgorithm maps a short name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(name) {
	case "blas", "gemm", "":
		return AlgorithmBLASGEMM, nil
	case "naive":
		return AlgorithmNaiveGEMM, nil
	case "blocked":
		return AlgorithmBlockedGEMM, nil
	default:
		return 0, fmt.Errorf("algorithm %q: %w: %w", name, ErrUnsupportedAlgorithm, ErrInvalidConfig)
	}
}

// Multiplier computes C = alpha·op(A)·op(B) + beta·C on row-major storage,
// op transposing its operand when the matching flag is set. op(A) is m×k,
// op(B) is k×n and C is m×n; lda, ldb and ldc are the row strides of the
// stored A, B and C.
//
// beta == 0 means C is write-only: its prior contents, NaN included, are
// never read.
type Multiplier[T tensor.Float] interface {
	Gemm(transA, transB bool, m, n, k int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int)
}

// newMultiplier resolves an Algorithm to its strategy.
func newMultiplier[T tensor.Float](alg Algorithm, par parallel.Config) (Multiplier[T], error) {
	switch alg {
	case AlgorithmBLASGEMM:
		return blasMultiplier[T]{}, nil
	case AlgorithmNaiveGEMM:
		return naiveMultiplier[T]{}, nil
	case AlgorithmBlockedGEMM:
		return blockedMultiplier[T]{block: defaultBlockSize, par: par}, nil
	default:
		return nil, fmt.Errorf("%s: %w: %w", alg, ErrUnsupportedAlgorithm, ErrInvalidConfig)
	}
}

type blasMultiplier[T tensor.Float] struct{}

func blasTranspose(trans bool) blas.Transpose {
	if trans {
		return blas.Trans
	}
	return blas.NoTrans
}

func (blasMultiplier[T]) Gemm(transA, transB bool, m, n, k int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int) {
	switch cc := any(c).(type) {
	case []float32:
		blas32.Implementation().Sgemm(blasTranspose(transA), blasTranspose(transB), m, n, k,
			any(alpha).(float32), any(a).([]float32), lda, any(b).([]float32), ldb,
			any(beta).(float32), cc, ldc)
	case []float64:
		blas64.Implementation().Dgemm(blasTranspose(transA), blasTranspose(transB), m, n, k,
			any(alpha).(float64), any(a).([]float64), lda, any(b).([]float64), ldb,
			any(beta).(float64), cc, ldc)
	}
}

type naiveMultiplier[T tensor.Float] struct{}

func (naiveMultiplier[T]) Gemm(transA, transB bool, m, n, k int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum T
			for p := 0; p < k; p++ {
				var av, bv T
				if transA {
					av = a[p*lda+i]
				} else {
					av = a[i*lda+p]
				}
				if transB {
					bv = b[j*ldb+p]
				} else {
					bv = b[p*ldb+j]
				}
				sum += av * bv
			}
			if beta == 0 {
				c[i*ldc+j] = alpha * sum
			} else {
				c[i*ldc+j] = alpha*sum + beta*c[i*ldc+j]
			}
		}
	}
}

// defaultBlockSize is the tile edge of the blocked strategy. Three tiles
// should fit in L1 together.
var defaultBlockSize = blockSizeForCPU()

func blockSizeForCPU() int {
	switch {
	case cpu.X86.HasAVX512F:
		return 64
	case cpu.X86.HasAVX2, cpu.ARM64.HasASIMD:
		return 48
	default:
		return 32
	}
}

type blockedMultiplier[T tensor.Float] struct {
	block int
	par   parallel.Config
}

// Gemm splits C into strips of block rows. Each strip is owned by one
// worker, which scales it by beta and then accumulates block×block tiles,
// packing the current tile of op(B) row-major so the inner loop is unit stride.
func (bm blockedMultiplier[T]) Gemm(transA, transB bool, m, n, k int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int) {
	bs := bm.block
	strips := (m + bs - 1) / bs

	par := bm.par
	par.MinChunkSize = 1

	parallel.For(strips, func(strip int) {
		i0 := strip * bs
		i1 := min(i0+bs, m)

		for i := i0; i < i1; i++ {
			row := c[i*ldc : i*ldc+n]
			switch beta {
			case 0:
				clear(row)
			case 1:
			default:
				for j := range row {
					row[j] *= beta
				}
			}
		}

		packed := make([]T, bs*bs)
		for p0 := 0; p0 < k; p0 += bs {
			p1 := min(p0+bs, k)
			for j0 := 0; j0 < n; j0 += bs {
				j1 := min(j0+bs, n)
				nb := j1 - j0

				for p := p0; p < p1; p++ {
					dst := packed[(p-p0)*nb : (p-p0+1)*nb]
					if transB {
						for j := j0; j < j1; j++ {
							dst[j-j0] = b[j*ldb+p]
						}
					} else {
						copy(dst, b[p*ldb+j0:p*ldb+j1])
					}
				}

				for i := i0; i < i1; i++ {
					out := c[i*ldc+j0 : i*ldc+j1]
					for p := p0; p < p1; p++ {
						var av T
						if transA {
							av = a[p*lda+i]
						} else {
							av = a[i*lda+p]
						}
						av *= alpha
						bRow := packed[(p-p0)*nb : (p-p0+1)*nb]
						for j, bv := range bRow {
							out[j] += av * bv
						}
					}
				}
			}
		}
	}, par)
}

// matrix is a row-major 2-D view over a slice.
type matrix[T tensor.Float] struct {
	data       []T
	rows, cols int
}

func asMatrix[T tensor.Float](data []T, rows, cols int) matrix[T] {
	return matrix[T]{data: data, rows: rows, cols: cols}
}

// gemm computes c = alpha·op(a)·op(b) + beta·c. The leading dimension of
// every operand is the column count of its stored (untransposed) view.
func gemm[T tensor.Float](mul Multiplier[T], a matrix[T], transA bool, b matrix[T], transB bool, c matrix[T], alpha, beta T) error {
	m, k := a.rows, a.cols
	if transA {
		m, k = k, m
	}
	kb, n := b.rows, b.cols
	if transB {
		kb, n = n, kb
	}
	if k != kb || c.rows != m || c.cols != n {
		return fmt.Errorf("gemm: op(A) %dx%d, op(B) %dx%d, C %dx%d: %w", m, k, kb, n, c.rows, c.cols, ErrShapeMismatch)
	}
	if len(a.data) < a.rows*a.cols || len(b.data) < b.rows*b.cols || len(c.data) < c.rows*c.cols {
		return fmt.Errorf("gemm: storage shorter than view: %w", ErrShapeMismatch)
	}
	mul.Gemm(transA, transB, m, n, k, alpha, a.data, a.cols, b.data, b.cols, beta, c.data, c.cols)
	return nil
}

// BlockSize returns the tile edge used by AlgorithmBlockedGEMM on this CPU.
func BlockSize() int {
	return defaultBlockSize
}

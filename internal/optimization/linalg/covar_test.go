package linalg

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/lmfit/internal/optimization/testutil"
)

func covarOf(m, n int, data []float64, tol float64) ([]float64, int) {
	f := factor(m, n, data, true)
	for j := 0; j < n; j++ {
		f.a[j+m*j] = f.rdiag[j]
	}
	rank := Covar(n, f.a, m, f.ipvt, tol, make([]float64, n))
	return f.a, rank
}

func TestCovarMatchesNormalInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	m, n := 10, 4
	data, orig := testutil.RandomColMajor(rng, m, n, -2, 2)

	r, rank := covarOf(m, n, data, 1e-14)
	require.Equal(t, n, rank)

	var ata mat.SymDense
	ata.SymOuterK(1, orig.T())
	var chol mat.Cholesky
	require.True(t, chol.Factorize(&ata))
	var want mat.SymDense
	require.NoError(t, chol.InverseTo(&want))

	got := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			got.Set(i, j, r[i+m*j])
		}
	}
	testutil.AssertMatEqual(t, got, &want, 1e-10)

	for i := 0; i < n; i++ {
		assert.GreaterOrEqual(t, got.At(i, i), 0.0)
		for j := 0; j < i; j++ {
			assert.Equal(t, got.At(i, j), got.At(j, i))
		}
	}
}

func TestCovarRankDeficient(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		tol      float64
		zeroCols []int
	}{
		{
			name: "zero column",
			data: []float64{
				1, 2, 3, 4,
				0, 0, 0, 0,
				2, 0, 1, -1,
			},
			tol:      1e-14,
			zeroCols: []int{1},
		},
		{
			name: "below tolerance",
			data: []float64{
				1, 0, 0, 0,
				0, 1e-9, 0, 0,
				0, 0, 2, 0,
			},
			tol:      1e-6,
			zeroCols: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, n := 4, 3
			r, rank := covarOf(m, n, tt.data, tt.tol)
			assert.Equal(t, n-len(tt.zeroCols), rank)

			for _, c := range tt.zeroCols {
				for i := 0; i < n; i++ {
					assert.Equal(t, 0.0, r[i+m*c], "row %d of column %d", i, c)
					assert.Equal(t, 0.0, r[c+m*i], "column %d of row %d", i, c)
				}
			}
			for j := 0; j < n; j++ {
				assert.GreaterOrEqual(t, r[j+m*j], 0.0)
			}
		})
	}
}

func TestCovarDiagonal(t *testing.T) {
	// Orthogonal columns: covariance is diag(1/‖a_j‖²).
	m, n := 3, 2
	data := []float64{
		2, 0, 0,
		0, 0, 4,
	}
	r, rank := covarOf(m, n, data, 1e-14)
	require.Equal(t, 2, rank)
	assert.InDelta(t, 0.25, r[0], 1e-15)
	assert.InDelta(t, 1.0/16, r[1+m], 1e-15)
	assert.Equal(t, 0.0, r[m])
	assert.Equal(t, 0.0, r[1])
}

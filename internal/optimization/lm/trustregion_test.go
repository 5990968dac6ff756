package lm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/lmfit/internal/optimization/linalg"
	"github.com/copyleftdev/lmfit/internal/optimization/testutil"
)

// factored holds a QR factorization prepared the way the driver hands it to
// lmpar.
type factored struct {
	m, n      int
	r         []float64
	ipvt      []int
	diag, qtf []float64
}

func factorForLmpar(rng *rand.Rand, m, n int) *factored {
	a, _ := testutil.RandomColMajor(rng, m, n, -2, 2)
	f := testutil.RandomVector(rng, m, -1, 1)

	ipvt := make([]int, n)
	rdiag, acnorm, wa := make([]float64, n), make([]float64, n), make([]float64, n)
	linalg.QRFactor(m, n, a, m, true, ipvt, rdiag, acnorm, wa)
	linalg.QTApply(m, n, a, m, f)
	for j := 0; j < n; j++ {
		a[j+m*j] = rdiag[j]
	}
	return &factored{m: m, n: n, r: a, ipvt: ipvt, diag: acnorm, qtf: f[:n]}
}

// solve runs lmpar for delta and returns λ and ‖D·x‖.
func (f *factored) solve(delta float64) (float64, float64) {
	n := f.n
	x := make([]float64, n)
	par := lmpar(n, f.r, f.m, f.ipvt, f.diag, f.qtf, delta, 0, x, make([]float64, n), make([]float64, n), make([]float64, n))
	dx := make([]float64, n)
	for j := range dx {
		dx[j] = f.diag[j] * x[j]
	}
	return par, linalg.Enorm(dx)
}

func TestLmparGaussNewtonInsideRegion(t *testing.T) {
	f := factorForLmpar(rand.New(rand.NewSource(17)), 12, 4)

	// A huge radius admits the undamped step.
	par, dxnorm := f.solve(1e12)
	assert.Equal(t, 0.0, par)
	assert.Positive(t, dxnorm)

	par, again := f.solve(2 * dxnorm)
	assert.Equal(t, 0.0, par)
	assert.Equal(t, dxnorm, again)
}

func TestLmparStepShrinksWithRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	for trial := 0; trial < 5; trial++ {
		f := factorForLmpar(rng, 15, 5)
		_, gn := f.solve(1e12)

		prevNorm := gn
		prevPar := 0.0
		for delta := gn; delta > gn/256; delta /= 2 {
			par, dxnorm := f.solve(delta)
			require.GreaterOrEqual(t, par, 0.0)
			assert.LessOrEqual(t, dxnorm, prevNorm*(1+1e-12), "delta=%g", delta)
			assert.GreaterOrEqual(t, par, prevPar, "delta=%g", delta)
			if par > 0 {
				assert.InDelta(t, delta, dxnorm, 0.1*delta+1e-12)
			}
			prevNorm, prevPar = dxnorm, par
		}
	}
}

func TestLmparSingularFactor(t *testing.T) {
	// Second column is zero, so R is singular. The step must stay finite and
	// leave the degenerate direction alone.
	m, n := 4, 2
	a := []float64{
		1, 2, 0, 1,
		0, 0, 0, 0,
	}
	fv := []float64{1, -1, 0.5, 2}
	ipvt := make([]int, n)
	rdiag, acnorm, wa := make([]float64, n), make([]float64, n), make([]float64, n)
	linalg.QRFactor(m, n, a, m, true, ipvt, rdiag, acnorm, wa)
	linalg.QTApply(m, n, a, m, fv)
	for j := 0; j < n; j++ {
		a[j+m*j] = rdiag[j]
	}
	diag := []float64{acnorm[0], 1}

	x := make([]float64, n)
	for _, delta := range []float64{10, 0.1, 1e-4} {
		par := lmpar(n, a, m, ipvt, diag, fv[:n], delta, 0, x, make([]float64, n), make([]float64, n), make([]float64, n))
		assert.GreaterOrEqual(t, par, 0.0)
		assert.Equal(t, 0.0, x[1])
		assert.False(t, math.IsNaN(x[0]))
	}
}

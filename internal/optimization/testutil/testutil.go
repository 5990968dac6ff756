// Package testutil holds the canonical fitting fixtures and assertion helpers
// shared by the optimization test suites.
package testutil

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// Fixture is a weighted polynomial data set. Its Residuals method evaluates
// (y - p(x)) / ey for a polynomial whose degree is len(params)-1, so a
// Fixture can be handed to a fitter directly.
type Fixture struct {
	X, Y, EY []float64

	// Starting point used by the reference runs
	Init []float64
}

// NumResiduals returns the number of data points.
func (f *Fixture) NumResiduals() int { return len(f.X) }

// Residuals writes the weighted deviates of the polynomial with coefficients
// params (constant term first).
func (f *Fixture) Residuals(params, deviates []float64) error {
	for i, x := range f.X {
		model := 0.0
		for k := len(params) - 1; k >= 0; k-- {
			model = model*x + params[k]
		}
		deviates[i] = (f.Y[i] - model) / f.EY[i]
	}
	return nil
}

// InitCopy returns a fresh copy of the starting point.
func (f *Fixture) InitCopy() []float64 {
	return append([]float64(nil), f.Init...)
}

var fixtureX = []float64{
	-1.7237128e+00, 1.8712276e+00, -9.6608055e-01, -2.8394297e-01, 1.3416969e+00,
	1.3757038e+00, -1.3703436e+00, 4.2581975e-02, -1.4970151e-01, 8.2065094e-01,
}

// Reference solution of the linear fixture with unscaled one-sigma errors.
var (
	LinearWant    = []float64{3.20996572, 1.77095420}
	LinearWantErr = []float64{0.02221018, 0.01893756}
)

// LinearFixture returns the ten-point straight-line data set with a constant
// uncertainty of 0.07, started from (1, 1).
func LinearFixture() *Fixture {
	return &Fixture{
		X: append([]float64(nil), fixtureX...),
		Y: []float64{
			1.9000429e-01, 6.5807428e+00, 1.4582725e+00, 2.7270851e+00, 5.5969253e+00,
			5.6249280e+00, 0.787615, 3.2599759e+00, 2.9771762e+00, 4.5936475e+00,
		},
		EY:   constant(len(fixtureX), 0.07),
		Init: []float64{1, 1},
	}
}

// QuadraticFixture returns the ten-point parabola data set with a constant
// uncertainty of 0.2, started from (1, 1, 1).
func QuadraticFixture() *Fixture {
	return &Fixture{
		X: append([]float64(nil), fixtureX...),
		Y: []float64{
			2.3095947e+01, 2.6449392e+01, 1.0204468e+01, 5.40507, 1.5787588e+01,
			1.6520903e+01, 1.5971818e+01, 4.7668524e+00, 4.9337711e+00, 8.7348375e+00,
		},
		EY:   constant(len(fixtureX), 0.2),
		Init: []float64{1, 1, 1},
	}
}

// WeightedPolyFit solves the weighted linear least-squares problem for a
// polynomial of the given number of coefficients in closed form. Coefficients
// listed in fixed keep the value from init and are moved to the right-hand
// side. It returns the coefficients and the unscaled covariance of the free
// ones in full coordinates (zero rows and columns for fixed coefficients).
func WeightedPolyFit(f *Fixture, init []float64, fixed map[int]bool) ([]float64, *mat.SymDense) {
	n := len(init)
	free := make([]int, 0, n)
	for k := 0; k < n; k++ {
		if !fixed[k] {
			free = append(free, k)
		}
	}

	m := len(f.X)
	a := mat.NewDense(m, len(free), nil)
	b := mat.NewVecDense(m, nil)
	for i, x := range f.X {
		rhs := f.Y[i]
		for k := 0; k < n; k++ {
			if fixed[k] {
				rhs -= init[k] * math.Pow(x, float64(k))
			}
		}
		b.SetVec(i, rhs/f.EY[i])
		for c, k := range free {
			a.Set(i, c, math.Pow(x, float64(k))/f.EY[i])
		}
	}

	var ata mat.SymDense
	ata.SymOuterK(1, a.T())
	var atb mat.VecDense
	atb.MulVec(a.T(), b)

	var chol mat.Cholesky
	if !chol.Factorize(&ata) {
		panic("testutil: normal equations not positive definite")
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, &atb); err != nil {
		panic(err)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		panic(err)
	}

	params := append([]float64(nil), init...)
	cov := mat.NewSymDense(n, nil)
	for c, k := range free {
		params[k] = sol.AtVec(c)
		for d, l := range free {
			if d >= c {
				cov.SetSym(k, l, inv.At(c, d))
			}
		}
	}
	return params, cov
}

// AssertFloat64SlicesEqual checks if two float64 slices are approximately equal
func AssertFloat64SlicesEqual(t testing.TB, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertMatEqual checks if two matrices are approximately equal
func AssertMatEqual(t testing.TB, got, want mat.Matrix, tol float64) {
	t.Helper()

	rg, cg := got.Dims()
	rw, cw := want.Dims()
	if rg != rw || cg != cw {
		t.Fatalf("matrix dimensions mismatch: got %dx%d, want %dx%d", rg, cg, rw, cw)
	}

	for i := 0; i < rg; i++ {
		for j := 0; j < cg; j++ {
			g := got.At(i, j)
			w := want.At(i, j)
			if math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}

// RandomColMajor returns an m×n matrix with entries in [min, max], both as a
// column-major slice and as a gonum matrix holding the same values.
func RandomColMajor(rng *rand.Rand, m, n int, min, max float64) ([]float64, *mat.Dense) {
	data := make([]float64, m*n)
	dense := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			v := min + rng.Float64()*(max-min)
			data[i+m*j] = v
			dense.Set(i, j, v)
		}
	}
	return data, dense
}

// RandomVector generates a random vector with values in [min, max]
func RandomVector(rng *rand.Rand, size int, min, max float64) []float64 {
	data := make([]float64, size)
	for i := range data {
		data[i] = min + rng.Float64()*(max-min)
	}
	return data
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

package models

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/copyleftdev/lmfit/internal/optimization"
	"github.com/copyleftdev/lmfit/internal/optimization/lm"
	"github.com/copyleftdev/lmfit/internal/optimization/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataset(t *testing.T) {
	tests := []struct {
		name    string
		x, y    []float64
		ey      []float64
		wantErr error
	}{
		{
			name: "unit uncertainties",
			x:    []float64{1, 2},
			y:    []float64{3, 4},
		},
		{
			name:    "empty",
			wantErr: optimization.ErrEmpty,
		},
		{
			name:    "length mismatch",
			x:       []float64{1, 2},
			y:       []float64{3},
			wantErr: optimization.ErrInput,
		},
		{
			name:    "uncertainty mismatch",
			x:       []float64{1, 2},
			y:       []float64{3, 4},
			ey:      []float64{1},
			wantErr: optimization.ErrInput,
		},
		{
			name:    "zero uncertainty",
			x:       []float64{1, 2},
			y:       []float64{3, 4},
			ey:      []float64{1, 0},
			wantErr: optimization.ErrInput,
		},
		{
			name:    "NaN observation",
			x:       []float64{1, 2},
			y:       []float64{math.NaN(), 4},
			wantErr: optimization.ErrInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDataset(tt.x, tt.y, tt.ey)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, optimization.IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []float64{1, 1}, d.EY)
			assert.Equal(t, 2, d.Len())
			assert.Equal(t, 1.0, d.Span())
		})
	}
}

func TestNewDatasetCopiesInput(t *testing.T) {
	x := []float64{1, 2, 3}
	d, err := NewDataset(x, []float64{1, 1, 1}, nil)
	require.NoError(t, err)

	x[0] = 100
	assert.Equal(t, 1.0, d.X[0])
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"exp_decay", "gaussian", "linear", "quadratic"}, Names())

	for _, name := range Names() {
		s, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	_, err := Lookup("spline")
	require.Error(t, err)
	assert.ErrorIs(t, err, optimization.ErrInput)
}

func TestShapeEval(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		x     float64
		p     []float64
		want  float64
	}{
		{"linear", NewPolynomial("linear", 1), 2, []float64{1, 3}, 7},
		{"quadratic", NewPolynomial("quadratic", 2), -1, []float64{1, 2, 3}, 2},
		{"gaussian peak", Gaussian{}, 0.5, []float64{1, 4, 0.5, 2}, 5},
		{"gaussian one sigma", Gaussian{}, 2.5, []float64{0, 1, 0.5, 2}, math.Exp(-0.5)},
		{"exp decay at zero", ExpDecay{}, 0, []float64{3, 2, 1}, 4},
		{"exp decay", ExpDecay{}, 1, []float64{3, 2, 1}, 3*math.Exp(-2) + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.shape.Eval(tt.x, tt.p), 1e-15)
			assert.Len(t, tt.shape.ParamNames(), len(tt.p))
		})
	}
}

func TestCurveMatchesFixture(t *testing.T) {
	f := testutil.QuadraticFixture()
	d, err := NewDataset(f.X, f.Y, f.EY)
	require.NoError(t, err)
	c := NewCurve(NewPolynomial("quadratic", 2), d)

	p := []float64{0.5, -1, 2}
	want := make([]float64, f.NumResiduals())
	got := make([]float64, c.NumResiduals())
	require.NoError(t, f.Residuals(p, want))
	require.NoError(t, c.Residuals(p, got))
	testutil.AssertFloat64SlicesEqual(t, got, want, 1e-12)

	pred := c.Predict(p)
	for i, x := range d.X {
		assert.InDelta(t, 0.5-x+2*x*x, pred[i], 1e-12)
	}
}

func TestCurveRejectsWrongParamCount(t *testing.T) {
	d, err := NewDataset([]float64{1, 2, 3}, []float64{1, 2, 3}, nil)
	require.NoError(t, err)
	c := NewCurve(Gaussian{}, d)

	err = c.Residuals([]float64{1, 2}, make([]float64, 3))
	require.Error(t, err)
	_, ok := optimization.IsOptimizationError(err)
	assert.True(t, ok)
}

func TestFitLinearCurve(t *testing.T) {
	f := testutil.LinearFixture()
	d, err := NewDataset(f.X, f.Y, f.EY)
	require.NoError(t, err)
	c := NewCurve(NewPolynomial("linear", 1), d)

	x := f.InitCopy()
	res, err := lm.Fit(context.Background(), c, x, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Status.Converged(), res.Status.String())
	testutil.AssertFloat64SlicesEqual(t, res.Params, testutil.LinearWant, 1e-7)
	testutil.AssertFloat64SlicesEqual(t, res.Errors, testutil.LinearWantErr, 1e-7)
}

// synthetic draws noisy observations of shape at truth on an even grid.
func synthetic(shape Shape, truth []float64, lo, hi float64, n int, sigma float64, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	y := make([]float64, n)
	ey := make([]float64, n)
	for i := range x {
		x[i] = lo + (hi-lo)*float64(i)/float64(n-1)
		y[i] = shape.Eval(x[i], truth) + sigma*rng.NormFloat64()
		ey[i] = sigma
	}
	d, err := NewDataset(x, y, ey)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFitFromGuess(t *testing.T) {
	tests := []struct {
		name   string
		shape  Shape
		truth  []float64
		lo, hi float64
	}{
		{"gaussian", Gaussian{}, []float64{1, 5, 0.5, 1.2}, -5, 5},
		{"exp decay", ExpDecay{}, []float64{4, 0.8, 0.5}, 0, 6},
		{"quadratic", NewPolynomial("quadratic", 2), []float64{1, -2, 0.5}, -3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := synthetic(tt.shape, tt.truth, tt.lo, tt.hi, 61, 0.05, 7)
			c := NewCurve(tt.shape, d)

			x := tt.shape.Guess(d)
			require.Len(t, x, c.NumParams())
			res, err := lm.Fit(context.Background(), c, x, nil, nil)
			require.NoError(t, err)
			assert.True(t, res.Status.Converged(), res.Status.String())

			for j, want := range tt.truth {
				require.Greater(t, res.Errors[j], 0.0)
				assert.InDelta(t, want, res.Params[j], 6*res.Errors[j], "param %d", j)
			}
			// Chi-square per degree of freedom should be close to one for
			// correctly weighted noise.
			assert.InDelta(t, 1, res.ReducedChiSquare(), 0.7)
		})
	}
}

func TestGuessWithinBounds(t *testing.T) {
	d := synthetic(Gaussian{}, []float64{0, 2, 1, 0.3}, -2, 2, 41, 0.01, 1)
	g := Gaussian{}.Guess(d)
	assert.InDelta(t, 1, g[2], 0.1)
	assert.Greater(t, g[1], 1.5)
	assert.Equal(t, 0.4, g[3])
}

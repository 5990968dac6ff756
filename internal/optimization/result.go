package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Result contains the outcome of a fit
type Result struct {
	// Termination reason
	Status Status

	// Number of iterations and residual evaluations performed
	Iterations  int
	Evaluations int

	// Final and initial chi-square (sum of squared deviates)
	BestNorm float64
	OrigNorm float64

	// Problem dimensions
	NumParams    int
	NumFree      int
	NumPegged    int
	NumResiduals int

	// Degrees of freedom, NumResiduals - NumFree
	DoF int

	// Refined parameters and the deviates they produce
	Params    []float64
	Residuals []float64

	// One-sigma parameter uncertainties. Fixed parameters and rank-deficient
	// directions report zero.
	Errors []float64

	// Parameter covariance, NumParams x NumParams, with zero rows and
	// columns for fixed parameters.
	Covariance *mat.SymDense

	// Singular flags free parameters whose direction was rank deficient in
	// the final factorization; their covariance rows are zero.
	Singular []bool
}

// ReducedChiSquare returns BestNorm divided by the degrees of freedom, or NaN
// when the fit has none.
func (r *Result) ReducedChiSquare() float64 {
	if r.DoF <= 0 {
		return math.NaN()
	}
	return r.BestNorm / float64(r.DoF)
}

// ConfidenceIntervals returns two-sided intervals [lo, hi] for each parameter
// at the given level (for example 0.95), using Student's t with DoF degrees of
// freedom and the reported standard errors.
func (r *Result) ConfidenceIntervals(level float64) ([][2]float64, error) {
	if !(level > 0 && level < 1) {
		return nil, WrapErrorf(ErrInput, "confidence level must lie in (0, 1), got %g", level)
	}
	if r.DoF <= 0 {
		return nil, WrapError(ErrDoF, "confidence intervals need at least one degree of freedom")
	}

	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(r.DoF)}
	q := t.Quantile(1 - (1-level)/2)

	out := make([][2]float64, len(r.Params))
	for i, p := range r.Params {
		half := q * r.Errors[i]
		out[i] = [2]float64{p - half, p + half}
	}
	return out, nil
}

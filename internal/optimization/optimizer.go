package optimization

import (
	"context"
	"fmt"
	"math"
)

// Fitter defines the interface for least-squares fitting algorithms
type Fitter interface {
	// Fit refines x in place so that the sum of squared residuals of model
	// is minimized, honoring the per-parameter constraints in params.
	Fit(ctx context.Context, model Model, x []float64, params []Param) (*Result, error)
}

// Model is the residual-function collaborator. Implementations must be pure:
// the same parameter vector always produces the same deviates.
type Model interface {
	// NumResiduals returns M, the fixed number of deviates.
	NumResiduals() int

	// Residuals writes the M deviates for params into deviates. Each deviate is
	// typically (observed - predicted) / uncertainty.
	Residuals(params, deviates []float64) error
}

// ResidualFunc defines the function form of a Model.
type ResidualFunc func(params, deviates []float64) error

// FuncModel adapts a ResidualFunc with a declared residual count to Model.
type FuncModel struct {
	M  int
	Fn ResidualFunc
}

// NewFuncModel creates a Model from a function producing m deviates.
func NewFuncModel(m int, fn ResidualFunc) *FuncModel {
	return &FuncModel{M: m, Fn: fn}
}

// NumResiduals implements Model.
func (f *FuncModel) NumResiduals() int { return f.M }

// Residuals implements Model.
func (f *FuncModel) Residuals(params, deviates []float64) error {
	return f.Fn(params, deviates)
}

// Config contains configuration for the Levenberg-Marquardt fitter
type Config struct {
	// Relative chi-square convergence criterion
	Ftol float64

	// Relative parameter convergence criterion
	Xtol float64

	// Orthogonality convergence criterion
	Gtol float64

	// Relative error assumed in the residuals; sets the finite-difference step
	Epsfcn float64

	// Initial trust-region radius, as a multiple of the scaled parameter norm
	StepFactor float64

	// Relative rank cutoff for the covariance estimate
	CovTol float64

	// Maximum number of iterations. Zero performs no iterations and only
	// estimates errors at the initial parameters.
	MaxIter int

	// Maximum number of residual evaluations, or 0 for no limit
	MaxFev int

	// Maximum number of consecutive rejected trial steps, or 0 for no limit
	MaxRejects int

	// Scale the covariance by the reduced chi-square (BestNorm / DoF)
	ScaleCovariance bool

	// Fail with ErrNonFinite when the model returns NaN or Inf deviates
	FiniteCheck bool

	// Number of goroutines evaluating Jacobian columns. Values below 2 keep
	// the build sequential; larger values require a Model safe for concurrent use.
	JacobianWorkers int

	// Optional user scale factors, one per parameter. When set they replace
	// the internal column-norm scaling.
	Diag []float64
}

// DefaultConfig returns the default fitter configuration.
func DefaultConfig() *Config {
	return &Config{
		Ftol:       1e-10,
		Xtol:       1e-10,
		Gtol:       1e-10,
		Epsfcn:     MachineEpsilon,
		StepFactor: 100.0,
		CovTol:     1e-14,
		MaxIter:    200,
		MaxFev:     0,
		MaxRejects: 50,
	}
}

// Validate checks the configuration for values the fitter cannot use.
func (c *Config) Validate() error {
	switch {
	case c.Ftol < 0 || c.Xtol < 0 || c.Gtol < 0:
		return WrapErrorf(ErrInput, "tolerances must be non-negative (ftol=%g xtol=%g gtol=%g)", c.Ftol, c.Xtol, c.Gtol)
	case c.Epsfcn < 0 || math.IsNaN(c.Epsfcn):
		return WrapErrorf(ErrInput, "epsfcn must be non-negative, got %g", c.Epsfcn)
	case c.StepFactor <= 0 || math.IsNaN(c.StepFactor):
		return WrapErrorf(ErrInput, "step factor must be positive, got %g", c.StepFactor)
	case c.CovTol < 0:
		return WrapErrorf(ErrInput, "covariance tolerance must be non-negative, got %g", c.CovTol)
	case c.MaxIter < 0 || c.MaxFev < 0 || c.MaxRejects < 0:
		return WrapError(ErrInput, "iteration, evaluation and rejection limits must be non-negative")
	}
	for i, d := range c.Diag {
		if !(d > 0) || math.IsInf(d, 0) {
			return WrapErrorf(ErrInput, "user scale factor %d must be positive and finite, got %g", i, d)
		}
	}
	return nil
}

// MachineEpsilon is the distance from 1.0 to the next larger float64.
const MachineEpsilon = 2.220446049250313e-16

// Status is the termination reason of a fit.
type Status int

const (
	// StatusUnknown is the zero value and never returned by a completed fit.
	StatusUnknown Status = iota
	// StatusConvergedChi means the relative chi-square reduction fell below Ftol.
	StatusConvergedChi
	// StatusConvergedPar means the relative parameter change fell below Xtol.
	StatusConvergedPar
	// StatusConvergedBoth means both the Ftol and Xtol tests were satisfied.
	StatusConvergedBoth
	// StatusConvergedDir means the residual is orthogonal to the Jacobian
	// columns within Gtol.
	StatusConvergedDir
	// StatusFtolTooSmall means no further reduction in chi-square is possible.
	StatusFtolTooSmall
	// StatusXtolTooSmall means no further improvement in the parameters is possible.
	StatusXtolTooSmall
	// StatusGtolTooSmall means the residual is orthogonal to the Jacobian to
	// machine precision.
	StatusGtolTooSmall
	// StatusMaxIterations means MaxIter iterations were performed.
	StatusMaxIterations
	// StatusMaxEvaluations means MaxFev residual evaluations were performed.
	StatusMaxEvaluations
	// StatusNoProgress means the Jacobian offered no reducible direction or
	// too many consecutive trial steps were rejected.
	StatusNoProgress
)

var statusNames = map[Status]string{
	StatusUnknown:        "unknown",
	StatusConvergedChi:   "converged_chi",
	StatusConvergedPar:   "converged_par",
	StatusConvergedBoth:  "converged_both",
	StatusConvergedDir:   "converged_dir",
	StatusFtolTooSmall:   "ftol_too_small",
	StatusXtolTooSmall:   "xtol_too_small",
	StatusGtolTooSmall:   "gtol_too_small",
	StatusMaxIterations:  "max_iterations",
	StatusMaxEvaluations: "max_evaluations",
	StatusNoProgress:     "no_progress",
}

// String returns the snake_case name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Converged reports whether the fit terminated on a convergence test,
// including convergence to machine precision.
func (s Status) Converged() bool {
	return s >= StatusConvergedChi && s <= StatusGtolTooSmall
}

// Failed reports whether the fit gave up before converging.
func (s Status) Failed() bool {
	return s >= StatusMaxIterations
}

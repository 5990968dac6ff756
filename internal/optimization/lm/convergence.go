package lm

import (
	"math"

	"github.com/copyleftdev/lmfit/internal/optimization"
)

const (
	// Minimum ratio of actual to predicted reduction for a step to be accepted
	acceptRatio = 1e-4

	// Ratios at or below shrinkRatio shrink the trust region; ratios at or
	// above growRatio (or a Gauss-Newton step) double it.
	shrinkRatio = 0.25
	growRatio   = 0.75
)

// reduction describes how well the quadratic model predicted a trial step.
// All quantities are relative to the committed cost.
type reduction struct {
	actred float64
	prered float64
	dirder float64
	ratio  float64
}

// computeReduction evaluates the actual and predicted relative reductions of
// a trial step.
//
// temp1 is ‖J·p‖/fnorm and temp2 is sqrt(λ)·‖D·p‖/fnorm for the Levenberg-
// Marquardt step p; the step actually taken is alpha·p. The predicted
// reduction is that of the quadratic model along the taken step, which for
// alpha = 1 is temp1² + 2·temp2².
func computeReduction(fnorm, fnorm1, temp1, temp2, alpha float64) reduction {
	r := reduction{actred: -1}
	if 0.1*fnorm1 < fnorm {
		t := fnorm1 / fnorm
		r.actred = 1 - t*t
	}

	t1, t2 := temp1*temp1, temp2*temp2
	r.prered = alpha*(2-alpha)*t1 + 2*alpha*t2
	r.dirder = -alpha * (t1 + t2)

	if r.prered != 0 {
		r.ratio = r.actred / r.prered
	}
	return r
}

// accepted reports whether the step earns a commit.
func (r reduction) accepted() bool {
	return r.ratio >= acceptRatio
}

// updateTrustRegion returns the new radius and damping parameter after a
// trial step of scaled length pnorm.
func updateTrustRegion(r reduction, fnorm, fnorm1, delta, pnorm, par float64) (float64, float64) {
	switch {
	case r.ratio <= shrinkRatio:
		temp := 0.5
		if r.actred < 0 {
			temp = 0.5 * r.dirder / (r.dirder + 0.5*r.actred)
		}
		if 0.1*fnorm1 >= fnorm || temp < 0.1 {
			temp = 0.1
		}
		delta = temp * math.Min(delta, pnorm/0.1)
		par /= temp
	case par == 0 || r.ratio >= growRatio:
		delta = pnorm / 0.5
		par *= 0.5
	}
	return delta, par
}

// termination holds what the stopping tests look at after a trial step.
type termination struct {
	red      reduction
	delta    float64
	xnorm    float64
	gnorm    float64
	nfev     int
	iter     int
	accepted bool
}

// status applies the convergence tests and the hard limits, returning
// StatusUnknown when the fit should go on. Tolerance tests take precedence
// over limits; tests at machine precision override the limits. The ftol and
// xtol tests run after rejected trials too, as in MINPACK's lmdif.
func (t termination) status(cfg *optimization.Config) optimization.Status {
	const eps = optimization.MachineEpsilon

	ftolMet := math.Abs(t.red.actred) <= cfg.Ftol && t.red.prered <= cfg.Ftol && 0.5*t.red.ratio <= 1
	xtolMet := t.delta <= cfg.Xtol*t.xnorm
	switch {
	case ftolMet && xtolMet:
		return optimization.StatusConvergedBoth
	case ftolMet:
		return optimization.StatusConvergedChi
	case xtolMet:
		return optimization.StatusConvergedPar
	}

	st := optimization.StatusUnknown
	if cfg.MaxFev > 0 && t.nfev >= cfg.MaxFev {
		st = optimization.StatusMaxEvaluations
	}
	if t.accepted && t.iter >= cfg.MaxIter {
		st = optimization.StatusMaxIterations
	}
	if math.Abs(t.red.actred) <= eps && t.red.prered <= eps && 0.5*t.red.ratio <= 1 {
		st = optimization.StatusFtolTooSmall
	}
	if t.delta <= eps*t.xnorm {
		st = optimization.StatusXtolTooSmall
	}
	if t.gnorm <= eps {
		st = optimization.StatusGtolTooSmall
	}
	return st
}

// Package constraint maps a full parameter vector onto the free subspace a
// fitter iterates over and enforces per-parameter bounds on that subspace.
package constraint

import (
	"math"

	"github.com/copyleftdev/lmfit/internal/optimization"
)

// Set is the validated constraint configuration of one fit. Vectors passed to
// its methods are indexed by free position unless the name says otherwise.
type Set struct {
	params []optimization.Param
	free   []int

	// Limits of the free parameters, ±Inf where absent
	lower, upper []float64
}

// New validates params against the initial vector x and builds the free
// index map. A nil or empty params slice declares every parameter free.
func New(params []optimization.Param, x []float64) (*Set, error) {
	const op = "constraint.New"

	n := len(x)
	if n == 0 {
		return nil, optimization.WrapError(optimization.ErrEmpty, "parameter vector is empty").
			WithComponent("constraint").WithOperation(op)
	}
	if len(params) == 0 {
		params = make([]optimization.Param, n)
	}
	if len(params) != n {
		return nil, optimization.WrapErrorf(optimization.ErrInput,
			"got %d parameter configurations for %d parameters", len(params), n).
			WithComponent("constraint").WithOperation(op)
	}

	s := &Set{
		params: params,
		free:   make([]int, 0, n),
	}
	for i, p := range params {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			return nil, optimization.WrapErrorf(optimization.ErrInput,
				"initial value of parameter %d is not finite", i).
				WithComponent("constraint").WithOperation(op)
		}
		if err := p.Validate(); err != nil {
			return nil, optimization.WrapErrorf(err, "parameter %d", i).
				WithComponent("constraint").WithOperation(op)
		}
		if p.Kind == optimization.ParamFixed {
			continue
		}

		lo, hi := math.Inf(-1), math.Inf(1)
		if p.HasLower() {
			lo = p.Lower
		}
		if p.HasUpper() {
			hi = p.Upper
		}
		if x[i] < lo || x[i] > hi {
			return nil, optimization.WrapErrorf(optimization.ErrInitBounds,
				"parameter %d starts at %g outside [%g, %g]", i, x[i], lo, hi).
				WithComponent("constraint").WithOperation(op)
		}

		s.free = append(s.free, i)
		s.lower = append(s.lower, lo)
		s.upper = append(s.upper, hi)
	}

	if len(s.free) == 0 {
		return nil, optimization.WrapError(optimization.ErrNoFree, "every parameter is fixed").
			WithComponent("constraint").WithOperation(op)
	}
	return s, nil
}

// NumParams returns N, the length of the full parameter vector.
func (s *Set) NumParams() int { return len(s.params) }

// NumFree returns K, the number of free parameters.
func (s *Set) NumFree() int { return len(s.free) }

// Free returns the full-vector index of every free parameter, in order.
func (s *Set) Free() []int { return s.free }

// Bounded reports whether any free parameter carries a limit.
func (s *Set) Bounded() bool {
	for j := range s.free {
		if !math.IsInf(s.lower[j], -1) || !math.IsInf(s.upper[j], 1) {
			return true
		}
	}
	return false
}

// Limits returns the bounds of free parameter j, ±Inf where absent.
func (s *Set) Limits(j int) (lower, upper float64) {
	return s.lower[j], s.upper[j]
}

// Gather copies the free components of the full vector into xfree.
func (s *Set) Gather(full, xfree []float64) {
	for j, i := range s.free {
		xfree[j] = full[i]
	}
}

// Scatter writes xfree into the free components of full. Fixed components
// are left untouched.
func (s *Set) Scatter(xfree, full []float64) {
	for j, i := range s.free {
		full[i] = xfree[j]
	}
}

// Step returns the signed forward-difference step of free parameter j at
// value v. The default is sqrt(max(epsfcn, eps))·|v|, replaced by the
// parameter's absolute or relative step override and floored to
// sqrt(max(epsfcn, eps)) when zero. The step is negated when v+h would cross
// the upper limit.
func (s *Set) Step(j int, v, epsfcn float64) float64 {
	eps := math.Sqrt(math.Max(epsfcn, optimization.MachineEpsilon))
	p := s.params[s.free[j]]

	h := eps * math.Abs(v)
	if p.Step > 0 {
		h = p.Step
	}
	if p.RelStep > 0 {
		h = math.Abs(p.RelStep * v)
	}
	if h == 0 {
		h = eps
	}
	if v > s.upper[j]-h {
		h = -h
	}
	return h
}

// Clamp projects xfree into the bounds component-wise.
func (s *Set) Clamp(xfree []float64) {
	for j := range xfree {
		xfree[j] = math.Min(math.Max(xfree[j], s.lower[j]), s.upper[j])
	}
}

// AtLower reports whether free parameter j sits exactly on its lower limit.
func (s *Set) AtLower(j int, xfree []float64) bool {
	return xfree[j] == s.lower[j]
}

// AtUpper reports whether free parameter j sits exactly on its upper limit.
func (s *Set) AtUpper(j int, xfree []float64) bool {
	return xfree[j] == s.upper[j]
}

// NumPegged counts the free parameters sitting exactly on a limit.
func (s *Set) NumPegged(xfree []float64) int {
	n := 0
	for j := range xfree {
		if s.AtLower(j, xfree) || s.AtUpper(j, xfree) {
			n++
		}
	}
	return n
}

// Truncate restricts the trial step from xfree so that it stays feasible.
//
// Step components pushing a parameter further past a limit it already sits on
// are zeroed in place. The returned alpha in (0, 1] is the largest fraction of
// the remaining step that keeps every parameter inside its bounds; trial
// receives xfree + alpha·step, snapped exactly onto a limit when it lands
// within one machine epsilon of it.
func (s *Set) Truncate(xfree, step, trial []float64) (alpha float64) {
	const eps = optimization.MachineEpsilon

	alpha = 1
	for j := range step {
		lo, hi := s.lower[j], s.upper[j]
		if xfree[j] <= lo && step[j] < 0 {
			step[j] = 0
		}
		if xfree[j] >= hi && step[j] > 0 {
			step[j] = 0
		}
		if math.Abs(step[j]) <= eps {
			continue
		}
		if xfree[j]+step[j] < lo {
			alpha = math.Min(alpha, (lo-xfree[j])/step[j])
		}
		if xfree[j]+step[j] > hi {
			alpha = math.Min(alpha, (hi-xfree[j])/step[j])
		}
	}

	for j := range step {
		lo, hi := s.lower[j], s.upper[j]
		trial[j] = xfree[j] + alpha*step[j]

		if !math.IsInf(hi, 1) && trial[j] >= snapBelow(hi) {
			trial[j] = hi
		}
		if !math.IsInf(lo, -1) && trial[j] <= snapAbove(lo) {
			trial[j] = lo
		}
	}
	s.Clamp(trial)
	return alpha
}

// snapBelow returns the value one relative epsilon inside an upper limit.
func snapBelow(limit float64) float64 {
	const eps = optimization.MachineEpsilon
	if limit == 0 {
		return -eps
	}
	sgn := 1.0
	if limit < 0 {
		sgn = -1
	}
	return limit * (1 - sgn*eps)
}

// snapAbove returns the value one relative epsilon inside a lower limit.
func snapAbove(limit float64) float64 {
	const eps = optimization.MachineEpsilon
	if limit == 0 {
		return eps
	}
	sgn := 1.0
	if limit < 0 {
		sgn = -1
	}
	return limit * (1 + sgn*eps)
}

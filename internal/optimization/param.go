package optimization

import (
	"fmt"
	"math"
)

// ParamKind is the tag of a parameter constraint.
type ParamKind int

const (
	// ParamFree parameters vary without limits.
	ParamFree ParamKind = iota
	// ParamFixed parameters keep their initial value.
	ParamFixed
	// ParamBounded parameters vary within [Lower, Upper].
	ParamBounded
)

// String returns the lower-case name of the kind.
func (k ParamKind) String() string {
	switch k {
	case ParamFree:
		return "free"
	case ParamFixed:
		return "fixed"
	case ParamBounded:
		return "bounded"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Param describes how one parameter takes part in a fit.
// The zero value is a free parameter with automatic finite-difference steps.
type Param struct {
	Kind ParamKind

	// Bounds of a ParamBounded parameter. -Inf / +Inf leave that side open.
	Lower, Upper float64

	// Absolute finite-difference step. Ignored when <= 0.
	Step float64

	// Relative finite-difference step, as a fraction of the parameter value.
	// Takes precedence over Step when > 0.
	RelStep float64
}

// Free returns an unconstrained parameter.
func Free() Param {
	return Param{Kind: ParamFree}
}

// Fixed returns a parameter that keeps its initial value.
func Fixed() Param {
	return Param{Kind: ParamFixed}
}

// Bounded returns a parameter limited to [lower, upper].
func Bounded(lower, upper float64) Param {
	return Param{Kind: ParamBounded, Lower: lower, Upper: upper}
}

// AtLeast returns a parameter with only a lower limit.
func AtLeast(lower float64) Param {
	return Bounded(lower, math.Inf(1))
}

// AtMost returns a parameter with only an upper limit.
func AtMost(upper float64) Param {
	return Bounded(math.Inf(-1), upper)
}

// WithStep returns a copy of p using an absolute finite-difference step.
func (p Param) WithStep(h float64) Param {
	p.Step = h
	return p
}

// WithRelStep returns a copy of p using a relative finite-difference step.
func (p Param) WithRelStep(r float64) Param {
	p.RelStep = r
	return p
}

// HasLower reports whether p carries a finite lower bound.
func (p Param) HasLower() bool {
	return p.Kind == ParamBounded && !math.IsInf(p.Lower, -1)
}

// HasUpper reports whether p carries a finite upper bound.
func (p Param) HasUpper() bool {
	return p.Kind == ParamBounded && !math.IsInf(p.Upper, 1)
}

// Validate checks the bounds of p.
func (p Param) Validate() error {
	if p.Kind != ParamBounded {
		return nil
	}
	if math.IsNaN(p.Lower) || math.IsNaN(p.Upper) {
		return WrapError(ErrBounds, "bounds must not be NaN")
	}
	if math.IsInf(p.Lower, 1) || math.IsInf(p.Upper, -1) {
		return WrapErrorf(ErrBounds, "bounds [%g, %g] leave no feasible value", p.Lower, p.Upper)
	}
	if p.HasLower() && p.HasUpper() && p.Lower >= p.Upper {
		return WrapErrorf(ErrBounds, "lower bound %g must be below upper bound %g", p.Lower, p.Upper)
	}
	return nil
}

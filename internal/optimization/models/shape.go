package models

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// Shape is a parametric curve y = f(x; p).
type Shape interface {
	// Name returns the registry name of the shape
	Name() string

	// ParamNames returns the parameter names in vector order
	ParamNames() []string

	// Eval computes the curve at x
	Eval(x float64, p []float64) float64

	// Guess returns a starting point derived from the data
	Guess(d *Dataset) []float64
}

// Polynomial is the curve p[0] + p[1]·x + ... + p[d]·x^d.
type Polynomial struct {
	name   string
	degree int
}

// NewPolynomial creates a polynomial shape of the given degree.
func NewPolynomial(name string, degree int) *Polynomial {
	if degree < 0 {
		panic("models: negative polynomial degree")
	}
	return &Polynomial{name: name, degree: degree}
}

func (s *Polynomial) Name() string { return s.name }

func (s *Polynomial) ParamNames() []string {
	names := make([]string, s.degree+1)
	for k := range names {
		names[k] = "c" + strconv.Itoa(k)
	}
	return names
}

// Eval evaluates the polynomial with Horner's rule.
func (s *Polynomial) Eval(x float64, p []float64) float64 {
	v := 0.0
	for k := s.degree; k >= 0; k-- {
		v = v*x + p[k]
	}
	return v
}

// Guess starts from the constant mean.
func (s *Polynomial) Guess(d *Dataset) []float64 {
	p := make([]float64, s.degree+1)
	p[0] = floats.Sum(d.Y) / float64(d.Len())
	return p
}

// Gaussian is the peak p[0] + p[1]·exp(-(x-p[2])²/(2·p[3]²)): baseline,
// amplitude, center and width.
type Gaussian struct{}

func (Gaussian) Name() string { return "gaussian" }

func (Gaussian) ParamNames() []string {
	return []string{"baseline", "amplitude", "center", "sigma"}
}

func (Gaussian) Eval(x float64, p []float64) float64 {
	z := (x - p[2]) / p[3]
	return p[0] + p[1]*math.Exp(-0.5*z*z)
}

// Guess places the peak at the largest observation.
func (Gaussian) Guess(d *Dataset) []float64 {
	lo := floats.Min(d.Y)
	peak := floats.MaxIdx(d.Y)
	sigma := d.Span() / 10
	if sigma == 0 {
		sigma = 1
	}
	return []float64{lo, d.Y[peak] - lo, d.X[peak], sigma}
}

// ExpDecay is the curve p[0]·exp(-p[1]·x) + p[2]: amplitude, rate and offset.
type ExpDecay struct{}

func (ExpDecay) Name() string { return "exp_decay" }

func (ExpDecay) ParamNames() []string {
	return []string{"amplitude", "rate", "offset"}
}

func (ExpDecay) Eval(x float64, p []float64) float64 {
	return p[0]*math.Exp(-p[1]*x) + p[2]
}

// Guess takes the first and last points as the start and the asymptote.
func (ExpDecay) Guess(d *Dataset) []float64 {
	first := floats.MinIdx(d.X)
	last := floats.MaxIdx(d.X)
	rate := 1.0
	if span := d.Span(); span > 0 {
		rate = 1 / span
	}
	offset := d.Y[last]
	return []float64{(d.Y[first] - offset) * math.Exp(rate*d.X[first]), rate, offset}
}

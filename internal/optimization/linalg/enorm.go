// Package linalg implements the dense numerical kernels behind the
// Levenberg-Marquardt fitter: an overflow-safe Euclidean norm, column-pivoted
// Householder QR, the damped least-squares solve and the covariance of a
// triangular factor.
//
// Matrices are stored column-major in flat slices: element (i, j) of a matrix
// with leading dimension lda lives at a[i+lda*j].
package linalg

import "math"

const (
	// sqrt(smallest normal float64 * 1.5) * 10
	rdwarf = 1.8269129289596699e-153
	// sqrt(largest float64) * 0.1
	rgiant = 1.3407807799935083e+153
)

// Epsilon is the machine precision used by the kernels.
const Epsilon = 2.220446049250313e-16

// Dwarf is the smallest positive normal float64.
const Dwarf = 2.2250738585072014e-308

// Enorm returns the Euclidean norm of x.
//
// Squares are accumulated in three sums for small, intermediate and large
// components. The small and large sums are scaled so that no overflow occurs
// and only harmless underflow is possible.
func Enorm(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}

	var s1, s2, s3, x1max, x3max float64
	agiant := rgiant / float64(len(x))

	for _, v := range x {
		xabs := math.Abs(v)
		switch {
		case xabs > rdwarf && xabs < agiant:
			s2 += xabs * xabs
		case xabs > rdwarf:
			if xabs > x1max {
				t := x1max / xabs
				s1 = 1 + s1*t*t
				x1max = xabs
			} else {
				t := xabs / x1max
				s1 += t * t
			}
		case xabs > x3max:
			t := x3max / xabs
			s3 = 1 + s3*t*t
			x3max = xabs
		case xabs != 0:
			t := xabs / x3max
			s3 += t * t
		}
	}

	if s1 != 0 {
		return x1max * math.Sqrt(s1+(s2/x1max)/x1max)
	}
	if s2 != 0 {
		if s2 >= x3max {
			return math.Sqrt(s2 * (1 + (x3max/s2)*(x3max*s3)))
		}
		return math.Sqrt(x3max * ((s2 / x3max) + (x3max * s3)))
	}
	return x3max * math.Sqrt(s3)
}

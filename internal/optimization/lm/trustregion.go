package lm

import (
	"math"

	"github.com/copyleftdev/lmfit/internal/optimization/linalg"
)

const (
	// Relative accuracy |‖D·p‖ - Δ| ≤ 0.1·Δ accepted for the damped step
	lmparTolerance = 0.1

	// Newton refinements of λ before the current value is accepted
	lmparMaxIter = 10
)

// lmpar determines the Levenberg-Marquardt parameter λ for the trust radius
// delta, given the pivoted QR factorization J·P = Q·R of the n free Jacobian
// columns, the scaling diag (by original column) and the first n components
// of Qᵀ·f.
//
// r holds the full upper triangle of R; its strict lower triangle is
// overwritten. x receives the Gauss-Newton direction solving
// (JᵀJ + λDᵀD)·x = Jᵀf, so the step itself is -x. par seeds the search and
// the new λ is returned. sdiag, wa1 and wa2 are workspace of length n.
func lmpar(n int, r []float64, ldr int, ipvt []int, diag, qtb []float64, delta, par float64, x, sdiag, wa1, wa2 []float64) float64 {
	// Gauss-Newton direction. If R is singular, obtain the least-squares
	// solution of the leading non-singular block.
	nsing := n
	for j := 0; j < n; j++ {
		wa1[j] = qtb[j]
		if r[j+ldr*j] == 0 && nsing == n {
			nsing = j
		}
		if nsing < n {
			wa1[j] = 0
		}
	}
	for k := nsing - 1; k >= 0; k-- {
		wa1[k] /= r[k+ldr*k]
		t := wa1[k]
		for i := 0; i < k; i++ {
			wa1[i] -= r[i+ldr*k] * t
		}
	}
	for j := 0; j < n; j++ {
		x[ipvt[j]] = wa1[j]
	}

	iter := 0
	for j := 0; j < n; j++ {
		wa2[j] = diag[j] * x[j]
	}
	dxnorm := linalg.Enorm(wa2[:n])
	fp := dxnorm - delta
	if fp <= lmparTolerance*delta {
		return 0
	}

	// Lower bound from the Newton step, available only when R has full rank.
	parl := 0.0
	if nsing >= n {
		for j := 0; j < n; j++ {
			l := ipvt[j]
			wa1[j] = diag[l] * (wa2[l] / dxnorm)
		}
		for j := 0; j < n; j++ {
			sum := 0.0
			for i := 0; i < j; i++ {
				sum += r[i+ldr*j] * wa1[i]
			}
			wa1[j] = (wa1[j] - sum) / r[j+ldr*j]
		}
		t := linalg.Enorm(wa1[:n])
		parl = ((fp / delta) / t) / t
	}

	// Upper bound from the scaled gradient.
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i <= j; i++ {
			sum += r[i+ldr*j] * qtb[i]
		}
		wa1[j] = sum / diag[ipvt[j]]
	}
	gnorm := linalg.Enorm(wa1[:n])
	paru := gnorm / delta
	if paru == 0 {
		paru = linalg.Dwarf / math.Min(delta, lmparTolerance)
	}

	par = math.Min(math.Max(par, parl), paru)
	if par == 0 {
		par = gnorm / dxnorm
	}

	for {
		iter++

		if par == 0 {
			par = math.Max(linalg.Dwarf, 0.001*paru)
		}
		t := math.Sqrt(par)
		for j := 0; j < n; j++ {
			wa1[j] = t * diag[j]
		}
		linalg.QRSolve(n, r, ldr, ipvt, wa1, qtb, x, sdiag, wa2)
		for j := 0; j < n; j++ {
			wa2[j] = diag[j] * x[j]
		}
		dxnorm = linalg.Enorm(wa2[:n])
		prev := fp
		fp = dxnorm - delta

		// Accept when within tolerance, when the lower bound is zero and the
		// function is already negative and not increasing, or on the last
		// refinement.
		if math.Abs(fp) <= lmparTolerance*delta ||
			(parl == 0 && fp <= prev && prev < 0) ||
			iter == lmparMaxIter {
			break
		}

		// Newton correction.
		for j := 0; j < n; j++ {
			l := ipvt[j]
			wa1[j] = diag[l] * (wa2[l] / dxnorm)
		}
		for j := 0; j < n; j++ {
			wa1[j] /= sdiag[j]
			t := wa1[j]
			for i := j + 1; i < n; i++ {
				wa1[i] -= r[i+ldr*j] * t
			}
		}
		t = linalg.Enorm(wa1[:n])
		parc := ((fp / delta) / t) / t

		if fp > 0 {
			parl = math.Max(parl, par)
		}
		if fp < 0 {
			paru = math.Min(paru, par)
		}
		par = math.Max(parl, par+parc)
	}

	return par
}

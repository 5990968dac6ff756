package linalg

import "math"

// Covar overwrites the n×n upper triangle R of a pivoted QR factorization
// A·P = Q·R with the covariance (AᵀA)⁻¹ in original column order.
//
// Diagonal entries of R with magnitude at most tol·|R₀₀| mark the start of a
// rank-deficient block; the rows and columns of the covariance belonging to
// those directions are set to zero. The returned rank counts the directions
// that were kept. wa is workspace of length n.
func Covar(n int, r []float64, ldr int, ipvt []int, tol float64, wa []float64) (rank int) {
	if n > len(ipvt) || n > len(wa) {
		panic("linalg: workspace too small")
	}
	if n == 0 {
		return 0
	}

	// Form the inverse of R in the full upper triangle of r.
	tolr := tol * math.Abs(r[0])
	l := -1
	for k := 0; k < n; k++ {
		kk := k + ldr*k
		if math.Abs(r[kk]) <= tolr {
			break
		}
		r[kk] = 1 / r[kk]
		for j := 0; j < k; j++ {
			t := r[kk] * r[j+ldr*k]
			r[j+ldr*k] = 0
			for i := 0; i <= j; i++ {
				r[i+ldr*k] -= t * r[i+ldr*j]
			}
		}
		l = k
	}

	// Form the full upper triangle of R⁻¹·R⁻ᵀ.
	for k := 0; k <= l; k++ {
		for j := 0; j < k; j++ {
			t := r[j+ldr*k]
			for i := 0; i <= j; i++ {
				r[i+ldr*j] += t * r[i+ldr*k]
			}
		}
		t := r[k+ldr*k]
		for i := 0; i <= k; i++ {
			r[i+ldr*k] *= t
		}
	}

	// Form the full lower triangle of the covariance in the strict lower
	// triangle of r and in wa.
	for j := 0; j < n; j++ {
		jj := ipvt[j]
		sing := j > l
		for i := 0; i <= j; i++ {
			if sing {
				r[i+ldr*j] = 0
			}
			ii := ipvt[i]
			if ii > jj {
				r[ii+ldr*jj] = r[i+ldr*j]
			}
			if ii < jj {
				r[jj+ldr*ii] = r[i+ldr*j]
			}
		}
		wa[jj] = r[j+ldr*j]
	}

	// Symmetrise.
	for j := 0; j < n; j++ {
		for i := 0; i < j; i++ {
			r[i+ldr*j] = r[j+ldr*i]
		}
		r[j+ldr*j] = wa[j]
	}

	return l + 1
}

package linalg

import "math"

// QRSolve solves the damped least-squares problem
//
//	A·x ≅ b,  D·x ≅ 0
//
// given the QR factorization with pivoting A·P = Q·R of an m×n matrix A, the
// diagonal D and the first n components of Qᵀ·b.
//
// r holds the full upper triangle of R in its first n columns (leading
// dimension ldr); on return the strict lower triangle contains Sᵀ where
// Pᵀ·(AᵀA + DD)·P = Sᵀ·S, and the upper triangle is untouched. diag is indexed
// by original column, qtb by pivoted position. The solution x is returned in
// original column order, sdiag receives the diagonal of S, and wa is workspace
// of length n. When S is singular the least-squares solution is returned.
func QRSolve(n int, r []float64, ldr int, ipvt []int, diag, qtb, x, sdiag, wa []float64) {
	if n > len(ipvt) || n > len(diag) || n > len(qtb) || n > len(x) || n > len(sdiag) || n > len(wa) {
		panic("linalg: workspace too small")
	}

	// Copy R and Qᵀb to preserve input and initialise S. Save the diagonal
	// of R in x.
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			r[i+ldr*j] = r[j+ldr*i]
		}
		x[j] = r[j+ldr*j]
		wa[j] = qtb[j]
	}

	// Eliminate D with Givens rotations.
	for j := 0; j < n; j++ {
		l := ipvt[j]
		if diag[l] != 0 {
			for k := j; k < n; k++ {
				sdiag[k] = 0
			}
			sdiag[j] = diag[l]

			// Eliminating the row of D only touches a single element of
			// Qᵀb beyond the first n, which is initially zero.
			qtbpj := 0.0
			for k := j; k < n; k++ {
				if sdiag[k] == 0 {
					continue
				}
				rkk := r[k+ldr*k]
				var sin, cos float64
				if math.Abs(rkk) < math.Abs(sdiag[k]) {
					cotan := rkk / sdiag[k]
					sin = 0.5 / math.Sqrt(0.25+0.25*cotan*cotan)
					cos = sin * cotan
				} else {
					tan := sdiag[k] / rkk
					cos = 0.5 / math.Sqrt(0.25+0.25*tan*tan)
					sin = cos * tan
				}

				r[k+ldr*k] = cos*rkk + sin*sdiag[k]
				t := cos*wa[k] + sin*qtbpj
				qtbpj = -sin*wa[k] + cos*qtbpj
				wa[k] = t

				for i := k + 1; i < n; i++ {
					t = cos*r[i+ldr*k] + sin*sdiag[i]
					sdiag[i] = -sin*r[i+ldr*k] + cos*sdiag[i]
					r[i+ldr*k] = t
				}
			}
		}

		// Store the diagonal of S and restore the diagonal of R.
		sdiag[j] = r[j+ldr*j]
		r[j+ldr*j] = x[j]
	}

	// Solve S·z = Qᵀb. A singular S yields the least-squares solution.
	nsing := n
	for j := 0; j < n; j++ {
		if sdiag[j] == 0 && nsing == n {
			nsing = j
		}
		if nsing < n {
			wa[j] = 0
		}
	}
	for j := nsing - 1; j >= 0; j-- {
		sum := 0.0
		for i := j + 1; i < nsing; i++ {
			sum += r[i+ldr*j] * wa[i]
		}
		wa[j] = (wa[j] - sum) / sdiag[j]
	}

	for j := 0; j < n; j++ {
		x[ipvt[j]] = wa[j]
	}
}

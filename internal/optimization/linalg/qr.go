package linalg

import "math"

// QRFactor computes the Householder QR factorization of the m×n matrix a
// (m ≥ n not required), optionally with column pivoting:
//
//	A·P = Q·R
//
// The pivot at step j is the remaining column with the largest norm in rows
// j..m-1; ties go to the lowest index.
//
// On return the strict upper triangle of a holds R without its diagonal, which
// is returned in rdiag. Column j of the lower trapezoid (rows j..m-1) holds the
// Householder vector u_j defining H_j = I - u_j·u_jᵀ/u_j[j], and
// Q = H_0·H_1···H_{k-1} with k = min(m, n). When pivot is set ipvt[j] receives
// the original index of the column moved into position j; otherwise ipvt is
// the identity. acnorm receives the norms of the original columns and wa is
// workspace of length n.
//
// A zero column yields rdiag[j] = 0 and an all-zero Householder vector.
func QRFactor(m, n int, a []float64, lda int, pivot bool, ipvt []int, rdiag, acnorm, wa []float64) {
	if n > len(ipvt) || n > len(rdiag) || n > len(acnorm) || n > len(wa) {
		panic("linalg: workspace too small")
	}
	if n > 0 && lda*(n-1)+m > len(a) {
		panic("linalg: matrix storage too small")
	}

	for j := 0; j < n; j++ {
		acnorm[j] = Enorm(a[lda*j : lda*j+m])
		rdiag[j] = acnorm[j]
		wa[j] = rdiag[j]
		ipvt[j] = j
	}

	minmn := min(m, n)
	for j := 0; j < minmn; j++ {
		if pivot {
			kmax := j
			for k := j; k < n; k++ {
				if rdiag[k] > rdiag[kmax] {
					kmax = k
				}
			}
			if kmax != j {
				cj, ck := a[lda*j:lda*j+m], a[lda*kmax:lda*kmax+m]
				for i := range cj {
					cj[i], ck[i] = ck[i], cj[i]
				}
				rdiag[kmax] = rdiag[j]
				wa[kmax] = wa[j]
				ipvt[j], ipvt[kmax] = ipvt[kmax], ipvt[j]
			}
		}

		// Reduce column j to a multiple of the j-th unit vector.
		cj := a[lda*j+j : lda*j+m]
		ajnorm := Enorm(cj)
		if ajnorm == 0 {
			rdiag[j] = 0
			continue
		}
		if cj[0] < 0 {
			ajnorm = -ajnorm
		}
		for i := range cj {
			cj[i] /= ajnorm
		}
		cj[0]++

		// Apply the reflection to the remaining columns and downdate their norms.
		for k := j + 1; k < n; k++ {
			ck := a[lda*k+j : lda*k+m]
			sum := 0.0
			for i := range cj {
				sum += cj[i] * ck[i]
			}
			t := sum / cj[0]
			for i := range cj {
				ck[i] -= t * cj[i]
			}

			if !pivot || rdiag[k] == 0 {
				continue
			}
			t = ck[0] / rdiag[k]
			rdiag[k] *= math.Sqrt(math.Max(0, 1-t*t))
			t = rdiag[k] / wa[k]
			if 0.05*t*t <= Epsilon {
				rdiag[k] = Enorm(ck[1:])
				wa[k] = rdiag[k]
			}
		}
		rdiag[j] = -ajnorm
	}
}

// QTApply overwrites the m-vector f with Qᵀ·f, where Q is defined by the
// Householder vectors QRFactor left in the lower trapezoid of a. It must be
// called before the diagonal of a is overwritten.
func QTApply(m, n int, a []float64, lda int, f []float64) {
	for j := 0; j < min(m, n); j++ {
		reflect(a[lda*j+j:lda*j+m], f[j:m])
	}
}

// QApply overwrites the m-vector v with Q·v. Together with R and the
// permutation it reconstructs A·P from the factorization.
func QApply(m, n int, a []float64, lda int, v []float64) {
	for j := min(m, n) - 1; j >= 0; j-- {
		reflect(a[lda*j+j:lda*j+m], v[j:m])
	}
}

// reflect applies H = I - u·uᵀ/u[0] to x. A zero leading element marks an
// identity reflection.
func reflect(u, x []float64) {
	if u[0] == 0 {
		return
	}
	sum := 0.0
	for i := range u {
		sum += u[i] * x[i]
	}
	t := -sum / u[0]
	for i := range u {
		x[i] += t * u[i]
	}
}

package lm

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/lmfit/internal/optimization"
	"github.com/copyleftdev/lmfit/internal/optimization/linalg"
)

// estimateCovariance fills the covariance, standard errors and singular flags
// of res from the last factorization. Directions cut by the rank test get
// zero rows and columns and are flagged in res.Singular.
func (f *fit) estimateCovariance(res *optimization.Result) {
	ws := f.ws
	m, n, k := ws.m, ws.n, ws.k

	rank := linalg.Covar(k, ws.fjac, m, ws.ipvt, f.cfg.CovTol, ws.wa1)

	scale := 1.0
	if f.cfg.ScaleCovariance && res.DoF > 0 {
		scale = res.BestNorm / float64(res.DoF)
	}

	free := f.cs.Free()
	cov := mat.NewSymDense(n, nil)
	for j, jj := range free {
		for i := 0; i <= j; i++ {
			cov.SetSym(free[i], jj, scale*ws.fjac[i+m*j])
		}
	}

	res.Covariance = cov
	res.Errors = make([]float64, n)
	for _, i := range free {
		if v := cov.At(i, i); v > 0 {
			res.Errors[i] = math.Sqrt(v)
		}
	}

	res.Singular = make([]bool, n)
	for _, l := range ws.ipvt[rank:] {
		res.Singular[free[l]] = true
	}

	if rank < k {
		f.logger.Debug("covariance is rank deficient",
			zap.Int("rank", rank),
			zap.Int("free", k))
	}
}

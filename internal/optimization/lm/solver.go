// Package lm implements Levenberg-Marquardt nonlinear least-squares fitting
// with finite-difference derivatives, parameter bounds and covariance
// estimation.
package lm

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/lmfit/internal/optimization"
	"github.com/copyleftdev/lmfit/internal/optimization/constraint"
	"github.com/copyleftdev/lmfit/internal/optimization/linalg"
)

// Solver fits models with the Levenberg-Marquardt method. A Solver holds only
// its configuration and a buffer pool, so one Solver may run many fits
// concurrently.
type Solver struct {
	config *optimization.Config
	logger *zap.Logger
	pool   sync.Pool
}

var _ optimization.Fitter = (*Solver)(nil)

// NewSolver creates a Solver. A nil config selects optimization.DefaultConfig
// and a nil logger discards output.
func NewSolver(config *optimization.Config, logger *zap.Logger) (*Solver, error) {
	const op = "lm.NewSolver"

	if config == nil {
		config = optimization.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, optimization.WrapError(err, "invalid configuration").
			WithComponent("lm").WithOperation(op)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := *config
	cfg.Diag = append([]float64(nil), config.Diag...)
	return &Solver{
		config: &cfg,
		logger: logger.Named("lm"),
	}, nil
}

// Fit runs a fit with a Solver built from config.
func Fit(ctx context.Context, model optimization.Model, x []float64, params []optimization.Param, config *optimization.Config) (*optimization.Result, error) {
	s, err := NewSolver(config, nil)
	if err != nil {
		return nil, err
	}
	return s.Fit(ctx, model, x, params)
}

// Config returns a copy of the solver configuration.
func (s *Solver) Config() optimization.Config {
	cfg := *s.config
	cfg.Diag = append([]float64(nil), s.config.Diag...)
	return cfg
}

// Fit refines x in place to minimize the sum of squared deviates of model.
//
// params configures each parameter; nil declares all free. Configuration
// problems are reported before the model is called. When the model fails or
// ctx is cancelled, Fit returns the error and x holds the last accepted
// parameter vector. Running out of iterations or evaluations is not an error:
// the result carries the status and the best vector found.
func (s *Solver) Fit(ctx context.Context, model optimization.Model, x []float64, params []optimization.Param) (*optimization.Result, error) {
	const op = "Solver.Fit"

	if model == nil {
		return nil, optimization.WrapError(optimization.ErrInput, "model is nil").
			WithComponent("lm").WithOperation(op)
	}
	cs, err := constraint.New(params, x)
	if err != nil {
		return nil, err
	}

	n, k := cs.NumParams(), cs.NumFree()
	m := model.NumResiduals()
	if m <= 0 {
		return nil, optimization.WrapErrorf(optimization.ErrEmpty, "model declares %d residuals", m).
			WithComponent("lm").WithOperation(op)
	}
	if m < k {
		return nil, optimization.WrapErrorf(optimization.ErrDoF, "%d residuals cannot determine %d free parameters", m, k).
			WithComponent("lm").WithOperation(op)
	}
	if len(s.config.Diag) != 0 && len(s.config.Diag) != n {
		return nil, optimization.WrapErrorf(optimization.ErrInput, "got %d scale factors for %d parameters", len(s.config.Diag), n).
			WithComponent("lm").WithOperation(op)
	}

	ws := s.getWorkspace(m, n, k)
	defer s.putWorkspace(ws)

	f := &fit{
		cfg:    s.config,
		logger: s.logger,
		model:  model,
		cs:     cs,
		ws:     ws,
	}
	copy(ws.x, x)
	copy(ws.xtrial, x)

	res, err := f.run(ctx)
	copy(x, ws.x)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// fit is the state of one Fit call.
type fit struct {
	cfg    *optimization.Config
	logger *zap.Logger
	model  optimization.Model
	cs     *constraint.Set
	ws     *workspace

	nfev int
	iter int

	// Trust-region radius, damping parameter, norm of the committed deviates
	// and scaled norm of the committed free parameters
	delta, par   float64
	fnorm, xnorm float64
}

func (f *fit) run(ctx context.Context) (*optimization.Result, error) {
	ws := f.ws
	m, k := ws.m, ws.k

	f.cs.Gather(ws.x, ws.xfree)
	f.nfev++
	if err := f.evaluate(ws.x, ws.fvec); err != nil {
		return nil, err
	}
	f.fnorm = linalg.Enorm(ws.fvec)
	origNorm := f.fnorm * f.fnorm

	userScale := len(f.cfg.Diag) > 0
	if userScale {
		for j, i := range f.cs.Free() {
			ws.diag[j] = f.cfg.Diag[i]
		}
	}

	f.logger.Debug("starting fit",
		zap.Int("residuals", m),
		zap.Int("params", ws.n),
		zap.Int("free", k),
		zap.Float64("chi2", origNorm))

	status := optimization.StatusUnknown
	rejects := 0

outer:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		allZero, err := f.jacobian(ctx)
		if err != nil {
			return nil, err
		}
		f.peg()

		linalg.QRFactor(m, k, ws.fjac, m, true, ws.ipvt, ws.rdiag, ws.acnorm, ws.wa1)

		if f.iter == 0 {
			if !userScale {
				for j, v := range ws.acnorm {
					ws.diag[j] = v
					if v == 0 {
						ws.diag[j] = 1
					}
				}
			}
			floats.MulTo(ws.wa3, ws.diag, ws.xfree)
			f.xnorm = linalg.Enorm(ws.wa3)
			f.delta = f.cfg.StepFactor * f.xnorm
			if f.delta == 0 {
				f.delta = f.cfg.StepFactor
			}
		}

		copy(ws.qwork, ws.fvec)
		linalg.QTApply(m, k, ws.fjac, m, ws.qwork)
		for j := 0; j < k; j++ {
			ws.fjac[j+m*j] = ws.rdiag[j]
			ws.qtf[j] = ws.qwork[j]
		}

		if allZero && f.fnorm > 0 {
			status = optimization.StatusNoProgress
			break
		}

		gnorm := f.gradientNorm()
		if gnorm <= f.cfg.Gtol {
			status = optimization.StatusConvergedDir
			break
		}
		if f.cfg.MaxIter == 0 {
			status = optimization.StatusMaxIterations
			break
		}

		f.iter++
		if !userScale {
			for j, v := range ws.acnorm {
				ws.diag[j] = math.Max(ws.diag[j], v)
			}
		}

		f.logger.Debug("iteration",
			zap.Int("iter", f.iter),
			zap.Int("nfev", f.nfev),
			zap.Float64("chi2", f.fnorm*f.fnorm),
			zap.Float64("delta", f.delta),
			zap.Float64("par", f.par),
			zap.Float64("gnorm", gnorm))

		for {
			accepted, st, err := f.trial(gnorm)
			if err != nil {
				return nil, err
			}
			if st != optimization.StatusUnknown {
				status = st
				break outer
			}
			if accepted {
				rejects = 0
				break
			}
			rejects++
			if f.cfg.MaxRejects > 0 && rejects >= f.cfg.MaxRejects {
				status = optimization.StatusNoProgress
				break outer
			}
		}
	}

	return f.result(status, origNorm), nil
}

// trial computes one damped step from the current factorization, evaluates
// it and updates the trust region. It commits the step when the reduction
// ratio is large enough and reports any terminal status.
func (f *fit) trial(gnorm float64) (bool, optimization.Status, error) {
	ws := f.ws
	m, k := ws.m, ws.k

	f.par = lmpar(k, ws.fjac, m, ws.ipvt, ws.diag, ws.qtf, f.delta, f.par, ws.step, ws.sdiag, ws.wa1, ws.wa2)
	floats.Scale(-1, ws.step)

	alpha := f.cs.Truncate(ws.xfree, ws.step, ws.trial)
	floats.MulTo(ws.wa3, ws.diag, ws.step)
	dnorm := linalg.Enorm(ws.wa3)
	pnorm := alpha * dnorm

	if f.iter == 1 {
		f.delta = math.Min(f.delta, pnorm)
	}

	f.cs.Scatter(ws.trial, ws.xtrial)
	f.nfev++
	if err := f.evaluate(ws.xtrial, ws.ftrial); err != nil {
		return false, optimization.StatusUnknown, err
	}
	fnorm1 := linalg.Enorm(ws.ftrial)

	// R·Pᵀ·p for the predicted reduction.
	for j := 0; j < k; j++ {
		ws.wa3[j] = 0
	}
	for j := 0; j < k; j++ {
		t := ws.step[ws.ipvt[j]]
		for i := 0; i <= j; i++ {
			ws.wa3[i] += ws.fjac[i+m*j] * t
		}
	}
	temp1 := linalg.Enorm(ws.wa3) / f.fnorm
	temp2 := math.Sqrt(f.par) * dnorm / f.fnorm

	red := computeReduction(f.fnorm, fnorm1, temp1, temp2, alpha)
	f.delta, f.par = updateTrustRegion(red, f.fnorm, fnorm1, f.delta, pnorm, f.par)

	accepted := red.accepted()
	if accepted {
		copy(ws.xfree, ws.trial)
		copy(ws.x, ws.xtrial)
		ws.fvec, ws.ftrial = ws.ftrial, ws.fvec
		floats.MulTo(ws.wa3, ws.diag, ws.xfree)
		f.xnorm = linalg.Enorm(ws.wa3)
		f.fnorm = fnorm1
	}

	t := termination{
		red:      red,
		delta:    f.delta,
		xnorm:    f.xnorm,
		gnorm:    gnorm,
		nfev:     f.nfev,
		iter:     f.iter,
		accepted: accepted,
	}
	return accepted, t.status(f.cfg), nil
}

// gradientNorm returns the largest cosine between the committed deviates and
// a Jacobian column.
func (f *fit) gradientNorm() float64 {
	ws := f.ws
	if f.fnorm == 0 {
		return 0
	}
	gnorm := 0.0
	for j := 0; j < ws.k; j++ {
		l := ws.ipvt[j]
		if ws.acnorm[l] == 0 {
			continue
		}
		sum := 0.0
		for i := 0; i <= j; i++ {
			sum += ws.fjac[i+ws.m*j] * (ws.qtf[i] / f.fnorm)
		}
		gnorm = math.Max(gnorm, math.Abs(sum/ws.acnorm[l]))
	}
	return gnorm
}

// evaluate calls the model at x. It does not count the evaluation so that it
// can run from several goroutines.
func (f *fit) evaluate(x, deviates []float64) error {
	const op = "Solver.evaluate"

	if err := f.model.Residuals(x, deviates); err != nil {
		return optimization.EvaluationError(err).WithComponent("lm").WithOperation(op)
	}
	if f.cfg.FiniteCheck {
		for i, v := range deviates {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return optimization.WrapErrorf(optimization.ErrNonFinite, "deviate %d is %g", i, v).
					WithComponent("lm").WithOperation(op)
			}
		}
	}
	return nil
}

func (f *fit) result(status optimization.Status, origNorm float64) *optimization.Result {
	ws := f.ws
	res := &optimization.Result{
		Status:       status,
		Iterations:   f.iter,
		Evaluations:  f.nfev,
		BestNorm:     f.fnorm * f.fnorm,
		OrigNorm:     origNorm,
		NumParams:    ws.n,
		NumFree:      ws.k,
		NumPegged:    f.cs.NumPegged(ws.xfree),
		NumResiduals: ws.m,
		DoF:          ws.m - ws.k,
		Params:       append([]float64(nil), ws.x...),
		Residuals:    append([]float64(nil), ws.fvec...),
	}
	f.estimateCovariance(res)

	f.logger.Debug("fit finished",
		zap.String("status", status.String()),
		zap.Int("iterations", res.Iterations),
		zap.Int("nfev", res.Evaluations),
		zap.Float64("chi2", res.BestNorm),
		zap.Int("pegged", res.NumPegged))
	return res
}

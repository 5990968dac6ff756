package lm

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// jacobian builds the forward-difference Jacobian of the free columns at the
// committed point into ws.fjac. The committed deviates serve as the baseline,
// so a build costs one evaluation per free parameter. It reports whether
// every entry came out zero.
func (f *fit) jacobian(ctx context.Context) (allZero bool, err error) {
	ws := f.ws
	if f.cfg.JacobianWorkers > 1 && ws.k > 1 {
		err = f.jacobianParallel(ctx)
	} else {
		err = f.jacobianSequential()
	}
	if err != nil {
		return false, err
	}

	for _, v := range ws.fjac {
		if v != 0 {
			return false, nil
		}
	}
	return true, nil
}

func (f *fit) jacobianSequential() error {
	ws := f.ws
	copy(ws.xjac, ws.x)
	for j := 0; j < ws.k; j++ {
		if err := f.column(j, ws.xjac); err != nil {
			return err
		}
		f.nfev++
	}
	return nil
}

// jacobianParallel spreads the columns over JacobianWorkers goroutines. Each
// goroutine perturbs its own parameter copy and writes only its own columns,
// so the result is identical to the sequential build.
func (f *fit) jacobianParallel(ctx context.Context) error {
	ws := f.ws
	workers := min(f.cfg.JacobianWorkers, ws.k)
	params := ws.workerParams(workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w, x := w, params[w]
		g.Go(func() error {
			for j := w; j < ws.k; j += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := f.column(j, x); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.nfev += ws.k
	return nil
}

// column fills Jacobian column j by perturbing free parameter j in x, which
// must equal the committed vector and is restored before returning.
func (f *fit) column(j int, x []float64) error {
	ws := f.ws
	i := f.cs.Free()[j]
	v := x[i]
	h := f.cs.Step(j, v, f.cfg.Epsfcn)

	x[i] = v + h
	col := ws.fjac[ws.m*j : ws.m*(j+1)]
	err := f.evaluate(x, col)
	x[i] = v
	if err != nil {
		return err
	}

	for r := range col {
		col[r] = (col[r] - ws.fvec[r]) / h
	}
	return nil
}

// peg zeroes the columns of free parameters sitting on a limit whose
// gradient points out of the feasible region.
func (f *fit) peg() {
	if !f.cs.Bounded() {
		return
	}
	ws := f.ws
	for j := 0; j < ws.k; j++ {
		lower, upper := f.cs.AtLower(j, ws.xfree), f.cs.AtUpper(j, ws.xfree)
		if !lower && !upper {
			continue
		}

		col := ws.fjac[ws.m*j : ws.m*(j+1)]
		sum := floats.Dot(ws.fvec, col)
		if (lower && sum > 0) || (upper && sum < 0) {
			clear(col)
		}
	}
}

package lm

// workspace holds every buffer one fit works on. A workspace is owned by a
// single Fit call; the solver recycles them through a pool between calls.
type workspace struct {
	m, n, k int

	// Full parameter vectors: committed, trial and perturbed copy used by the
	// sequential Jacobian build.
	x, xtrial, xjac []float64

	// Free-parameter vectors
	xfree, trial, step []float64
	diag, qtf          []float64
	rdiag, acnorm      []float64
	sdiag              []float64
	wa1, wa2, wa3      []float64

	// Deviates at the committed and trial points, and scratch for Qᵀ·f
	fvec, ftrial, qwork []float64

	// Jacobian, m×k column-major; holds the QR factors after factorization
	fjac []float64

	ipvt []int

	// Per-goroutine parameter copies for the parallel Jacobian build
	workerX [][]float64

	slab []float64
}

// newWorkspace allocates a workspace for m deviates, n parameters and k free
// parameters.
func newWorkspace(m, n, k int) *workspace {
	ws := &workspace{}
	ws.reset(m, n, k)
	return ws
}

func slabSize(m, n, k int) int {
	return 3*n + 11*k + 3*m + m*k
}

// reset carves the buffers for the given dimensions out of the slab,
// growing it only when it is too small.
func (ws *workspace) reset(m, n, k int) {
	ws.m, ws.n, ws.k = m, n, k

	size := slabSize(m, n, k)
	if cap(ws.slab) < size {
		ws.slab = make([]float64, size)
	}
	ws.slab = ws.slab[:size]
	clear(ws.slab)

	rest := ws.slab
	take := func(l int) []float64 {
		s := rest[:l:l]
		rest = rest[l:]
		return s
	}

	ws.x, ws.xtrial, ws.xjac = take(n), take(n), take(n)
	ws.xfree, ws.trial, ws.step = take(k), take(k), take(k)
	ws.diag, ws.qtf = take(k), take(k)
	ws.rdiag, ws.acnorm = take(k), take(k)
	ws.sdiag = take(k)
	ws.wa1, ws.wa2, ws.wa3 = take(k), take(k), take(k)
	ws.fvec, ws.ftrial, ws.qwork = take(m), take(m), take(m)
	ws.fjac = take(m * k)

	if cap(ws.ipvt) < k {
		ws.ipvt = make([]int, k)
	}
	ws.ipvt = ws.ipvt[:k]
}

// workerParams returns w parameter vectors, each a copy of the committed
// vector.
func (ws *workspace) workerParams(w int) [][]float64 {
	for len(ws.workerX) < w {
		ws.workerX = append(ws.workerX, nil)
	}
	for i := 0; i < w; i++ {
		if cap(ws.workerX[i]) < ws.n {
			ws.workerX[i] = make([]float64, ws.n)
		}
		ws.workerX[i] = ws.workerX[i][:ws.n]
		copy(ws.workerX[i], ws.x)
	}
	return ws.workerX[:w]
}

// getWorkspace returns a workspace sized for the problem, reusing a pooled
// one when available.
func (s *Solver) getWorkspace(m, n, k int) *workspace {
	if ws, ok := s.pool.Get().(*workspace); ok {
		ws.reset(m, n, k)
		return ws
	}
	return newWorkspace(m, n, k)
}

// putWorkspace hands a workspace back to the pool.
func (s *Solver) putWorkspace(ws *workspace) {
	s.pool.Put(ws)
}

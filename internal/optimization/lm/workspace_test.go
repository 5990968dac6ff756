package lm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceBuffers(t *testing.T) {
	ws := newWorkspace(10, 4, 3)

	bufs := map[string][]float64{
		"x": ws.x, "xtrial": ws.xtrial, "xjac": ws.xjac,
		"xfree": ws.xfree, "trial": ws.trial, "step": ws.step,
		"diag": ws.diag, "qtf": ws.qtf, "rdiag": ws.rdiag, "acnorm": ws.acnorm,
		"sdiag": ws.sdiag, "wa1": ws.wa1, "wa2": ws.wa2, "wa3": ws.wa3,
		"fvec": ws.fvec, "ftrial": ws.ftrial, "qwork": ws.qwork, "fjac": ws.fjac,
	}
	wantLen := map[string]int{
		"x": 4, "xtrial": 4, "xjac": 4,
		"fvec": 10, "ftrial": 10, "qwork": 10, "fjac": 30,
	}

	for name, b := range bufs {
		want, ok := wantLen[name]
		if !ok {
			want = 3
		}
		require.Len(t, b, want, name)
		for i := range b {
			b[i] = float64(len(name))
		}
	}
	// Buffers do not overlap.
	for name, b := range bufs {
		for _, v := range b {
			require.Equal(t, float64(len(name)), v, name)
		}
	}
	assert.Len(t, ws.ipvt, 3)
}

func TestWorkspaceResetReusesStorage(t *testing.T) {
	ws := newWorkspace(10, 4, 3)
	base := &ws.slab[0]
	ws.fjac[0] = 7

	ws.reset(6, 3, 2)
	assert.Same(t, base, &ws.slab[0])
	assert.Len(t, ws.fjac, 12)
	assert.Len(t, ws.x, 3)
	for _, v := range ws.slab {
		require.Equal(t, 0.0, v)
	}

	ws.reset(50, 10, 10)
	assert.Len(t, ws.fjac, 500)
	assert.Len(t, ws.ipvt, 10)
}

func TestWorkerParams(t *testing.T) {
	ws := newWorkspace(5, 3, 3)
	copy(ws.x, []float64{1, 2, 3})

	params := ws.workerParams(2)
	require.Len(t, params, 2)
	params[0][1] = 99
	assert.Equal(t, []float64{1, 2, 3}, params[1])
	assert.Equal(t, []float64{1, 2, 3}, ws.x)
}

package lm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copyleftdev/lmfit/internal/optimization"
)

func TestComputeReduction(t *testing.T) {
	tests := []struct {
		name          string
		fnorm, fnorm1 float64
		temp1, temp2  float64
		alpha         float64
		want          reduction
	}{
		{
			name:   "full step",
			fnorm:  2,
			fnorm1: 1,
			temp1:  0.5,
			temp2:  0.5,
			alpha:  1,
			want:   reduction{actred: 0.75, prered: 0.75, dirder: -0.5, ratio: 1},
		},
		{
			name:   "cost blew up",
			fnorm:  1,
			fnorm1: 20,
			temp1:  0.5,
			temp2:  0,
			alpha:  1,
			want:   reduction{actred: -1, prered: 0.25, dirder: -0.25, ratio: -4},
		},
		{
			name:   "truncated step",
			fnorm:  1,
			fnorm1: 1,
			temp1:  1,
			temp2:  1,
			alpha:  0.5,
			want:   reduction{actred: 0, prered: 0.75 + 1, dirder: -1, ratio: 0},
		},
		{
			name:   "no predicted reduction",
			fnorm:  1,
			fnorm1: 0.5,
			temp1:  0,
			temp2:  0,
			alpha:  1,
			want:   reduction{actred: 0.75, prered: 0, dirder: 0, ratio: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeReduction(tt.fnorm, tt.fnorm1, tt.temp1, tt.temp2, tt.alpha)
			assert.InDelta(t, tt.want.actred, got.actred, 1e-15)
			assert.InDelta(t, tt.want.prered, got.prered, 1e-15)
			assert.InDelta(t, tt.want.dirder, got.dirder, 1e-15)
			assert.InDelta(t, tt.want.ratio, got.ratio, 1e-15)
		})
	}
}

func TestUpdateTrustRegion(t *testing.T) {
	tests := []struct {
		name              string
		red               reduction
		fnorm, fnorm1     float64
		delta, pnorm, par float64
		wantDelta         float64
		wantPar           float64
	}{
		{
			name:      "very successful step grows",
			red:       reduction{actred: 0.9, prered: 0.9, ratio: 1},
			fnorm:     1,
			fnorm1:    0.3,
			delta:     1,
			pnorm:     0.8,
			par:       2,
			wantDelta: 1.6,
			wantPar:   1,
		},
		{
			name:      "Gauss-Newton step grows",
			red:       reduction{actred: 0.5, prered: 1, ratio: 0.5},
			fnorm:     1,
			fnorm1:    0.7,
			delta:     1,
			pnorm:     0.4,
			par:       0,
			wantDelta: 0.8,
			wantPar:   0,
		},
		{
			name:      "moderate step keeps radius",
			red:       reduction{actred: 0.5, prered: 1, ratio: 0.5},
			fnorm:     1,
			fnorm1:    0.7,
			delta:     1,
			pnorm:     0.4,
			par:       3,
			wantDelta: 1,
			wantPar:   3,
		},
		{
			name:      "poor step halves",
			red:       reduction{actred: 0.1, prered: 1, ratio: 0.1},
			fnorm:     1,
			fnorm1:    0.95,
			delta:     1,
			pnorm:     0.5,
			par:       2,
			wantDelta: 0.5,
			wantPar:   4,
		},
		{
			name:      "poor step limited by step length",
			red:       reduction{actred: 0.1, prered: 1, ratio: 0.1},
			fnorm:     1,
			fnorm1:    0.95,
			delta:     1,
			pnorm:     0.05,
			par:       2,
			wantDelta: 0.25,
			wantPar:   4,
		},
		{
			name:      "increase interpolates",
			red:       reduction{actred: -0.5, prered: 1, dirder: -1, ratio: -0.5},
			fnorm:     1,
			fnorm1:    1.2,
			delta:     1,
			pnorm:     1,
			par:       1,
			wantDelta: 0.4,
			wantPar:   2.5,
		},
		{
			name:      "huge increase shrinks tenfold",
			red:       reduction{actred: -1, prered: 1, dirder: -1, ratio: -1},
			fnorm:     1,
			fnorm1:    11,
			delta:     1,
			pnorm:     1,
			par:       1,
			wantDelta: 0.1,
			wantPar:   10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, par := updateTrustRegion(tt.red, tt.fnorm, tt.fnorm1, tt.delta, tt.pnorm, tt.par)
			assert.InDelta(t, tt.wantDelta, delta, 1e-15)
			assert.InDelta(t, tt.wantPar, par, 1e-12)
		})
	}
}

func TestTerminationStatus(t *testing.T) {
	cfg := optimization.DefaultConfig()
	cfg.MaxIter = 10
	cfg.MaxFev = 100

	small := reduction{actred: 1e-12, prered: 1e-12, ratio: 1}
	large := reduction{actred: 0.5, prered: 0.6, ratio: 0.83}

	tests := []struct {
		name string
		term termination
		want optimization.Status
	}{
		{
			name: "keep going",
			term: termination{red: large, delta: 1, xnorm: 1, gnorm: 1, nfev: 10, iter: 2, accepted: true},
			want: optimization.StatusUnknown,
		},
		{
			name: "chi-square converged",
			term: termination{red: small, delta: 1, xnorm: 1, gnorm: 1, nfev: 10, iter: 2, accepted: true},
			want: optimization.StatusConvergedChi,
		},
		{
			name: "parameters converged",
			term: termination{red: large, delta: 1e-12, xnorm: 1, gnorm: 1, nfev: 10, iter: 2, accepted: true},
			want: optimization.StatusConvergedPar,
		},
		{
			name: "both converged",
			term: termination{red: small, delta: 1e-12, xnorm: 1, gnorm: 1, nfev: 10, iter: 2},
			want: optimization.StatusConvergedBoth,
		},
		{
			name: "convergence beats limits",
			term: termination{red: small, delta: 1, xnorm: 1, gnorm: 1, nfev: 1000, iter: 50, accepted: true},
			want: optimization.StatusConvergedChi,
		},
		{
			name: "evaluation limit",
			term: termination{red: large, delta: 1, xnorm: 1, gnorm: 1, nfev: 100, iter: 2},
			want: optimization.StatusMaxEvaluations,
		},
		{
			name: "iteration limit after accepted step",
			term: termination{red: large, delta: 1, xnorm: 1, gnorm: 1, nfev: 10, iter: 10, accepted: true},
			want: optimization.StatusMaxIterations,
		},
		{
			name: "rejected step does not end on iterations",
			term: termination{red: reduction{actred: -1, prered: 0.5, ratio: -2}, delta: 1, xnorm: 1, gnorm: 1, nfev: 10, iter: 10},
			want: optimization.StatusUnknown,
		},
		{
			name: "radius at machine precision",
			term: termination{red: large, delta: 1e-17, xnorm: 1, gnorm: 1, nfev: 10, iter: 2},
			want: optimization.StatusXtolTooSmall,
		},
		{
			name: "gradient at machine precision",
			term: termination{red: large, delta: 1, xnorm: 1, gnorm: 1e-17, nfev: 100, iter: 2},
			want: optimization.StatusGtolTooSmall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			if tt.want == optimization.StatusXtolTooSmall {
				c.Xtol = 0
			}
			assert.Equal(t, tt.want, tt.term.status(&c))
		})
	}
}

func TestTerminationChiToleranceTooSmall(t *testing.T) {
	cfg := optimization.DefaultConfig()
	cfg.Ftol = 0

	term := termination{red: reduction{actred: 1e-17, prered: 1e-17, ratio: 1}, delta: 1, xnorm: 1, gnorm: 1, nfev: 10, iter: 2, accepted: true}
	assert.Equal(t, optimization.StatusFtolTooSmall, term.status(cfg))
}

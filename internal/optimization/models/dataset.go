// Package models provides built-in curve shapes and adapts them, together with
// a data set, to the optimization.Model residual contract.
package models

import (
	"math"

	"github.com/copyleftdev/lmfit/internal/optimization"
	"gonum.org/v1/gonum/floats"
)

// Dataset holds observations y(x) with one-sigma uncertainties ey.
type Dataset struct {
	X, Y, EY []float64
}

// NewDataset validates and copies the observations. A nil ey means unit
// uncertainties.
func NewDataset(x, y, ey []float64) (*Dataset, error) {
	const op = "NewDataset"

	if len(x) == 0 {
		return nil, optimization.WrapError(optimization.ErrEmpty, "data set has no points").
			WithComponent("models").WithOperation(op)
	}
	if len(y) != len(x) {
		return nil, optimization.WrapErrorf(optimization.ErrInput, "len(y) = %d, want %d", len(y), len(x)).
			WithComponent("models").WithOperation(op)
	}
	if ey == nil {
		ey = make([]float64, len(x))
		floats.AddConst(1, ey)
	}
	if len(ey) != len(x) {
		return nil, optimization.WrapErrorf(optimization.ErrInput, "len(ey) = %d, want %d", len(ey), len(x)).
			WithComponent("models").WithOperation(op)
	}
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return nil, optimization.WrapErrorf(optimization.ErrInput, "point %d is not finite", i).
				WithComponent("models").WithOperation(op)
		}
		if !(ey[i] > 0) || math.IsInf(ey[i], 1) {
			return nil, optimization.WrapErrorf(optimization.ErrInput, "uncertainty %d must be positive and finite, got %g", i, ey[i]).
				WithComponent("models").WithOperation(op)
		}
	}

	d := &Dataset{
		X:  make([]float64, len(x)),
		Y:  make([]float64, len(y)),
		EY: make([]float64, len(ey)),
	}
	copy(d.X, x)
	copy(d.Y, y)
	copy(d.EY, ey)
	return d, nil
}

// Len returns the number of points.
func (d *Dataset) Len() int { return len(d.X) }

// Span returns the width of the x range.
func (d *Dataset) Span() float64 {
	return floats.Max(d.X) - floats.Min(d.X)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

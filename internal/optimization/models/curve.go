package models

import (
	"github.com/copyleftdev/lmfit/internal/optimization"
	"gonum.org/v1/gonum/floats"
)

// Curve binds a Shape to a Dataset. It implements optimization.Model with
// deviates (y - f(x)) / ey.
type Curve struct {
	Shape Shape
	Data  *Dataset
}

var _ optimization.Model = (*Curve)(nil)

// NewCurve creates a residual model for shape over d.
func NewCurve(shape Shape, d *Dataset) *Curve {
	return &Curve{Shape: shape, Data: d}
}

// NumResiduals implements optimization.Model.
func (c *Curve) NumResiduals() int { return c.Data.Len() }

// NumParams returns the length of the shape's parameter vector.
func (c *Curve) NumParams() int { return len(c.Shape.ParamNames()) }

// Residuals implements optimization.Model.
func (c *Curve) Residuals(params, deviates []float64) error {
	if len(params) != c.NumParams() {
		return optimization.NewErrorf("%s takes %d parameters, got %d", c.Shape.Name(), c.NumParams(), len(params)).
			WithComponent("models").WithOperation("Curve.Residuals")
	}
	c.predict(params, deviates)
	floats.SubTo(deviates, c.Data.Y, deviates)
	floats.Div(deviates, c.Data.EY)
	return nil
}

// Predict returns the curve evaluated at every x of the data set.
func (c *Curve) Predict(params []float64) []float64 {
	out := make([]float64, c.Data.Len())
	c.predict(params, out)
	return out
}

func (c *Curve) predict(params, dst []float64) {
	for i, x := range c.Data.X {
		dst[i] = c.Shape.Eval(x, params)
	}
}

package server

import (
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/copyleftdev/lmfit/internal/optimization"
	"github.com/copyleftdev/lmfit/internal/optimization/models"
)

// FitRequest describes a fit job: a built-in model, the observations and the
// optional starting point, per-parameter constraints and fitter overrides.
type FitRequest struct {
	Model  string          `json:"model" validate:"required,model"`
	X      []float64       `json:"x" validate:"required,min=1"`
	Y      []float64       `json:"y" validate:"required,min=1"`
	EY     []float64       `json:"ey,omitempty" validate:"omitempty,dive,gt=0"`
	Init   []float64       `json:"init,omitempty"`
	Params []ParamSpec     `json:"params,omitempty" validate:"omitempty,dive"`
	Config *ConfigOverride `json:"config,omitempty"`
}

// ParamSpec constrains one parameter. Absent limits are unbounded.
type ParamSpec struct {
	Fixed   bool     `json:"fixed,omitempty"`
	Lower   *float64 `json:"lower,omitempty"`
	Upper   *float64 `json:"upper,omitempty"`
	Step    float64  `json:"step,omitempty" validate:"gte=0"`
	RelStep float64  `json:"rel_step,omitempty" validate:"gte=0"`
}

// ConfigOverride replaces individual fitter defaults.
type ConfigOverride struct {
	Ftol            *float64  `json:"ftol,omitempty" validate:"omitempty,gte=0"`
	Xtol            *float64  `json:"xtol,omitempty" validate:"omitempty,gte=0"`
	Gtol            *float64  `json:"gtol,omitempty" validate:"omitempty,gte=0"`
	Epsfcn          *float64  `json:"epsfcn,omitempty" validate:"omitempty,gte=0"`
	StepFactor      *float64  `json:"step_factor,omitempty" validate:"omitempty,gt=0"`
	CovTol          *float64  `json:"cov_tol,omitempty" validate:"omitempty,gte=0"`
	MaxIter         *int      `json:"max_iter,omitempty" validate:"omitempty,gte=0"`
	MaxFev          *int      `json:"max_fev,omitempty" validate:"omitempty,gte=0"`
	ScaleCovariance *bool     `json:"scale_covariance,omitempty"`
	Diag            []float64 `json:"diag,omitempty" validate:"omitempty,dive,gt=0"`
}

// StatusRequest names a job for the status and cancel methods.
type StatusRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("model", func(fl validator.FieldLevel) bool {
		_, err := models.Lookup(fl.Field().String())
		return err == nil
	})
	v.RegisterStructValidation(fitRequestLevel, FitRequest{})
	v.RegisterStructValidation(paramSpecLevel, ParamSpec{})
	return v
}

func fitRequestLevel(sl validator.StructLevel) {
	req := sl.Current().Interface().(FitRequest)
	n := len(req.X)
	if len(req.Y) != n {
		sl.ReportError(req.Y, "Y", "y", "len_x", "")
	}
	if req.EY != nil && len(req.EY) != n {
		sl.ReportError(req.EY, "EY", "ey", "len_x", "")
	}

	shape, err := models.Lookup(req.Model)
	if err != nil {
		return
	}
	k := len(shape.ParamNames())
	if req.Init != nil && len(req.Init) != k {
		sl.ReportError(req.Init, "Init", "init", "len_params", "")
	}
	if req.Params != nil && len(req.Params) != k {
		sl.ReportError(req.Params, "Params", "params", "len_params", "")
	}
	if req.Config != nil && req.Config.Diag != nil && len(req.Config.Diag) != k {
		sl.ReportError(req.Config.Diag, "Diag", "diag", "len_params", "")
	}
}

func paramSpecLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(ParamSpec)
	if p.Lower != nil && p.Upper != nil && !(*p.Lower < *p.Upper) {
		sl.ReportError(p.Upper, "Upper", "upper", "gtfield", "Lower")
	}
}

// Param converts p into an optimization.Param.
func (p ParamSpec) Param() optimization.Param {
	var out optimization.Param
	switch {
	case p.Fixed:
		out = optimization.Fixed()
	case p.Lower != nil && p.Upper != nil:
		out = optimization.Bounded(*p.Lower, *p.Upper)
	case p.Lower != nil:
		out = optimization.AtLeast(*p.Lower)
	case p.Upper != nil:
		out = optimization.AtMost(*p.Upper)
	default:
		out = optimization.Free()
	}
	if p.Step > 0 {
		out = out.WithStep(p.Step)
	}
	if p.RelStep > 0 {
		out = out.WithRelStep(p.RelStep)
	}
	return out
}

// Apply overlays the overrides onto base.
func (o *ConfigOverride) Apply(base optimization.Config) optimization.Config {
	if o == nil {
		return base
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil && !math.IsNaN(*v) {
			*dst = *v
		}
	}
	setFloat(&base.Ftol, o.Ftol)
	setFloat(&base.Xtol, o.Xtol)
	setFloat(&base.Gtol, o.Gtol)
	setFloat(&base.Epsfcn, o.Epsfcn)
	setFloat(&base.StepFactor, o.StepFactor)
	setFloat(&base.CovTol, o.CovTol)
	if o.MaxIter != nil {
		base.MaxIter = *o.MaxIter
	}
	if o.MaxFev != nil {
		base.MaxFev = *o.MaxFev
	}
	if o.ScaleCovariance != nil {
		base.ScaleCovariance = *o.ScaleCovariance
	}
	if o.Diag != nil {
		base.Diag = append([]float64(nil), o.Diag...)
	}
	return base
}

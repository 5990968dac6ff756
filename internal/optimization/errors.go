package optimization

import (
	"errors"
	"fmt"
)

// Sentinel kinds carried by *Error. Use errors.Is to test for them.
var (
	// ErrInput reports malformed input such as a parameter configuration
	// whose length does not match the parameter vector.
	ErrInput = errors.New("invalid input")
	// ErrEmpty reports a model with no residuals or an empty parameter vector.
	ErrEmpty = errors.New("no data points or parameters")
	// ErrNoFree reports that every parameter is fixed.
	ErrNoFree = errors.New("no free parameters")
	// ErrInitBounds reports an initial value outside its declared bounds.
	ErrInitBounds = errors.New("initial values inconsistent with constraints")
	// ErrBounds reports inverted or NaN bounds.
	ErrBounds = errors.New("inconsistent parameter bounds")
	// ErrDoF reports fewer residuals than free parameters.
	ErrDoF = errors.New("not enough degrees of freedom")
	// ErrEvaluation reports a failure of the residual function.
	ErrEvaluation = errors.New("residual evaluation failed")
	// ErrNonFinite reports a residual function that produced NaN or Inf.
	ErrNonFinite = errors.New("residual function produced non-finite values")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new optimization error with the given message.
func NewError(message string) *Error {
	return &Error{
		Message: message,
	}
}

// NewErrorf creates a new optimization error with formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// EvaluationError wraps a failure returned by a residual function so that
// both ErrEvaluation and the model's own error match with errors.Is.
func EvaluationError(cause error) *Error {
	return &Error{
		Message: "model could not be evaluated",
		Err:     fmt.Errorf("%w: %w", ErrEvaluation, cause),
	}
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsConfigError reports whether err was raised while validating the fit
// configuration, before any iteration ran.
func IsConfigError(err error) bool {
	for _, kind := range []error{ErrInput, ErrEmpty, ErrNoFree, ErrInitBounds, ErrBounds, ErrDoF} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsEvaluationError reports whether err originated in the residual function.
func IsEvaluationError(err error) bool {
	return errors.Is(err, ErrEvaluation) || errors.Is(err, ErrNonFinite)
}

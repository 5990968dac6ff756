// Package errors provides the service's HTTP-aware error type and the
// middleware that reports it.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Error carries the operation and component that failed along with the HTTP
// status the failure maps to.
type Error struct {
	Err       error
	Message   string
	Operation string
	Component string
	// Status is the HTTP status to answer with; 0 defers to the wrapped error.
	Status int
}

// Error renders "message: operation=op, component=c: cause", skipping empty
// parts.
func (e *Error) Error() string {
	var ctx []string
	if e.Operation != "" {
		ctx = append(ctx, "operation="+e.Operation)
	}
	if e.Component != "" {
		ctx = append(ctx, "component="+e.Component)
	}

	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(ctx) > 0 {
		parts = append(parts, strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// WithOperation records the operation that failed.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent records the component that failed.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithStatus sets the HTTP status reported for the error.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

func New(msg string) *Error {
	return &Error{Message: msg}
}

func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches msg to err. An *Error is updated in place so its status and
// context survive; a nil err yields nil.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		e = &Error{Err: err}
	}
	if msg != "" {
		e.Message = msg
	}
	return e
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// HTTPStatus returns the status of the first *Error in err's chain that
// carries one, or 500.
func HTTPStatus(err error) int {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			break
		}
		if e.Status != 0 {
			return e.Status
		}
		err = e.Err
	}
	return http.StatusInternalServerError
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

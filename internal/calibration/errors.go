package calibration

import (
	"errors"
	"fmt"
)

// Kind classifies a calibration error so callers can branch on the
// failure class without parsing messages.
type Kind int

const (
	// KindUnknown is the zero value for errors with no assigned class.
	KindUnknown Kind = iota
	// KindShape marks dimension or length mismatches between inputs.
	KindShape
	// KindDomain marks invalid values (e.g. a zero standard deviation).
	KindDomain
	// KindIndex marks out-of-range iteration or row indices.
	KindIndex
	// KindComputation marks numerical failures such as a non-converged
	// eigendecomposition.
	KindComputation
)

// Sentinel errors for each kind, usable with errors.Is.
var (
	ErrShape       = errors.New("shape mismatch")
	ErrDomain      = errors.New("domain error")
	ErrIndex       = errors.New("index out of range")
	ErrComputation = errors.New("computation failed")
)

// Error represents a calibration error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Kind is the failure class.
	Kind Kind
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

// Is reports whether the error matches one of the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrShape:
		return e.Kind == KindShape
	case ErrDomain:
		return e.Kind == KindDomain
	case ErrIndex:
		return e.Kind == KindIndex
	case ErrComputation:
		return e.Kind == KindComputation
	}
	return false
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

// NewError creates a new calibration error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// NewErrorf creates a new calibration error with formatted message.
func NewErrorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	kind := KindUnknown
	var ce *Error
	if errors.As(err, &ce) {
		kind = ce.Kind
	}
	return &Error{
		Kind:    kind,
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
	return WrapError(err, fmt.Sprintf(format, args...))
}

// IsCalibrationError checks if an error is of type Error.
// If the error is a calibration error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsCalibrationError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

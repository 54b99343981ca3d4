// Package stitcherr defines the error kinds shared by every stitching stage.
package stitcherr

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrInvalidOption           = errors.New("invalid option")
	ErrInvalidLocation         = errors.New("invalid location")
	ErrInputMismatch           = errors.New("input mismatch")
	ErrUnsupportedFormat       = errors.New("unsupported format")
	ErrUnreadableSource        = errors.New("unreadable source")
	ErrEmptyInput              = errors.New("empty input")
	ErrTooManyInputs           = errors.New("too many inputs")
	ErrLayoutInfeasible        = errors.New("layout infeasible")
	ErrDecode                  = errors.New("decode error")
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")
	ErrWrite                   = errors.New("write error")
)

// Stage names reported in Error.Stage
const (
	StageConfiguring = "configuring"
	StageCollecting  = "collecting"
	StageBuilding    = "building"
	StageLayout      = "layout"
	StageCompositing = "compositing"
	StageEncoding    = "encoding"
)

// Error is the single terminal error a stitch run reports.
type Error struct {
	Kind    error
	Stage   string
	Message string
	Err     error
}

// Error formats the error as "stage: message: cause".
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// New creates an error of the given kind without an underlying cause.
func New(kind error, stage, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an error of the given kind that preserves cause.
func Wrap(kind error, stage string, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// KindOf returns the kind of err, or nil if err carries none.
func KindOf(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return nil
}

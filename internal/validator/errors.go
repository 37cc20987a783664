package validator

import (
	"fmt"

	"github.com/runbookd/runbookd/internal/dsl"
)

// ErrorKind enumerates the validation error variants surfaced per call.
type ErrorKind int

const (
	UnknownVerb ErrorKind = iota
	UnknownArg
	MissingRequired
	TypeMismatch
	ValidationFailed
	ConstraintViolation
	SymbolError
	UnknownRef
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownVerb:
		return "UnknownVerb"
	case UnknownArg:
		return "UnknownArg"
	case MissingRequired:
		return "MissingRequired"
	case TypeMismatch:
		return "TypeMismatch"
	case ValidationFailed:
		return "ValidationFailed"
	case ConstraintViolation:
		return "ConstraintViolation"
	case SymbolError:
		return "SymbolError"
	case UnknownRef:
		return "UnknownRef"
	default:
		return "Unknown"
	}
}

// ValidationError is one span-tagged defect found while validating a call.
// Errors never short-circuit within a call — every applicable check runs
// and contributes its own error.
type ValidationError struct {
	Kind        ErrorKind
	Message     string
	Span        dsl.Span
	CallIndex   int
	Suggestions []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Span.Line, e.Span.Col, e.Message)
}

// ValidationReport collects every error found across the whole program.
// A non-empty report means the program is rejected in its entirety — no
// partial ValidatedAst is returned alongside it (INV-1).
type ValidationReport struct {
	Errors []*ValidationError
}

func (r *ValidationReport) add(e *ValidationError) {
	r.Errors = append(r.Errors, e)
}

// HasErrors reports whether any error was recorded.
func (r *ValidationReport) HasErrors() bool {
	return len(r.Errors) > 0
}

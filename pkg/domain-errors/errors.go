// Package domainerrors defines the coded error taxonomy returned by the ledger core.
//
// Stores return sentinel facts (see pkg/platform/sentinel); services translate
// them into one of the codes below so callers can render a response without
// inspecting store internals. Import it as dErrors.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeNotFound: a referenced id does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict: uniqueness violation, guarded delete or duplicate association.
	CodeConflict Code = "conflict"
	// CodeValidation: malformed value reached the core.
	CodeValidation Code = "validation_error"
	// CodeStorage: the persistent store failed to read, write or commit,
	// including a unit of work that ran out of time.
	CodeStorage Code = "storage_error"
	// CodeInvariantViolation is raised by model constructors and converted to
	// CodeValidation at the service boundary.
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded error carrying the entity context needed to render a message.
type Error struct {
	Code     Code
	Message  string
	Entity   string
	EntityID int64
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// For returns a copy of e bound to an entity kind and id.
func (e *Error) For(entity string, id int64) *Error {
	cp := *e
	cp.Entity = entity
	cp.EntityID = id
	return &cp
}

// HasCode reports whether any coded error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or "" when err is not coded.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// NotFound builds a CodeNotFound error for an entity.
func NotFound(entity string, id int64) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s with ID %d not found", entity, id)).For(entity, id)
}

// Conflict builds a CodeConflict error for an entity.
func Conflict(entity string, id int64, reason string) *Error {
	return New(CodeConflict, reason).For(entity, id)
}

// Validation builds a CodeValidation error.
func Validation(entity string, reason string) *Error {
	return &Error{Code: CodeValidation, Message: reason, Entity: entity}
}

// Storage wraps a store failure.
func Storage(err error, msg string) *Error {
	return Wrap(err, CodeStorage, msg)
}

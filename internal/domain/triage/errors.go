package triage

import (
	"errors"
	"fmt"
)

// Code is the machine-readable error code returned to API callers.
type Code string

const (
	CodeEncounterNotFound Code = "ENCOUNTER_NOT_FOUND"
	CodeAlreadyTriaged    Code = "ALREADY_TRIAGED"
	CodeInvalidVitals     Code = "INVALID_VITALS"
	CodeInvalidRequest    Code = "INVALID_REQUEST"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInternal          Code = "INTERNAL"
)

// Kind groups codes by how a caller should react.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

var codeKinds = map[Code]Kind{
	CodeEncounterNotFound: KindNotFound,
	CodeAlreadyTriaged:    KindConflict,
	CodeInvalidVitals:     KindValidation,
	CodeInvalidRequest:    KindValidation,
	CodeNotFound:          KindNotFound,
	CodeInternal:          KindInternal,
}

// Error is the error type returned by the triage service and repositories.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Kind returns the category of the error.
func (e *Error) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindInternal
}

var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "triage record not found"}
	ErrAlreadyTriaged    = &Error{Code: CodeAlreadyTriaged, Message: "encounter already has an active triage record"}
	ErrEncounterNotFound = &Error{Code: CodeEncounterNotFound, Message: "encounter not found"}
)

// KindOf returns the kind of err, treating unknown errors as internal.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind()
	}
	return KindInternal
}

// CodeOf returns the code of err, treating unknown errors as INTERNAL.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeInternal
}

func invalidVitals(msg string) error {
	return &Error{Code: CodeInvalidVitals, Message: msg}
}

func invalidRequest(format string, args ...interface{}) error {
	return &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func internal(msg string, err error) error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

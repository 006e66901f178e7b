package service

import (
	"errors"
	"fmt"
)

// Reason classifies why a translation request failed.
type Reason string

const (
	// ReasonInvalidInput means the text was empty after trimming.
	ReasonInvalidInput Reason = "invalid_input"
	// ReasonSameLanguage means source and target resolved to the same code.
	ReasonSameLanguage Reason = "same_language"
	// ReasonEngineConstruction means no engine could be built.
	ReasonEngineConstruction Reason = "engine_construction_failure"
	// ReasonEngineFailure means the engine failed to translate.
	ReasonEngineFailure Reason = "engine_failure"
)

// ClientError reports whether the caller can fix the failure by changing the
// request.
func (r Reason) ClientError() bool {
	return r == ReasonInvalidInput || r == ReasonSameLanguage
}

// Error is the only error type returned by Resolver.Translate.
type Error struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same reason, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput       = &Error{Reason: ReasonInvalidInput, Message: "invalid input"}
	ErrSameLanguage       = &Error{Reason: ReasonSameLanguage, Message: "same language"}
	ErrEngineConstruction = &Error{Reason: ReasonEngineConstruction, Message: "engine construction failure"}
	ErrEngineFailure      = &Error{Reason: ReasonEngineFailure, Message: "engine failure"}
)

func newError(reason Reason, err error, format string, args ...interface{}) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...), Err: err}
}

// ReasonOf returns the reason carried by err, or ReasonEngineFailure when err
// is not classified.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonEngineFailure
}

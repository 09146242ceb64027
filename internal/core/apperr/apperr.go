// Package apperr defines the error kinds that cross the vbrief boundary.
//
// Lower layers wrap their failures with fmt.Errorf and %w as usual. Where a
// failure has a meaning the caller must act on (a rejected follow-up, a video
// that is too long), it is tagged with a Kind so the HTTP and CLI layers can
// report it without leaking internal type names.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	InvalidSource        Kind = "InvalidSource"
	CaptionsUnavailable  Kind = "CaptionsUnavailable" // internal only, never surfaced
	DurationExceeded     Kind = "DurationExceeded"
	EmptyAudio           Kind = "EmptyAudio"
	TranscriptionFailure Kind = "TranscriptionFailure"
	ExtractionFailed     Kind = "ExtractionFailed"
	ProviderError        Kind = "ProviderError"
	FollowUpLimitReached Kind = "FollowUpLimitReached"
	NoActiveContext      Kind = "NoActiveContext"
	FollowUpInProgress   Kind = "FollowUpInProgress"
	InvalidRequest       Kind = "InvalidRequest"
	Internal             Kind = "Internal"
)

// Error is a classified error with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the outermost Kind in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the message to show an end user. Internal errors get a
// generic message so wrapped library errors never cross the boundary verbatim.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	return "internal error"
}

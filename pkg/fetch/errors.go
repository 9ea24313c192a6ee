package fetch

import (
	"errors"
	"fmt"
)

// Code is the top-level classification surfaced to callers.
type Code string

const (
	CodeWrongHost          Code = "WRONG_HOST"
	CodeNotLoggedIn        Code = "NOT_LOGGED_IN"
	CodeMissingCredentials Code = "MISSING_CREDENTIALS"
	CodeCrossOrigin        Code = "CROSS_ORIGIN"
	CodeHTTPError          Code = "HTTP_ERROR"
	CodeParseError         Code = "PARSE_ERROR"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeMessagingError     Code = "MESSAGING_ERROR"
	CodeUnexpected         Code = "UNEXPECTED"
)

const (
	HintWrongHost          = "Open your league or team page on fantasy.espn.com"
	HintNotLoggedIn        = "Log into https://www.espn.com/, refresh the fantasy page, then retry."
	HintMissingCredentials = "No SWID/espn_s2 session cookies found; log into espn.com or set espn.swid and espn.s2."
)

// Error is a hard failure of a whole operation.
type Error struct {
	Code       Code          `json:"code"`
	Status     int           `json:"status,omitempty"`
	StatusText string        `json:"statusText,omitempty"`
	Hint       string        `json:"hint,omitempty"`
	Message    string        `json:"message,omitempty"`
	Failures   []ViewFailure `json:"failures,omitempty"`
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status=%d %s)", e.Status, e.StatusText)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

// CodeOf returns the code of a *Error anywhere in err's chain, or CodeUnexpected.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUnexpected
}

// FromOutcome promotes a single failed outcome to an operation-level error.
func FromOutcome(o Outcome) *Error {
	if o.IsAuthFailure() {
		return &Error{Code: CodeNotLoggedIn, Status: o.Status, StatusText: o.StatusText, Hint: HintNotLoggedIn}
	}
	e := &Error{Message: o.Message}
	switch o.Kind {
	case KindHTTPError:
		e.Code = CodeHTTPError
		e.Status = o.Status
		e.StatusText = o.StatusText
	case KindCrossOrigin:
		e.Code = CodeCrossOrigin
	case KindParseError:
		e.Code = CodeParseError
	case KindMessagingError:
		e.Code = CodeMessagingError
	case KindMissingCredentials:
		e.Code = CodeMissingCredentials
		e.Hint = HintMissingCredentials
	default:
		e.Code = CodeNetworkError
	}
	return e
}

// Classify picks the top-level error for a batch in which every view failed.
// An authentication failure anywhere outranks the first failure's own kind.
func Classify(failures []ViewFailure) *Error {
	if len(failures) == 0 {
		return &Error{Code: CodeUnexpected, Message: "no views were requested"}
	}
	pick := failures[0].Outcome
	for _, f := range failures {
		if f.Outcome.IsAuthFailure() {
			pick = f.Outcome
			break
		}
	}
	e := FromOutcome(pick)
	e.Failures = failures
	return e
}

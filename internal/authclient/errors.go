package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates where an Error came from.
type Kind string

const (
	KindMissingCredentials Kind = "missing_credentials"
	KindInvalidInput       Kind = "invalid_input"
	KindHTTP               Kind = "http"
	KindNetwork            Kind = "network"
)

// User-facing messages.
const (
	MsgMissingCredentials = "Please provide both email/username and password."
	MsgAllFieldsRequired  = "All fields are required."
	MsgPasswordTooShort   = "Password must be at least 8 characters long."

	MsgIncorrectCredentials = "Email/username or password is incorrect."
	MsgAccountExists        = "An account with this email or username already exists."
	MsgCheckInput           = "Please check your input and try again."
	MsgRateLimited          = "Too many attempts. Please wait a moment and try again."
	MsgServerError          = "Something went wrong on our end. Please try again."
	MsgNetwork              = "Unable to reach the server. Please check your connection and try again."
	MsgGeneric              = "Unable to complete the request. Please try again."
)

const minPasswordLength = 8

// ErrProbeSuperseded is returned by RefreshMe when a newer probe or a
// sign-in/out replaced it before it finished. Its result was discarded.
var ErrProbeSuperseded = errors.New("authclient: probe superseded")

// Error is every failure produced at the HTTP boundary or by client-side
// validation. Message holds the server's text for KindHTTP and is never
// shown to users; use NormalizeAuthError for that.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		if e.Message != "" {
			return fmt.Sprintf("authclient: http %d: %s", e.Status, e.Message)
		}
		return fmt.Sprintf("authclient: http %d", e.Status)
	case KindNetwork:
		return fmt.Sprintf("authclient: network: %v", e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// NormalizeAuthError maps any error to a message fit for the UI. It never
// returns a server-provided body.
func NormalizeAuthError(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		if errors.Is(err, context.DeadlineExceeded) {
			return MsgNetwork
		}
		return MsgGeneric
	}

	switch ae.Kind {
	case KindMissingCredentials, KindInvalidInput:
		return ae.Message
	case KindNetwork:
		return MsgNetwork
	}

	switch {
	case ae.Status == http.StatusUnauthorized, ae.Status == http.StatusForbidden:
		return MsgIncorrectCredentials
	case ae.Status == http.StatusConflict:
		return MsgAccountExists
	case ae.Status == http.StatusUnprocessableEntity:
		return MsgCheckInput
	case ae.Status == http.StatusTooManyRequests:
		return MsgRateLimited
	case ae.Status >= 500:
		return MsgServerError
	default:
		return MsgGeneric
	}
}

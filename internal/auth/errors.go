package auth

import (
	"errors"
	"net/http"
	"sort"
)

type ErrorKind string

const (
	KindMissingCredentials   ErrorKind = "missing_credentials"
	KindInvalidCredentials   ErrorKind = "invalid_credentials"
	KindUnauthenticated      ErrorKind = "unauthenticated"
	KindValidationFailed     ErrorKind = "validation_failed"
	KindProvisioningConflict ErrorKind = "provisioning_conflict"
)

// MsgTaken is the field error for uniqueness violations.
const MsgTaken = "has already been taken"

// Error is the single error type returned by the auth core. Kind is the
// discriminant handlers switch on; Message is safe to show to users.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  FieldErrors
}

var (
	ErrMissingCredentials = &Error{Kind: KindMissingCredentials, Message: "Login and password are required"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Invalid login or password"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "You must be logged in"}
)

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same Kind, so errors.Is(err,
// ErrInvalidCredentials) works for every instance of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindMissingCredentials:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidationFailed, KindProvisioningConflict:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func ValidationFailed(fields FieldErrors) *Error {
	return &Error{Kind: KindValidationFailed, Message: "Validation failed", Fields: fields}
}

func ProvisioningConflict(fields FieldErrors) *Error {
	return &Error{Kind: KindProvisioningConflict, Message: "Account could not be provisioned", Fields: fields}
}

// KindOf returns the kind of an auth error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// FieldErrors collects per-field validation messages.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

// Keys returns the failing fields in sorted order.
func (f FieldErrors) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

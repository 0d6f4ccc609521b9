// Package auth - errors.go classifies gate failures. Every gate either passes
// or produces exactly one *Error; anything else is an infrastructure failure.
package auth

import (
	"errors"
	"net/http"
)

// Kind is the class of an authorization failure.
type Kind int

const (
	KindUnauthenticated Kind = iota + 1
	KindForbidden
	KindBadRequest
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind to its caller-visible status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified gate failure. Message is safe to return to the caller;
// Err carries the internal reason for logging only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Caller-visible messages.
const (
	MsgTokenRequired               = "token required"
	MsgInvalidToken                = "invalid or expired token"
	MsgAuthenticationRequired      = "authentication required"
	MsgInsufficientPermissions     = "insufficient permissions"
	MsgOrganizationIDRequired      = "organization id required"
	MsgOrganizationAccessDenied    = "access denied to this organization"
	MsgOrganizationContextRequired = "organization context required"
	MsgProjectIDRequired           = "project id required"
	MsgProjectNotFound             = "project not found"
	MsgProjectAccessDenied         = "access denied to this project"
)

// Unauthenticated builds a KindUnauthenticated error.
func Unauthenticated(message string, cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message, Err: cause}
}

// Forbidden builds a KindForbidden error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// BadRequest builds a KindBadRequest error.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// NotFound builds a KindNotFound error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// AsError extracts a classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// IsKind reports whether err is a classified error of kind k.
func IsKind(err error, k Kind) bool {
	authErr, ok := AsError(err)
	return ok && authErr.Kind == k
}

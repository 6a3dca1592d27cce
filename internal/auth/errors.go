package auth

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindAuthenticationFailed Kind = iota
	KindMissingToken
	KindTokenExpired
	KindTokenMalformed
	KindSignatureInvalid
	KindAccessDenied
)

type descriptor struct {
	err        string
	code       string
	message    string
	suggestion string
	details    string
}

var descriptors = map[Kind]descriptor{
	KindAuthenticationFailed: {
		err:        "AUTHENTICATION_FAILED",
		code:       "AUTH_000",
		message:    "Authentication failed",
		suggestion: "Check that your token is valid and has not expired",
	},
	KindMissingToken: {
		err:        "MISSING_TOKEN",
		code:       "AUTH_001",
		message:    "Authentication token is required",
		suggestion: "Send a valid JWT in the Authorization header using the format 'Bearer <token>'",
	},
	KindTokenExpired: {
		err:        "TOKEN_EXPIRED",
		code:       "AUTH_002",
		message:    "The JWT has expired",
		suggestion: "Obtain a new access token with your refresh token or sign in again",
		details:    "The token is well formed but past its lifetime",
	},
	KindTokenMalformed: {
		err:        "TOKEN_MALFORMED",
		code:       "AUTH_003",
		message:    "The JWT is malformed or invalid",
		suggestion: "Make sure the token is encoded correctly and has not been altered",
		details:    "The token is not a well-formed JWT",
	},
	KindSignatureInvalid: {
		err:        "TOKEN_SIGNATURE_INVALID",
		code:       "AUTH_004",
		message:    "The JWT signature is not valid",
		suggestion: "The token may have been altered or was not issued by the expected identity provider",
		details:    "Signature verification failed",
	},
	KindAccessDenied: {
		err:        "ACCESS_DENIED",
		code:       "AUTH_403",
		message:    "Access denied: you do not have permission to access this resource",
		suggestion: "Contact the system administrator to obtain the required permissions",
		details:    "The user is authenticated but lacks the required roles",
	},
}

// Error is an authentication or authorization failure with a stable code.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	d := descriptors[e.Kind]
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", d.err, e.Err)
	}
	return d.err
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int {
	if e.Kind == KindAccessDenied {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

func (e *Error) Name() string       { return descriptors[e.Kind].err }
func (e *Error) Code() string       { return descriptors[e.Kind].code }
func (e *Error) Message() string    { return descriptors[e.Kind].message }
func (e *Error) Suggestion() string { return descriptors[e.Kind].suggestion }

func (e *Error) Details() string {
	if d := descriptors[e.Kind].details; d != "" {
		return d
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var authErr *Error
	return errors.As(err, &authErr) && authErr.Kind == kind
}

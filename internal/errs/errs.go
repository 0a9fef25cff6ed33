// Package errs defines the closed error taxonomy shared by every gateway
// component. The kind is machine-readable so the UI can branch on it; the
// message is human-readable and already localized.
package errs

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"terminal-core/pkg/i18n"
	"terminal-core/pkg/log"
)

// Kind classifies an error.
type Kind int

const (
	// KindConfig marks malformed or missing settings. Fatal, never retried.
	KindConfig Kind = iota
	// KindConnection marks transport-level connect failures. Retried with backoff.
	KindConnection
	// KindNetwork marks transient network faults. Retried with backoff.
	KindNetwork
	// KindAuthentication marks rejected logins.
	KindAuthentication
	// KindAPI carries a native engine rejection verbatim.
	KindAPI
	// KindValidation marks local pre-flight failures; the request never hit the wire.
	KindValidation
	// KindState marks operations invalid for the current state.
	KindState
	// KindTimeout marks a missing response within the configured window.
	KindTimeout
	// KindNotFound marks references to unknown orders or subscriptions.
	KindNotFound
	// KindConversion marks text-decoding failures at the engine boundary.
	KindConversion
)

var kindCodes = map[Kind]string{
	KindConfig:         "CONFIG_ERROR",
	KindConnection:     "CONNECTION_ERROR",
	KindNetwork:        "NETWORK_ERROR",
	KindAuthentication: "AUTH_ERROR",
	KindAPI:            "API_ERROR",
	KindValidation:     "VALIDATION_ERROR",
	KindState:          "STATE_ERROR",
	KindTimeout:        "TIMEOUT_ERROR",
	KindNotFound:       "NOT_FOUND",
	KindConversion:     "CONVERSION_ERROR",
}

// String returns the stable code for the kind, e.g. "STATE_ERROR".
func (k Kind) String() string {
	if s, ok := kindCodes[k]; ok {
		return s
	}
	return "UNKNOWN_ERROR"
}

// Error is the gateway error type. APICode is only set for KindAPI.
type Error struct {
	Kind    Kind
	APICode int
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.Kind == KindAPI {
		return fmt.Sprintf("%s (%d): %s", kindCodes[e.Kind], e.APICode, e.Message)
	}
	return fmt.Sprintf("%s: %s", kindCodes[e.Kind], e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Code returns the machine string for logs and monitoring.
func (e *Error) Code() string { return kindCodes[e.Kind] }

// Retryable reports whether SessionManager/SubscriptionManager may retry the
// failed operation.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindConnection, KindNetwork, KindTimeout:
		return true
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind that unwraps to cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: cause}
}

// FromAPICode maps a native engine error code to an error. Known codes get a
// localized message and a specific kind; unknown codes become KindAPI with
// the raw message and are logged in full for later diagnosis. code must be
// non-zero: zero means success and indicates a bug in the caller.
func FromAPICode(code int, rawMsg string) *Error {
	if code == 0 {
		return New(KindState, "success must not be converted to an error")
	}
	if msg, ok := i18n.EngineCodeMessage(code); ok {
		return &Error{Kind: kindForCode(code), APICode: code, Message: msg}
	}
	log.Warn("unknown engine error code",
		zap.Int("code", code), zap.String("message", rawMsg))
	return &Error{Kind: KindAPI, APICode: code, Message: rawMsg}
}

func kindForCode(code int) Kind {
	switch code {
	case -1, -7, -9, -15:
		return KindNetwork
	case -11, -12:
		return KindConfig
	default:
		return KindAuthentication
	}
}

// KindOf extracts the kind from err. ok is false when err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

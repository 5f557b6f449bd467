package domain

import (
	"context"
	"errors"
)

// Kind is the stable classification callers switch on. Values are part of the API.
type Kind string

const (
	KindLeadAlreadyClaimed     Kind = "LEAD_ALREADY_CLAIMED"
	KindContractorNotEligible  Kind = "CONTRACTOR_NOT_ELIGIBLE"
	KindInsufficientCredit     Kind = "INSUFFICIENT_CREDIT"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindNotFound               Kind = "NOT_FOUND"
	KindInvalidInput           Kind = "INVALID_INPUT"
	KindTimeout                Kind = "TIMEOUT"
	KindUnavailable            Kind = "UNAVAILABLE"
	KindInternal               Kind = "INTERNAL"
)

// Error is a domain error. Two errors match under errors.Is when their kinds match,
// so callers can test against the package sentinels regardless of message.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a domain error with a caller-facing message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError attaches a cause to a domain error of the given kind.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

var (
	ErrLeadAlreadyClaimed     = NewError(KindLeadAlreadyClaimed, "Lead has already been claimed")
	ErrContractorNotEligible  = NewError(KindContractorNotEligible, "Contractor account is not approved")
	ErrInsufficientCredit     = NewError(KindInsufficientCredit, "Insufficient credit balance")
	ErrInvalidStateTransition = NewError(KindInvalidStateTransition, "Invalid state transition")
	ErrNotFound               = NewError(KindNotFound, "Not found")
	ErrInvalidInput           = NewError(KindInvalidInput, "Invalid input")
	ErrTimeout                = NewError(KindTimeout, "Operation timed out")
	ErrUnavailable            = NewError(KindUnavailable, "Service temporarily unavailable, try again later")
	ErrInternal               = NewError(KindInternal, "Internal Server Error")

	ErrLeadNotFound       = NewError(KindNotFound, "Lead not found")
	ErrContractorNotFound = NewError(KindNotFound, "Contractor account not found")
	ErrInvalidCode        = NewError(KindNotFound, "Invalid or expired verification code")
)

// ErrLeadNotCancellable is returned when a customer tries to cancel a lead that
// already left the open state. Retrying can never succeed.
var ErrLeadNotCancellable = &Error{
	Kind:    KindInvalidStateTransition,
	Message: "Lead can no longer be cancelled because a contractor has claimed it; please contact support",
	Details: map[string]interface{}{"action": "contact_support"},
}

// KindOf classifies any error. Errors that are not domain errors are Internal,
// except context expiry which is a Timeout.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// IsDomain reports whether err carries a business outcome (a precondition failure),
// which must be surfaced verbatim and never retried.
func IsDomain(err error) bool {
	switch KindOf(err) {
	case KindLeadAlreadyClaimed, KindContractorNotEligible, KindInsufficientCredit,
		KindInvalidStateTransition, KindNotFound, KindInvalidInput:
		return true
	}
	return false
}

// Retryable reports whether a caller may usefully try again later.
func Retryable(kind Kind) bool {
	return kind == KindTimeout || kind == KindUnavailable
}

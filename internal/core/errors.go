package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure so the transport layer can pick
// a status code without parsing messages.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindBusinessRule
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

// Machine codes surfaced to clients that need to branch on the failure.
const (
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeOverpayment         = "OVERPAYMENT"
	CodeTrialLimit          = "TRIAL_LIMIT"
	CodeHasPendingDebts     = "HAS_PENDING_DEBTS"
	CodeTrialExpired        = "TRIAL_EXPIRED"
	CodeSubscriptionExpired = "SUBSCRIPTION_EXPIRED"
	CodeAccountBlocked      = "ACCOUNT_BLOCKED"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeInvalidInvite       = "INVALID_INVITE"
	CodeNetworkExists       = "NETWORK_EXISTS"
	CodeDuplicateClient     = "DUPLICATE_CLIENT"
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeProductExists       = "PRODUCT_EXISTS"
)

// Error is the typed failure every core operation signals with. Absent
// entities and entities owned by someone else both surface as NotFound,
// so callers never learn about other users' resources.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// AsError extracts a *Error from err's chain, or nil.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return nil
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func BusinessRule(code, format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Unauthorizedf(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(code, format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internalf wraps an unexpected failure (driver errors and the like).
func Internalf(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: fmt.Sprintf(format, args...), cause: cause}
}

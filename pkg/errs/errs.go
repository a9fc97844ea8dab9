// Package errs defines the platform's closed error taxonomy.
//
// Every service function returns either nil or an *Error (or something
// wrapping one via fmt.Errorf("%w", ...)); no bare strings cross a service
// boundary so that sanitization at the API layer is structural rather than
// ad hoc.
package errs

import "fmt"

// Kind is the closed set of error categories a caller may observe.
type Kind string

const (
	InvalidInput           Kind = "InvalidInput"
	Unauthorized           Kind = "Unauthorized"
	NotFound               Kind = "NotFound"
	AlreadyExists          Kind = "AlreadyExists"
	InsufficientFunds      Kind = "InsufficientFunds"
	InvalidPin             Kind = "InvalidPin"
	PinLocked              Kind = "PinLocked"
	KycRequired            Kind = "KycRequired"
	InvalidAddress         Kind = "InvalidAddress"
	InvalidCurrency        Kind = "InvalidCurrency"
	AmountOutOfRange       Kind = "AmountOutOfRange"
	RateUnavailable        Kind = "RateUnavailable"
	SlippageExceeded       Kind = "SlippageExceeded"
	Expired                Kind = "Expired"
	StateConflict          Kind = "StateConflict"
	RateLimited            Kind = "RateLimited"
	FraudBlocked           Kind = "FraudBlocked"
	UpstreamLedgerFailure  Kind = "UpstreamLedgerFailure"
	Internal               Kind = "Internal"
	ArithmeticError        Kind = "ArithmeticError"
)

// Error is the platform's typed error. Message must never embed ledger IDs,
// PIN attempt counts, user IDs, device fingerprints, or geolocation data;
// the constructors here store the message exactly as the caller passes it.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an *Error of the given kind with a sanitized message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Is allows errors.Is(err, errs.New(kind, "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts a Kind from err, defaulting to Internal when err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if err == nil {
		return ""
	}
	if asErr(err, &e) {
		return e.Kind
	}
	return Internal
}

func asErr(err error, target **Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func Invalid(msg string) *Error             { return New(InvalidInput, msg) }
func Forbidden(msg string) *Error           { return New(Unauthorized, msg) }
func NotFoundf(msg string) *Error           { return New(NotFound, msg) }
func AlreadyExistsf(msg string) *Error      { return New(AlreadyExists, msg) }
func InsufficientFundsf(msg string) *Error  { return New(InsufficientFunds, msg) }
func Arithmetic(msg string) *Error          { return New(ArithmeticError, msg) }
func Conflict(currentStatus string) *Error {
	return New(StateConflict, "operation conflicts with current status: "+currentStatus)
}

package guard

import "errors"

// Error kinds. Every error returned by Service wraps exactly one of them.
var (
	// ErrBadRequest covers unresolvable caller identity and malformed input.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound covers a missing session or an unknown level.
	ErrNotFound = errors.New("not found")
	// ErrUpstream covers completion backend failures and timeouts.
	ErrUpstream = errors.New("upstream failure")
)

// Error carries a kind and a message safe to show to the caller.
type Error struct {
	Kind    error
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// PublicMessage returns the caller-facing message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

package authcore

import "errors"

var (
	// ErrUnauthorized reports a missing, invalid, expired, blacklisted, or
	// wrong-type token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials reports a failed login without revealing which
	// of username/email or password was wrong.
	ErrInvalidCredentials = errors.New("wrong username, email or password")
	// ErrAccountNotActivated reports a login or refresh against a principal
	// that has not completed email verification.
	ErrAccountNotActivated = errors.New("account is not activated")
	// ErrForbidden reports insufficient privilege.
	ErrForbidden = errors.New("insufficient privileges")
	// ErrPrincipalNotFound reports a referenced principal that is absent or
	// soft-deleted.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrTierNotFound reports a referenced tier that does not exist.
	ErrTierNotFound = errors.New("tier not found")
	// ErrDuplicateUsername reports a username collision on register.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail reports an email collision on register.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrRateLimited reports an exhausted request window. It is distinct
	// from every authentication failure.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrCodeInvalid reports a malformed, expired, or already-consumed
	// one-time verification or reset code.
	ErrCodeInvalid = errors.New("invalid or expired code")
	// ErrValidation reports malformed register or reset input.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable reports a transient backing-store failure. It is
	// retryable and is never silently converted into a success outcome.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady reports use of an engine that was not built through
	// [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind is the coarse error taxonomy exposed to transport layers. Raw store
// and codec failures never leak past the engine boundary; every error an
// Engine method returns classifies into exactly one Kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindBadRequest
	KindUnavailable
)

// KindOf classifies err. Unrecognized errors report KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountNotActivated):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrPrincipalNotFound), errors.Is(err, ErrTierNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateUsername), errors.Is(err, ErrDuplicateEmail):
		return KindConflict
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrCodeInvalid), errors.Is(err, ErrValidation):
		return KindBadRequest
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrEngineNotReady):
		return KindUnavailable
	}
	return KindUnknown
}

package recovery

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotReady is returned when an Engine method is called before
	// the engine was built with its required dependencies.
	ErrEngineNotReady = errors.New("recovery engine not ready")
	// ErrInvalidEmail rejects a syntactically invalid email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidCode rejects a missing or malformed verification code before
	// any state is touched.
	ErrInvalidCode = errors.New("invalid verification code format")
	// ErrThrottled is returned by RequestChallenge while the caller's origin
	// is inside the cooldown window. The concrete error is a
	// [*ThrottledError] carrying the retry instant.
	ErrThrottled = errors.New("challenge request throttled")
	// ErrObsoleteChallenge means no live challenge matches the submission:
	// it expired, was already consumed, or no longer corresponds to an
	// account. The client must restart the flow.
	ErrObsoleteChallenge = errors.New("recovery challenge obsolete")
	// ErrWrongCode means the submitted code did not match the active
	// challenge. Deliberately indistinguishable from the no-account case.
	ErrWrongCode = errors.New("wrong verification code")
	// ErrTooManyAttempts means the challenge's attempt budget is exhausted.
	// The challenge stays locked until its TTL expires.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrPasswordPolicy rejects a new password that fails the configured
	// policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrTokenMissing is returned by FinalizeReset when no reset token was
	// supplied.
	ErrTokenMissing = errors.New("reset token missing")
	// ErrTokenInvalid is the single outward signal for every reset-token
	// failure: malformed, expired, wrong scope, replayed, or account
	// mismatch. The specific cause is recorded in audit events only.
	ErrTokenInvalid = errors.New("reset token invalid")
	// ErrUnavailable is returned when Redis or a collaborator is
	// unreachable. The request failed without leaving partial state.
	ErrUnavailable = errors.New("recovery backend unavailable")
)

// ThrottledError is the concrete error returned while a cooldown is active.
// It matches ErrThrottled under [errors.Is].
type ThrottledError struct {
	RetryAt time.Time
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("challenge request throttled until %s", e.RetryAt.UTC().Format(time.RFC3339))
}

// Is reports whether target is [ErrThrottled].
func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

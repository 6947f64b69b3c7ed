package recovery

import "errors"

// WireCode is the stable numeric code attached to protocol failures so that
// clients can branch without parsing error strings. The enumeration is
// closed: "wrong code, try again", "too many attempts, restart", and
// "challenge expired, restart" must stay distinguishable across releases.
type WireCode int

const (
	// CodeValidationFailed covers malformed request input (bad email, bad
	// password, bad code format).
	CodeValidationFailed WireCode = 100
	// CodeEmptyPayload covers requests with a missing or empty body.
	CodeEmptyPayload WireCode = 101
	// CodeObsoleteCode signals that no live challenge matches and the flow
	// must restart.
	CodeObsoleteCode WireCode = 110
	// CodeWrongCode signals a failed code comparison with attempts left.
	CodeWrongCode WireCode = 111
	// CodeTooManyAttempts signals an exhausted attempt budget.
	CodeTooManyAttempts WireCode = 112
)

// CodeFor maps a protocol error to its wire code. It returns (0, false) for
// errors that carry no code: throttling has its own retry-instant shape, and
// token failures are deliberately uninformative.
func CodeFor(err error) (WireCode, bool) {
	switch {
	case errors.Is(err, ErrObsoleteChallenge):
		return CodeObsoleteCode, true
	case errors.Is(err, ErrWrongCode):
		return CodeWrongCode, true
	case errors.Is(err, ErrTooManyAttempts):
		return CodeTooManyAttempts, true
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidCode), errors.Is(err, ErrPasswordPolicy):
		return CodeValidationFailed, true
	default:
		return 0, false
	}
}

package recovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/velorent/recovery/internal"
	"github.com/velorent/recovery/internal/stores"
)

// VerifyChallenge checks a submitted code against the live challenge for
// email. A correct code consumes the challenge and returns a single-use
// reset token. A wrong code burns one attempt; the challenge's expiry is
// never extended. Submissions against absent, expired, or exhausted
// challenges fail without revealing whether the address has an account.
func (e *Engine) VerifyChallenge(ctx context.Context, email, code string) (*IssuedToken, error) {
	if e == nil || e.challengeStore == nil || e.directory == nil || e.tokenManager == nil {
		return nil, ErrEngineNotReady
	}

	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	email = normalizeEmail(email)
	if !validEmail(email) {
		e.emitAudit(ctx, auditEventChallengeVerify, false, "", "", ErrInvalidEmail, nil)
		return nil, ErrInvalidEmail
	}
	if !validCodeFormat(code, e.config.Challenge.CodeLength, e.config.Challenge.CodeAlphabet) {
		e.emitAudit(ctx, auditEventChallengeVerify, false, "", email, ErrInvalidCode, nil)
		return nil, ErrInvalidCode
	}

	// The account decision is resolved up front and handed to the store so
	// that the whole check-and-increment runs as one atomic script.
	accountID := ""
	accountExists := false
	account, err := e.directory.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !account.Privileged {
			accountExists = true
			accountID = account.AccountID
		}
	case errors.Is(err, ErrAccountNotFound):
	default:
		e.emitAudit(ctx, auditEventChallengeVerify, false, "", email, ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "directory_lookup_failed",
			}
		})
		return nil, ErrUnavailable
	}

	now := e.now()
	_, err = e.challengeStore.Consume(
		ctx,
		email,
		internal.HashCode(code),
		accountExists,
		e.config.Challenge.MaxAttempts,
		now.Unix(),
	)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeObsolete):
			e.metricInc(MetricVerifyObsolete)
			e.emitAudit(ctx, auditEventChallengeVerify, false, accountID, email, ErrObsoleteChallenge, nil)
			return nil, ErrObsoleteChallenge
		case errors.Is(err, stores.ErrChallengeAttemptsExceeded):
			e.metricInc(MetricVerifyLockout)
			e.emitAudit(ctx, auditEventChallengeVerify, false, accountID, email, ErrTooManyAttempts, nil)
			return nil, ErrTooManyAttempts
		case errors.Is(err, stores.ErrChallengeCodeMismatch):
			e.metricInc(MetricVerifyWrongCode)
			e.emitAudit(ctx, auditEventChallengeVerify, false, accountID, email, ErrWrongCode, nil)
			return nil, ErrWrongCode
		default:
			e.emitAudit(ctx, auditEventChallengeVerify, false, accountID, email, ErrUnavailable, nil)
			return nil, ErrUnavailable
		}
	}

	signed, _, expiresAt, err := e.tokenManager.Issue(accountID, email, now)
	if err != nil {
		e.emitAudit(ctx, auditEventChallengeVerify, false, accountID, email, err, func() map[string]string {
			return map[string]string{
				"reason": "token_issue_failed",
			}
		})
		return nil, ErrUnavailable
	}

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventChallengeVerify, true, accountID, email, nil, nil)

	return &IssuedToken{
		Token:     signed,
		ExpiresAt: expiresAt,
	}, nil
}

func validCodeFormat(code string, length int, alphabet string) bool {
	if len(code) != length {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

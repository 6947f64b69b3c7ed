package recovery

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"net/mail"
	"time"

	"github.com/velorent/recovery/internal"
	"github.com/velorent/recovery/internal/stores"
)

// RequestChallenge starts a recovery flow for email. The returned ticket is
// shaped identically whether or not the address matches an account: unknown
// and excluded addresses get a fake challenge that burns attempts but can
// never verify. Requests from the same origin inside the cooldown window
// fail with a [*ThrottledError] carrying an unchanged retry instant.
func (e *Engine) RequestChallenge(ctx context.Context, email string) (*ChallengeTicket, error) {
	if e == nil || e.challengeStore == nil || e.directory == nil || e.notifier == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if !validEmail(email) {
		e.emitAudit(ctx, auditEventChallengeRequest, false, "", "", ErrInvalidEmail, nil)
		return nil, ErrInvalidEmail
	}

	origin := clientIPFromContext(ctx)
	if origin != "" && e.cooldownStore != nil {
		active, retryAt, err := e.cooldownStore.Check(ctx, origin)
		if err != nil {
			e.emitAudit(ctx, auditEventChallengeRequest, false, "", email, ErrUnavailable, nil)
			return nil, ErrUnavailable
		}
		if active {
			e.metricInc(MetricRequestThrottled)
			e.emitAudit(ctx, auditEventThrottle, false, "", email, ErrThrottled, nil)
			return nil, &ThrottledError{RetryAt: retryAt}
		}
	}

	now := e.now()
	expiresAt := now.Add(e.config.Challenge.TTL)
	resendAt := now.Add(e.config.Cooldown.Window)

	account, err := e.directory.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		e.emitAudit(ctx, auditEventChallengeRequest, false, "", email, ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "directory_lookup_failed",
			}
		})
		return nil, ErrUnavailable
	}

	real := err == nil && !account.Privileged
	if !real {
		return e.issueFakeChallenge(ctx, email, now, expiresAt, resendAt, origin)
	}

	code, err := internal.NewCode(e.config.Challenge.CodeLength, e.config.Challenge.CodeAlphabet)
	if err != nil {
		e.emitAudit(ctx, auditEventChallengeRequest, false, account.AccountID, email, err, nil)
		return nil, ErrUnavailable
	}

	record := &stores.ChallengeRecord{
		Kind:      stores.ChallengeReal,
		Email:     email,
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
		CodeHash:  internal.HashCode(code),
	}

	if err := e.challengeStore.Save(ctx, email, record, e.config.Challenge.TTL); err != nil {
		e.emitAudit(ctx, auditEventChallengeRequest, false, account.AccountID, email, ErrUnavailable, nil)
		return nil, ErrUnavailable
	}

	if err := e.notifier.SendRecoveryCode(ctx, email, code, expiresAt); err != nil {
		// No deliverable code means no verifiable challenge; roll the
		// record back so the address is not locked behind a dead entry.
		if delErr := e.challengeStore.Delete(ctx, email); delErr != nil {
			log.Print("recovery: challenge rollback after notify failure failed")
		}
		e.metricInc(MetricNotifyFailure)
		e.emitAudit(ctx, auditEventChallengeRequest, false, account.AccountID, email, ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "notify_failed",
			}
		})
		return nil, ErrUnavailable
	}

	e.recordCooldown(ctx, origin, resendAt)
	e.metricInc(MetricChallengeRequested)
	e.emitAudit(ctx, auditEventChallengeRequest, true, account.AccountID, email, nil, nil)

	return &ChallengeTicket{
		ResendAt:  resendAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (e *Engine) issueFakeChallenge(
	ctx context.Context,
	email string,
	now, expiresAt, resendAt time.Time,
	origin string,
) (*ChallengeTicket, error) {
	if err := sleepEnumerationDelay(ctx); err != nil {
		return nil, err
	}

	record := &stores.ChallengeRecord{
		Kind:      stores.ChallengeFake,
		Email:     email,
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	if err := e.challengeStore.Save(ctx, email, record, e.config.Challenge.TTL); err != nil {
		e.emitAudit(ctx, auditEventChallengeRequest, false, "", email, ErrUnavailable, nil)
		return nil, ErrUnavailable
	}

	e.recordCooldown(ctx, origin, resendAt)
	e.metricInc(MetricChallengeRequested)
	e.metricInc(MetricChallengeFake)
	e.emitAudit(ctx, auditEventChallengeRequest, true, "", email, nil, nil)

	return &ChallengeTicket{
		ResendAt:  resendAt,
		ExpiresAt: expiresAt,
	}, nil
}

// recordCooldown is best-effort: a failed write must not retract a
// challenge whose code is already on its way out.
func (e *Engine) recordCooldown(ctx context.Context, origin string, resendAt time.Time) {
	if origin == "" || e.cooldownStore == nil {
		return
	}
	if err := e.cooldownStore.Record(ctx, origin, resendAt, e.config.Cooldown.Window); err != nil {
		log.Print("recovery: cooldown record failed")
	}
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject display-name forms; only the bare address is acceptable.
	return addr.Address == email
}

// sleepEnumerationDelay pads the fake-challenge path so its latency blends
// into the real path's code generation and delivery work.
func sleepEnumerationDelay(ctx context.Context) error {
	minMs := int64(20)
	maxMs := int64(40)
	span := maxMs - minMs + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	delay := time.Duration(minMs+n.Int64()) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

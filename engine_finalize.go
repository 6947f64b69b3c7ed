package recovery

import (
	"context"
	"errors"
	"log"

	"github.com/velorent/recovery/password"
	"github.com/velorent/recovery/token"
)

// FinalizeReset completes the recovery flow: it validates the reset token,
// marks it used, computes the new credential hash, and persists it through
// the credential store. Every token failure, including replay and account
// mismatch, surfaces as the single ErrTokenInvalid; the specific cause goes
// to the audit trail only.
func (e *Engine) FinalizeReset(ctx context.Context, rawToken, newPassword string) error {
	if e == nil || e.replayStore == nil || e.directory == nil ||
		e.credentials == nil || e.tokenManager == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	if rawToken == "" {
		e.emitAudit(ctx, auditEventResetFinalize, false, "", "", ErrTokenMissing, nil)
		return ErrTokenMissing
	}

	claims, err := e.tokenManager.Parse(rawToken)
	if err != nil {
		e.metricInc(MetricFinalizeRejected)
		e.emitAudit(ctx, auditEventResetFinalize, false, "", "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": tokenFailureReason(err),
			}
		})
		return ErrTokenInvalid
	}

	// Policy is checked before the replay marker is taken so a rejected
	// password does not spend the token.
	if err := e.passwordHash.CheckPolicy(newPassword); err != nil {
		e.metricInc(MetricFinalizeRejected)
		e.emitAudit(ctx, auditEventResetFinalize, false, claims.Subject, claims.Email, ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}

	account, err := e.directory.FindByEmail(ctx, claims.Email)
	switch {
	case err == nil && !account.Privileged && account.AccountID == claims.Subject:
	case err == nil || errors.Is(err, ErrAccountNotFound):
		// The account vanished, was excluded, or no longer matches the
		// token. Indistinguishable from any other invalid token.
		e.metricInc(MetricFinalizeRejected)
		e.emitAudit(ctx, auditEventResetFinalize, false, claims.Subject, claims.Email, ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "account_mismatch",
			}
		})
		return ErrTokenInvalid
	default:
		e.emitAudit(ctx, auditEventResetFinalize, false, claims.Subject, claims.Email, ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "directory_lookup_failed",
			}
		})
		return ErrUnavailable
	}

	now := e.now()
	firstUse, err := e.replayStore.Consume(ctx, claims.UID, e.tokenManager.RemainingTTL(claims, now))
	if err != nil {
		e.emitAudit(ctx, auditEventResetFinalize, false, claims.Subject, claims.Email, ErrUnavailable, nil)
		return ErrUnavailable
	}
	if !firstUse {
		e.metricInc(MetricTokenReplayDetected)
		e.metricInc(MetricFinalizeRejected)
		e.emitAudit(ctx, auditEventTokenReplay, false, claims.Subject, claims.Email, ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.releaseReplayMarker(ctx, claims.UID)
		if errors.Is(err, password.ErrPolicy) {
			e.metricInc(MetricFinalizeRejected)
			e.emitAudit(ctx, auditEventResetFinalize, false, claims.Subject, claims.Email, ErrPasswordPolicy, nil)
			return ErrPasswordPolicy
		}
		e.emitAudit(ctx, auditEventResetFinalize, false, claims.Subject, claims.Email, err, nil)
		return ErrUnavailable
	}
	newPassword = ""

	if err := e.credentials.SetPassword(ctx, account.AccountID, newHash); err != nil {
		// The credential write failed, so the reset did not happen; give
		// the token back for a retry.
		e.releaseReplayMarker(ctx, claims.UID)
		e.metricInc(MetricFinalizeRejected)
		e.emitAudit(ctx, auditEventResetFinalize, false, claims.Subject, claims.Email, ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "credential_write_failed",
			}
		})
		return ErrUnavailable
	}

	// Any still-live challenge for the address is now moot.
	if e.challengeStore != nil {
		if err := e.challengeStore.Delete(ctx, claims.Email); err != nil {
			log.Print("recovery: challenge cleanup after finalize failed")
		}
	}

	e.metricInc(MetricFinalizeSuccess)
	e.emitAudit(ctx, auditEventResetFinalize, true, account.AccountID, claims.Email, nil, nil)

	return nil
}

func (e *Engine) releaseReplayMarker(ctx context.Context, uid string) {
	if err := e.replayStore.Release(ctx, uid); err != nil {
		log.Print("recovery: replay marker release failed")
	}
}

func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "token_expired"
	case errors.Is(err, token.ErrScopeMismatch):
		return "token_scope_mismatch"
	default:
		return "token_malformed"
	}
}

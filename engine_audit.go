package recovery

import (
	"context"
	"errors"

	"github.com/velorent/recovery/internal"
)

// AuditErrorCode is the stable failure label recorded in audit events.
type AuditErrorCode string

const (
	auditErrInvalidEmail      AuditErrorCode = "invalid_email"
	auditErrInvalidCode       AuditErrorCode = "invalid_code"
	auditErrThrottled         AuditErrorCode = "throttled"
	auditErrObsoleteChallenge AuditErrorCode = "obsolete_challenge"
	auditErrWrongCode         AuditErrorCode = "wrong_code"
	auditErrAttemptsExceeded  AuditErrorCode = "attempts_exceeded"
	auditErrPasswordPolicy    AuditErrorCode = "password_policy"
	auditErrTokenMissing      AuditErrorCode = "token_missing"
	auditErrTokenInvalid      AuditErrorCode = "token_invalid"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

// emitAudit records one protocol event. The email is hashed before it
// enters the event; raw addresses never reach a sink.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if email != "" {
		event.EmailHash = internal.KeyDigest(email)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidEmail):
		return auditErrInvalidEmail
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrObsoleteChallenge):
		return auditErrObsoleteChallenge
	case errors.Is(err, ErrWrongCode):
		return auditErrWrongCode
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrTokenMissing):
		return auditErrTokenMissing
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

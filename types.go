package recovery

import (
	"context"
	"errors"
	"io"
	"time"

	internalaudit "github.com/velorent/recovery/internal/audit"
)

// ErrAccountNotFound is returned by [AccountDirectory.FindByEmail] when no
// account matches the address. The engine never surfaces it to callers; it
// only selects the fake-challenge path.
var ErrAccountNotFound = errors.New("account not found")

// AccountRecord is the opaque account handle returned by [AccountDirectory].
type AccountRecord struct {
	AccountID string
	Email     string
	// Privileged accounts (administrators) are structurally excluded from
	// recovery: the engine treats them exactly like "not found".
	Privileged bool
}

// AccountDirectory is the account-lookup collaborator. Implementations must
// return [ErrAccountNotFound] for unknown addresses and an infrastructure
// error otherwise; the engine behaves identically toward the caller in the
// found and not-found cases.
type AccountDirectory interface {
	FindByEmail(ctx context.Context, email string) (AccountRecord, error)
}

// CredentialStore persists the finalized password change. The engine hands
// it a ready argon2id hash; it never sees the plaintext lifetime beyond the
// hashing call.
type CredentialStore interface {
	SetPassword(ctx context.Context, accountID, passwordHash string) error
}

// Notifier delivers the one-time code out-of-band. It is invoked only for
// real challenges; fake challenges produce no delivery and no observable
// difference for the requester.
type Notifier interface {
	SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// ChallengeTicket is returned by [Engine.RequestChallenge]. Its shape is
// identical whether or not the email matched an account.
type ChallengeTicket struct {
	// ResendAt is the instant from which a new challenge may be requested
	// from the same origin.
	ResendAt time.Time
	// ExpiresAt is when the issued challenge stops verifying.
	ExpiresAt time.Time
}

// IssuedToken is returned by [Engine.VerifyChallenge] on a correct code.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

const (
	auditEventChallengeRequest = "recovery.challenge.request"
	auditEventChallengeVerify  = "recovery.challenge.verify"
	auditEventResetFinalize    = "recovery.reset.finalize"
	auditEventTokenReplay      = "recovery.token.replay"
	auditEventThrottle         = "recovery.throttle"
)

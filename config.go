package recovery

import (
	"errors"
	"strings"
	"time"
)

// Config carries every tunable of the recovery protocol. Instances are
// configured before [Builder.Build] and treated as immutable afterwards.
type Config struct {
	Challenge ChallengeConfig
	Cooldown  CooldownConfig
	Token     TokenConfig
	Password  PasswordConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig controls the one-time code stage of the protocol.
type ChallengeConfig struct {
	// TTL is the lifetime of a challenge from creation. Failed attempts
	// never extend it.
	TTL time.Duration
	// CodeLength is the number of characters in a generated code.
	CodeLength int
	// CodeAlphabet is the character set codes are drawn from. Defaults to
	// decimal digits.
	CodeAlphabet string
	// MaxAttempts is the failed-verification budget per challenge. The
	// MaxAttempts+1-th submission fails with ErrTooManyAttempts regardless
	// of content.
	MaxAttempts int
}

/*
====================================
COOLDOWN CONFIG
====================================
*/

// CooldownConfig controls the per-origin throttle on challenge requests.
type CooldownConfig struct {
	// Window is how long an origin must wait between challenge requests.
	Window time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the signed reset token issued after a correct code.
type TokenConfig struct {
	// TTL bounds how long the token stays valid after issuance.
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries the argon2id parameters used to compute the new
// credential value, plus the minimum accepted password length in bytes.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration the Velorent backend ships with:
// 10-minute challenges with six-digit codes and five attempts, a 60-second
// resend cooldown, and 10-minute single-use reset tokens.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			TTL:          10 * time.Minute,
			CodeLength:   6,
			CodeAlphabet: "0123456789",
			MaxAttempts:  5,
		},
		Cooldown: CooldownConfig{
			Window: 60 * time.Second,
		},
		Token: TokenConfig{
			TTL:           10 * time.Minute,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values that would weaken the
// protocol or render it inoperable. Build calls it; callers holding a
// hand-assembled Config may call it early.
func (c *Config) Validate() error {
	// Challenge
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if c.Challenge.TTL > time.Hour {
		return errors.New("Challenge TTL must be <= 1h")
	}
	if c.Challenge.CodeLength < 6 || c.Challenge.CodeLength > 32 {
		return errors.New("Challenge CodeLength must be between 6 and 32")
	}
	if alphabetSize(c.Challenge.CodeAlphabet) < 10 {
		return errors.New("Challenge CodeAlphabet must contain at least 10 distinct characters")
	}
	if c.Challenge.MaxAttempts <= 0 {
		return errors.New("Challenge MaxAttempts must be > 0")
	}
	if c.Challenge.MaxAttempts > 10 {
		return errors.New("Challenge MaxAttempts must be <= 10")
	}

	// Cooldown
	if c.Cooldown.Window <= 0 {
		return errors.New("Cooldown Window must be > 0")
	}
	if c.Cooldown.Window >= c.Challenge.TTL {
		return errors.New("Cooldown Window must be shorter than Challenge TTL")
	}

	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Token.TTL > time.Hour {
		return errors.New("Token TTL must be <= 1h")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func alphabetSize(alphabet string) int {
	seen := make(map[rune]struct{}, len(alphabet))
	for _, r := range alphabet {
		seen[r] = struct{}{}
	}
	return len(seen)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

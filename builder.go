package recovery

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/velorent/recovery/internal/audit"
	"github.com/velorent/recovery/internal/stores"
	"github.com/velorent/recovery/password"
	"github.com/velorent/recovery/token"
)

// Builder assembles an [Engine]. A Builder is single-use: Build succeeds at
// most once per instance.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory   AccountDirectory
	credentials CredentialStore
	notifier    Notifier
	auditSink   AuditSink
	clock       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing all ephemeral state.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the account-lookup collaborator.
func (b *Builder) WithDirectory(d AccountDirectory) *Builder {
	b.directory = d
	return b
}

// WithCredentials sets the credential-persistence collaborator.
func (b *Builder) WithCredentials(c CredentialStore) *Builder {
	b.credentials = c
	return b
}

// WithNotifier sets the recovery-code delivery channel.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the destination for audit events. Auditing must also
// be enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine's time source. Intended for tests; the
// default is time.Now.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verify latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the stores, and returns a ready
// Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, errors.New("account directory required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	engine := &Engine{
		config:         cfg,
		challengeStore: stores.NewChallengeStore(b.redis, "vrc"),
		cooldownStore:  stores.NewCooldownStore(b.redis, "vrcd"),
		replayStore:    stores.NewReplayStore(b.redis, "vrtu"),
		directory:      b.directory,
		credentials:    b.credentials,
		notifier:       b.notifier,
		metrics:        NewMetrics(cfg.Metrics),
		clock:          b.clock,
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	tm, err := token.NewManager(token.Config{
		TTL:           cfg.Token.TTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokenManager = tm

	b.built = true

	return engine, nil
}

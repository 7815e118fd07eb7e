package authcore

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tidegate/authcore/internal/rate"
	"github.com/tidegate/authcore/internal/stores"
	"github.com/tidegate/authcore/password"
	"github.com/tidegate/authcore/token"
)

// Builder assembles an [Engine] from explicitly injected dependencies.
// There is no process-global state: the Redis client, credential store,
// tier store, and notifier are all handles the caller owns and passes in.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	tiers       TierStore
	notifier    Notifier
	auditSink   AuditSink
	logger      *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis injects the Redis client backing the rate limiter, one-time
// code store, and token blacklist.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore injects the principal store.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithTierStore injects the tier and rate-limit-rule store. Optional:
// without it every caller gets the default window.
func (b *Builder) WithTierStore(store TierStore) *Builder {
	b.tiers = store
	return b
}

// WithNotifier injects the background job queue. Optional: without it
// register and reset flows skip notification enqueue.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink injects the audit destination; only consulted when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger injects the structured logger for degraded-path warnings.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and wires the engine. Configuration
// errors, above all a missing JWT secret, are fatal here at process
// start, never at first use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("authcore: builder already used")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("authcore: redis client is required")
	}
	if b.credentials == nil {
		return nil, errors.New("authcore: credential store is required")
	}

	codec, err := token.NewCodec(token.Config{
		Secret:     b.config.JWT.Secret,
		Issuer:     b.config.JWT.Issuer,
		AccessTTL:  b.config.JWT.AccessTTL,
		RefreshTTL: b.config.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	b.built = true

	return &Engine{
		config:      b.config,
		credentials: b.credentials,
		tiers:       b.tiers,
		notifier:    b.notifier,
		codec:       codec,
		hasher:      hasher,
		codes:       stores.NewEphemeral(b.redis, codeKeyPrefix),
		blacklist:   stores.NewBlacklist(b.redis, blacklistKeyPrefix),
		limiter:     rate.New(b.redis),
		audit:       newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:     newMetrics(b.config.Metrics),
		logger:      logger,
	}, nil
}

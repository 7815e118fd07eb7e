package authcore

import (
	"errors"
	"time"

	"github.com/tidegate/authcore/password"
)

// Config defines the engine's tuning surface. Obtain a baseline with
// [DefaultConfig] and override before [Builder.Build]; the engine treats it
// as immutable afterwards.
type Config struct {
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Codes     CodeConfig
	Password  password.Params
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JWTConfig holds the signing parameters for access and refresh tokens.
// Secret is the process-wide HMAC key; leaving it empty is a fatal
// configuration error at Build time.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RateLimitConfig holds the process-wide default window applied when no
// tier rule matches, and for every unauthenticated caller.
type RateLimitConfig struct {
	DefaultLimit  int
	DefaultPeriod time.Duration
}

// CodeConfig holds the lifetimes of one-time codes. Verification codes are
// long-lived; reset codes are deliberately short.
type CodeConfig struct {
	VerifyAccountTTL time.Duration
	ResetPasswordTTL time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the request path when
	// the buffer is saturated. Dropped counts are observable through
	// [Engine.AuditDropped].
	DropIfFull bool
}

// MetricsConfig controls the in-process counter registry.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 30-minute access
// tokens, 7-day refresh tokens, a 10-requests-per-10-seconds default rate
// window, 7-day verification codes, and 30-minute reset codes.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			DefaultLimit:  10,
			DefaultPeriod: 10 * time.Second,
		},
		Codes: CodeConfig{
			VerifyAccountTTL: 7 * 24 * time.Hour,
			ResetPasswordTTL: 30 * time.Minute,
		},
		Password: password.DefaultParams(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.JWT.Secret) == 0 {
		return errors.New("authcore: JWT secret is required")
	}
	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= 0 {
		return errors.New("authcore: token TTLs must be positive")
	}
	if cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		return errors.New("authcore: refresh TTL must exceed access TTL")
	}
	if cfg.RateLimit.DefaultLimit <= 0 || cfg.RateLimit.DefaultPeriod <= 0 {
		return errors.New("authcore: default rate limit and period must be positive")
	}
	if cfg.Codes.VerifyAccountTTL <= 0 || cfg.Codes.ResetPasswordTTL <= 0 {
		return errors.New("authcore: one-time code TTLs must be positive")
	}
	return nil
}

// Redis keyspace prefixes. Codes, blacklist entries, and rate counters
// live in disjoint namespaces so a reaper can sweep one without touching
// the others.
const (
	codeKeyPrefix      = "otc"
	blacklistKeyPrefix = "bl"
)

package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/tidegate/authcore/internal/rate"
)

// CheckRateLimit enforces the fixed-window budget for one request against
// path. Authenticated callers are keyed by principal ID; anonymous
// callers fall back to the client IP placed in ctx by [WithClientIP].
//
// Rule resolution walks tier → (tier, path) rule → process-wide default.
// A missing tier or rule degrades to the default budget with a logged
// warning; it never rejects the request by itself. A limiter outage is
// surfaced as [ErrStoreUnavailable], never as an open window.
func (e *Engine) CheckRateLimit(ctx context.Context, principal *Principal, path string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	subject := ""
	if principal != nil {
		subject = principal.ID
	} else if ip := clientIPFromContext(ctx); ip != "" {
		subject = "ip:" + ip
	} else {
		subject = "anonymous"
	}

	limit, period := e.resolveWindow(ctx, principal, path)

	allowed, err := e.limiter.Allow(ctx, subject, path, limit, period)
	if err != nil {
		return ErrStoreUnavailable
	}
	if !allowed {
		e.metrics.Inc(MetricRateLimitHit)
		e.emitAudit(ctx, auditEventRateLimited, false, subject, ErrRateLimited, map[string]string{"path": path})
		return ErrRateLimited
	}

	return nil
}

// resolveWindow picks the budget for one request. Unauthenticated
// callers and principals without a usable tier rule share the default.
func (e *Engine) resolveWindow(ctx context.Context, principal *Principal, path string) (int, time.Duration) {
	defaultLimit := e.config.RateLimit.DefaultLimit
	defaultPeriod := e.config.RateLimit.DefaultPeriod

	if principal == nil || principal.TierID == "" || e.tiers == nil {
		return defaultLimit, defaultPeriod
	}

	tier, err := e.tiers.FindTier(ctx, principal.TierID)
	if err != nil {
		if errors.Is(err, ErrTierNotFound) {
			e.logger.Warn("principal references unknown tier, using default rate window",
				"principal_id", principal.ID, "tier_id", principal.TierID)
		} else {
			e.logger.Warn("tier lookup failed, using default rate window",
				"principal_id", principal.ID, "error", err)
		}
		e.metrics.Inc(MetricRateLimitDefaultFallback)
		return defaultLimit, defaultPeriod
	}

	rule, err := e.tiers.FindRule(ctx, tier.ID, rate.NormalizePath(path))
	if err != nil {
		e.logger.Warn("rate rule lookup failed, using default rate window",
			"tier_id", tier.ID, "path", path, "error", err)
		e.metrics.Inc(MetricRateLimitDefaultFallback)
		return defaultLimit, defaultPeriod
	}
	if rule == nil {
		// Rule misses are routine: only paths with tier-specific budgets
		// carry rules.
		e.metrics.Inc(MetricRateLimitDefaultFallback)
		return defaultLimit, defaultPeriod
	}

	return rule.Limit, rule.Period
}

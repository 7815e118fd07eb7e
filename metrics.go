package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint8

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricLogout
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricVerifySuccess
	MetricVerifyFailure
	MetricResetRequest
	MetricResetSuccess
	MetricResetFailure
	MetricRateLimitHit
	MetricRateLimitDefaultFallback
	MetricTokenRevoked

	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:             "login_success",
	MetricLoginFailure:             "login_failure",
	MetricRefreshSuccess:           "refresh_success",
	MetricRefreshFailure:           "refresh_failure",
	MetricLogout:                   "logout",
	MetricRegisterSuccess:          "register_success",
	MetricRegisterDuplicate:        "register_duplicate",
	MetricVerifySuccess:            "verify_success",
	MetricVerifyFailure:            "verify_failure",
	MetricResetRequest:             "reset_request",
	MetricResetSuccess:             "reset_success",
	MetricResetFailure:             "reset_failure",
	MetricRateLimitHit:             "rate_limit_hit",
	MetricRateLimitDefaultFallback: "rate_limit_default_fallback",
	MetricTokenRevoked:             "token_revoked",
}

// String returns the stable metric name.
func (id MetricID) String() string {
	if id >= metricCount {
		return "unknown"
	}
	return metricNames[id]
}

// Metrics is a lock-free counter registry. All methods are safe for
// concurrent use; a nil *Metrics is a no-op.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a point-in-time copy of every counter.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricCount; id++ {
		out[id] = m.counters[id].Load()
	}
	return out
}

package authcore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tidegate/authcore/internal/rate"
	"github.com/tidegate/authcore/internal/stores"
	"github.com/tidegate/authcore/password"
	"github.com/tidegate/authcore/token"
)

// Engine composes the token codec, blacklist, one-time code store, rate
// limiter, and password hasher into the login, refresh, logout, register,
// verify, and reset flows. Build one through [Builder.Build]; all methods
// are safe for concurrent use afterwards.
type Engine struct {
	config      Config
	credentials CredentialStore
	tiers       TierStore
	notifier    Notifier
	codec       *token.Codec
	hasher      *password.Hasher
	codes       *stores.Ephemeral
	blacklist   *stores.Blacklist
	limiter     *rate.Limiter
	audit       *auditDispatcher
	metrics     *Metrics
	logger      *slog.Logger
}

// Close releases the engine's background resources. Injected stores stay
// open; their lifecycle belongs to the caller that created them.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were shed under buffer
// pressure since construction.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

// Login authenticates usernameOrEmail and password, issues an
// access+refresh pair, and records the login time. Inactive accounts get
// [ErrAccountNotActivated]; every other authentication failure collapses
// into [ErrInvalidCredentials] so callers cannot tell which part was
// wrong.
func (e *Engine) Login(ctx context.Context, usernameOrEmail, passwd string) (*TokenPair, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	principal, err := e.principalByIdentifier(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		e.loginFailed(ctx, "", ErrInvalidCredentials, "principal_lookup")
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(passwd, principal.PasswordHash)
	if err != nil || !ok {
		e.loginFailed(ctx, principal.ID, ErrInvalidCredentials, "password_mismatch")
		return nil, ErrInvalidCredentials
	}

	if !principal.IsActive {
		e.loginFailed(ctx, principal.ID, ErrAccountNotActivated, "not_activated")
		return nil, ErrAccountNotActivated
	}

	pair, err := e.issuePair(principal.Username)
	if err != nil {
		e.loginFailed(ctx, principal.ID, err, "issue_pair")
		return nil, err
	}

	now := time.Now().UTC()
	if err := e.credentials.Update(ctx, principal.ID, PrincipalUpdate{LastLogin: &now}); err != nil {
		// Best-effort: a stale last_login must not fail an otherwise
		// successful authentication.
		e.logger.Warn("last_login update failed", "principal_id", principal.ID, "error", err)
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, principal.ID, nil, nil)

	return pair, nil
}

// Refresh verifies refreshToken as an unexpired, non-blacklisted refresh
// credential, re-checks that the principal still exists and is active, and
// issues a fresh access+refresh pair. The presented refresh token stays
// valid until its natural expiry; there is no rotation.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	subject, err := e.verifySigned(ctx, refreshToken, token.TypeRefresh)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, "", err, nil)
		return nil, err
	}

	principal, err := e.principalByIdentifier(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, "", ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}
	if !principal.IsActive {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, principal.ID, ErrAccountNotActivated, nil)
		return nil, ErrAccountNotActivated
	}

	pair, err := e.issuePair(principal.Username)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, principal.ID, err, nil)
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, principal.ID, nil, nil)

	return pair, nil
}

// Logout revokes both the presented access and refresh tokens. The
// operation reports success only when every revocation landed: a failure
// partway surfaces as a whole-operation failure, while tokens already
// revoked stay revoked. Both tokens must be decodable; revoking a
// malformed token is an error.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	entries := make(map[string]time.Time, 2)
	for _, tok := range []string{accessToken, refreshToken} {
		expiresAt, err := e.codec.ExpiresAt(tok)
		if err != nil {
			e.emitAudit(ctx, auditEventLogout, false, "", ErrUnauthorized, map[string]string{"reason": "undecodable_token"})
			return ErrUnauthorized
		}
		entries[tok] = expiresAt
	}

	if err := e.blacklist.RevokeAll(ctx, entries); err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", ErrStoreUnavailable, nil)
		return ErrStoreUnavailable
	}

	e.metrics.Inc(MetricLogout)
	e.metrics.Inc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventLogout, true, "", nil, nil)

	return nil
}

// CurrentUser resolves an access token to its principal: signature,
// expiry, type, and blacklist checks, then a live store lookup. Inactive
// principals are rejected even when their token is otherwise valid.
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (*Principal, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	subject, err := e.verifySigned(ctx, accessToken, token.TypeAccess)
	if err != nil {
		return nil, err
	}

	principal, err := e.principalByIdentifier(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, ErrUnauthorized
	}
	if !principal.IsActive {
		return nil, ErrAccountNotActivated
	}

	return principal, nil
}

// CurrentSuperuser is CurrentUser plus a privilege check.
func (e *Engine) CurrentSuperuser(ctx context.Context, accessToken string) (*Principal, error) {
	principal, err := e.CurrentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !principal.IsSuperuser {
		return nil, ErrForbidden
	}
	return principal, nil
}

// verifySigned checks the blacklist and then the signature, expiry, and
// declared type. Every failure collapses into ErrUnauthorized except a
// store outage, which must never read as a valid token.
func (e *Engine) verifySigned(ctx context.Context, tokenStr string, expected token.Type) (string, error) {
	revoked, err := e.blacklist.IsRevoked(ctx, tokenStr)
	if err != nil {
		return "", ErrStoreUnavailable
	}
	if revoked {
		return "", ErrUnauthorized
	}

	claims, err := e.codec.Verify(tokenStr, expected)
	if err != nil {
		return "", ErrUnauthorized
	}

	return claims.Subject, nil
}

func (e *Engine) issuePair(subject string) (*TokenPair, error) {
	access, err := e.codec.IssueAccess(subject)
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.IssueRefresh(subject)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// principalByIdentifier routes lookups by shape: identifiers containing
// "@" are emails, everything else is a username. Soft-deleted principals
// are invisible here by store contract.
func (e *Engine) principalByIdentifier(ctx context.Context, identifier string) (*Principal, error) {
	var (
		principal *Principal
		err       error
	)
	if strings.Contains(identifier, "@") {
		principal, err = e.credentials.FindByEmail(ctx, identifier)
	} else {
		principal, err = e.credentials.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, ErrStoreUnavailable
	}
	return principal, nil
}

func (e *Engine) loginFailed(ctx context.Context, principalID string, cause error, reason string) {
	e.metrics.Inc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLogin, false, principalID, cause, map[string]string{"reason": reason})
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, principalID string, cause error, metadata map[string]string) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	e.audit.Emit(ctx, event)
}

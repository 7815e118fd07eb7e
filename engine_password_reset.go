package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidegate/authcore/token"
)

// RequestPasswordReset starts the reset flow for email. The return value
// is uniform whether or not the email is registered, so the operation
// cannot be used to enumerate accounts. For registered emails a one-time
// reset code is stored and an email job enqueued; dispatch failures are
// logged and swallowed for the same reason. Only a store outage during
// the lookup itself surfaces, since it is retryable and never a false
// success.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.credentials == nil {
		return ErrEngineNotReady
	}

	e.metrics.Inc(MetricResetRequest)

	principal, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.emitAudit(ctx, auditEventResetRequest, true, "", nil, map[string]string{"known_email": "false"})
			return nil
		}
		return ErrStoreUnavailable
	}

	if _, err := e.dispatchCode(ctx, token.TypeResetPassword, JobSendPasswordResetEmail, principal); err != nil {
		e.logger.Warn("password reset dispatch failed", "principal_id", principal.ID, "error", err)
	}

	e.emitAudit(ctx, auditEventResetRequest, true, principal.ID, nil, nil)

	return nil
}

// ResetPassword redeems a one-time reset code and replaces the
// principal's password hash. The code is consumed atomically; a second
// submit of the same code fails with [ErrCodeInvalid]. Existing sessions
// are not revoked here.
func (e *Engine) ResetPassword(ctx context.Context, code, newPassword string) error {
	if e == nil || e.credentials == nil {
		return ErrEngineNotReady
	}

	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	email, err := e.consumeCode(ctx, token.TypeResetPassword, code)
	if err != nil {
		e.metrics.Inc(MetricResetFailure)
		e.emitAudit(ctx, auditEventResetConfirm, false, "", err, nil)
		return err
	}

	principal, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.metrics.Inc(MetricResetFailure)
			e.emitAudit(ctx, auditEventResetConfirm, false, "", ErrCodeInvalid, nil)
			return ErrCodeInvalid
		}
		return ErrStoreUnavailable
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.credentials.Update(ctx, principal.ID, PrincipalUpdate{PasswordHash: &hash}); err != nil {
		return ErrStoreUnavailable
	}

	e.metrics.Inc(MetricResetSuccess)
	e.emitAudit(ctx, auditEventResetConfirm, true, principal.ID, nil, nil)

	return nil
}

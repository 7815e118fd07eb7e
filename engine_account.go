package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidegate/authcore/internal/stores"
	"github.com/tidegate/authcore/token"
)

// codeKey namespaces one-time codes by kind so a verification code can
// never be replayed against the reset flow or vice versa.
func codeKey(kind token.Type, code string) string {
	return string(kind) + ":" + code
}

// Register creates an inactive principal and enqueues a verification
// email carrying a one-time code. Principal creation and notification
// dispatch are separate steps: if the dispatch fails the principal is
// kept and the result reports NotificationEnqueued=false, so callers can
// surface "verification pending" instead of a false success.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	taken, err := e.credentials.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if taken {
		e.metrics.Inc(MetricRegisterDuplicate)
		return nil, ErrDuplicateUsername
	}
	taken, err = e.credentials.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if taken {
		e.metrics.Inc(MetricRegisterDuplicate)
		return nil, ErrDuplicateEmail
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	created, err := e.credentials.Create(ctx, Principal{
		Username:     input.Username,
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: hash,
		IsActive:     false,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrDuplicateEmail) {
			e.metrics.Inc(MetricRegisterDuplicate)
			return nil, err
		}
		return nil, ErrStoreUnavailable
	}

	result := &RegisterResult{Principal: created}

	jobID, err := e.dispatchCode(ctx, token.TypeVerifyAccount, JobSendVerificationEmail, created)
	if err != nil {
		e.logger.Warn("verification dispatch failed after registration",
			"principal_id", created.ID, "error", err)
	} else {
		result.NotificationEnqueued = true
		result.JobID = jobID
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, created.ID, nil, map[string]string{
		"notification_enqueued": fmt.Sprintf("%t", result.NotificationEnqueued),
	})

	return result, nil
}

// VerifyAccount consumes a one-time verification code and activates the
// matching principal. The code succeeds exactly once: a concurrent
// double-submit activates once and the loser sees [ErrCodeInvalid].
// Verifying an already-active principal with a live code succeeds
// without side effects.
func (e *Engine) VerifyAccount(ctx context.Context, code string) error {
	if e == nil || e.credentials == nil {
		return ErrEngineNotReady
	}

	email, err := e.consumeCode(ctx, token.TypeVerifyAccount, code)
	if err != nil {
		e.metrics.Inc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerify, false, "", err, nil)
		return err
	}

	principal, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			// The account vanished after the code was issued.
			e.metrics.Inc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventVerify, false, "", ErrCodeInvalid, nil)
			return ErrCodeInvalid
		}
		return ErrStoreUnavailable
	}

	if !principal.IsActive {
		active := true
		if err := e.credentials.Update(ctx, principal.ID, PrincipalUpdate{IsActive: &active}); err != nil {
			return ErrStoreUnavailable
		}
	}

	e.metrics.Inc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerify, true, principal.ID, nil, nil)

	return nil
}

// DeleteAccount soft-deletes the principal behind accessToken and revokes
// that token. Soft deletion is terminal: the principal disappears from
// every lookup and only [Engine.PurgeAccount] removes the record itself.
func (e *Engine) DeleteAccount(ctx context.Context, accessToken string) error {
	if e == nil || e.credentials == nil {
		return ErrEngineNotReady
	}

	principal, err := e.CurrentUser(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := e.credentials.SoftDelete(ctx, principal.ID); err != nil {
		return ErrStoreUnavailable
	}

	expiresAt, err := e.codec.ExpiresAt(accessToken)
	if err == nil {
		if err := e.blacklist.Revoke(ctx, accessToken, expiresAt); err != nil && !errors.Is(err, stores.ErrAlreadyExpired) {
			e.logger.Warn("token revocation failed after account deletion",
				"principal_id", principal.ID, "error", err)
		} else {
			e.metrics.Inc(MetricTokenRevoked)
		}
	}

	e.emitAudit(ctx, auditEventDelete, true, principal.ID, nil, nil)

	return nil
}

// PurgeAccount physically removes a soft-deleted or live principal.
// Only a superuser may call it; the presented token authenticates the
// caller, not the target.
func (e *Engine) PurgeAccount(ctx context.Context, accessToken, principalID string) error {
	if e == nil || e.credentials == nil {
		return ErrEngineNotReady
	}

	caller, err := e.CurrentSuperuser(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := e.credentials.Purge(ctx, principalID); err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return ErrPrincipalNotFound
		}
		return ErrStoreUnavailable
	}

	e.emitAudit(ctx, auditEventPurge, true, caller.ID, nil, map[string]string{"target": principalID})

	return nil
}

// dispatchCode mints an opaque one-time code, stores code→email with the
// kind's configured ttl, and enqueues the outbound email job. The stored
// mapping is the only place the code exists; the signed-token secret is
// never involved.
func (e *Engine) dispatchCode(ctx context.Context, kind token.Type, jobType string, principal *Principal) (string, error) {
	if e.notifier == nil {
		return "", errors.New("authcore: no notifier configured")
	}

	ttl := e.config.Codes.VerifyAccountTTL
	if kind == token.TypeResetPassword {
		ttl = e.config.Codes.ResetPasswordTTL
	}

	code := token.NewOpaqueCode()
	if err := e.codes.Put(ctx, codeKey(kind, code), []byte(principal.Email), ttl); err != nil {
		return "", err
	}

	payload, err := json.Marshal(EmailPayload{
		Email: principal.Email,
		Name:  principal.Name,
		Code:  code,
	})
	if err != nil {
		return "", err
	}

	jobID, err := e.notifier.Enqueue(ctx, jobType, payload)
	if err != nil {
		// The orphaned code is unreachable without the email; drop it so
		// it cannot outlive this failed dispatch.
		if delErr := e.codes.Delete(ctx, codeKey(kind, code)); delErr != nil {
			e.logger.Warn("orphaned code cleanup failed", "error", delErr)
		}
		return "", err
	}

	return jobID, nil
}

// consumeCode atomically redeems a one-time code and returns the email it
// was issued for. Absent, expired, and already-consumed codes are
// indistinguishable.
func (e *Engine) consumeCode(ctx context.Context, kind token.Type, code string) (string, error) {
	if code == "" {
		return "", ErrCodeInvalid
	}
	value, err := e.codes.Consume(ctx, codeKey(kind, code))
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return "", ErrCodeInvalid
		}
		return "", ErrStoreUnavailable
	}
	return string(value), nil
}

func validateRegisterInput(input RegisterInput) error {
	if len(input.Username) < 2 || len(input.Username) > 30 {
		return fmt.Errorf("%w: username must be 2-30 characters", ErrValidation)
	}
	for _, r := range input.Username {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return fmt.Errorf("%w: username may contain only lowercase letters, digits and underscore", ErrValidation)
		}
	}
	if !strings.Contains(input.Email, "@") || len(input.Email) < 3 {
		return fmt.Errorf("%w: malformed email address", ErrValidation)
	}
	if len(input.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	return nil
}

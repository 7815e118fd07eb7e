package authcore

import (
	"context"
	"time"
)

// Principal is an authenticable account record. The credential store owns
// it; the engine only reads it and issues targeted updates.
//
// IsDeleted is a terminal logical state: soft-deleted principals never come
// back and are only physically removed by an explicit Purge.
type Principal struct {
	ID           string
	Username     string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	TierID       string
	IsDeleted    bool
	LastLogin    time.Time
}

// PrincipalUpdate is a partial update; nil fields are left untouched.
type PrincipalUpdate struct {
	Username     *string
	Email        *string
	Name         *string
	PasswordHash *string
	IsActive     *bool
	IsSuperuser  *bool
	TierID       *string
	LastLogin    *time.Time
}

// CredentialStore is the external user-record store the engine consumes.
// Find and Exists methods must exclude soft-deleted principals. Absent
// records are reported with [ErrPrincipalNotFound]; uniqueness collisions
// with [ErrDuplicateUsername] or [ErrDuplicateEmail].
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByID(ctx context.Context, id string) (*Principal, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, p Principal) (*Principal, error)
	Update(ctx context.Context, id string, fields PrincipalUpdate) error
	SoftDelete(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}

// Tier is a plan class assigned to a principal; it selects rate-limit
// rules.
type Tier struct {
	ID   string
	Name string
}

// RateLimitRule binds a (tier, normalized path) pair to a window budget.
type RateLimitRule struct {
	TierID string
	Path   string
	Limit  int
	Period time.Duration
}

// TierStore resolves tiers and their rate-limit rules. Absent tiers are
// reported with [ErrTierNotFound]; an absent rule is (nil, nil); rule
// misses are expected and degrade to the default budget, not an error.
type TierStore interface {
	FindTier(ctx context.Context, id string) (*Tier, error)
	FindRule(ctx context.Context, tierID, path string) (*RateLimitRule, error)
}

// Notifier is the fire-and-forget job queue the engine enqueues outbound
// notifications on. The engine never awaits delivery inline.
type Notifier interface {
	Enqueue(ctx context.Context, jobType string, payload []byte) (string, error)
}

// Job types the engine enqueues. Payloads are [EmailPayload] JSON.
const (
	JobSendVerificationEmail  = "send_verification_email"
	JobSendPasswordResetEmail = "send_password_reset_email"
)

// EmailPayload is the notification payload for verification and reset
// dispatch.
type EmailPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Code  string `json:"code"`
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput is the caller-supplied material for a new principal.
type RegisterInput struct {
	Username string
	Email    string
	Name     string
	Password string
}

// RegisterResult reports the created principal and whether the
// verification notification was enqueued. When NotificationEnqueued is
// false the account exists but unverified, and verification must be
// re-requested, so callers should not present an unconditional success.
type RegisterResult struct {
	Principal            *Principal
	NotificationEnqueued bool
	JobID                string
}

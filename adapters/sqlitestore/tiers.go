package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tidegate/authcore"
)

func (s *Store) FindTier(ctx context.Context, id string) (*authcore.Tier, error) {
	var t authcore.Tier
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM tiers WHERE id = ?`, id).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, mapNotFound(err, authcore.ErrTierNotFound)
	}
	return &t, nil
}

// FindRule returns (nil, nil) when no rule is defined for the pair; rule
// misses degrade to the engine's default window rather than erroring.
func (s *Store) FindRule(ctx context.Context, tierID, path string) (*authcore.RateLimitRule, error) {
	var (
		rule     authcore.RateLimitRule
		periodMS int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tier_id, path, request_limit, period_ms FROM rate_limit_rules
		 WHERE tier_id = ? AND path = ?`, tierID, path).
		Scan(&rule.TierID, &rule.Path, &rule.Limit, &periodMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rule.Period = time.Duration(periodMS) * time.Millisecond
	return &rule, nil
}

// CreateTier inserts a tier.
func (s *Store) CreateTier(ctx context.Context, t authcore.Tier) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tiers (id, name) VALUES (?, ?)`, t.ID, t.Name)
	return err
}

// UpsertRule creates or replaces the rule for (tier, path).
func (s *Store) UpsertRule(ctx context.Context, rule authcore.RateLimitRule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_rules (tier_id, path, request_limit, period_ms)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (tier_id, path) DO UPDATE SET request_limit = excluded.request_limit, period_ms = excluded.period_ms`,
		rule.TierID, rule.Path, rule.Limit, rule.Period.Milliseconds())
	return err
}

// DeleteRule removes the rule for (tier, path); absent rules are not an
// error.
func (s *Store) DeleteRule(ctx context.Context, tierID, path string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_rules WHERE tier_id = ? AND path = ?`, tierID, path)
	return err
}

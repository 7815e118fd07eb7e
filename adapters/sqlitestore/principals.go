package sqlitestore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/tidegate/authcore"
)

const principalColumns = `id, username, email, name, password_hash,
	is_active, is_superuser, tier_id, is_deleted, last_login`

func (s *Store) FindByUsername(ctx context.Context, username string) (*authcore.Principal, error) {
	return s.findPrincipal(ctx, "username", username)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Principal, error) {
	return s.findPrincipal(ctx, "email", email)
}

func (s *Store) FindByID(ctx context.Context, id string) (*authcore.Principal, error) {
	return s.findPrincipal(ctx, "id", id)
}

func (s *Store) findPrincipal(ctx context.Context, column, value string) (*authcore.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE `+column+` = ? AND is_deleted = 0`, value)

	var (
		p         authcore.Principal
		lastLogin sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.Name, &p.PasswordHash,
		&p.IsActive, &p.IsSuperuser, &p.TierID, &p.IsDeleted, &lastLogin)
	if err != nil {
		return nil, mapNotFound(err, authcore.ErrPrincipalNotFound)
	}
	if lastLogin.Valid {
		p.LastLogin = lastLogin.Time
	}
	return &p, nil
}

func (s *Store) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.principalExists(ctx, "username", username)
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.principalExists(ctx, "email", email)
}

func (s *Store) principalExists(ctx context.Context, column, value string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM principals WHERE `+column+` = ? AND is_deleted = 0`, value).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Create(ctx context.Context, p authcore.Principal) (*authcore.Principal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO principals (id, username, email, name, password_hash, is_active, is_superuser, tier_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.Email, p.Name, p.PasswordHash, p.IsActive, p.IsSuperuser, p.TierID)
	if err != nil {
		return nil, mapConstraint(err)
	}
	return &p, nil
}

func (s *Store) Update(ctx context.Context, id string, fields authcore.PrincipalUpdate) error {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if fields.Username != nil {
		add("username", *fields.Username)
	}
	if fields.Email != nil {
		add("email", *fields.Email)
	}
	if fields.Name != nil {
		add("name", *fields.Name)
	}
	if fields.PasswordHash != nil {
		add("password_hash", *fields.PasswordHash)
	}
	if fields.IsActive != nil {
		add("is_active", *fields.IsActive)
	}
	if fields.IsSuperuser != nil {
		add("is_superuser", *fields.IsSuperuser)
	}
	if fields.TierID != nil {
		add("tier_id", *fields.TierID)
	}
	if fields.LastLogin != nil {
		add("last_login", fields.LastLogin.UTC())
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE principals SET `+strings.Join(sets, ", ")+` WHERE id = ? AND is_deleted = 0`, args...)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE principals SET is_deleted = 1 WHERE id = ? AND is_deleted = 0`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) Purge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM principals WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrPrincipalNotFound
	}
	return nil
}

// SeedSuperuser inserts an active superuser if the username is free.
// Intended for first-boot provisioning.
func (s *Store) SeedSuperuser(ctx context.Context, username, email, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO principals (id, username, email, name, password_hash, is_active, is_superuser)
		 VALUES (?, ?, ?, ?, ?, 1, 1)`,
		uuid.NewString(), username, email, username, passwordHash)
	return err
}

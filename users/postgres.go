package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iforddow/bizaudo-server/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo implements Repo over dbx.DBTX (satisfied by *sql.DB or
// *sql.Tx). Role and permission codes are joined in at load time so the
// returned User carries its full capability set.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

var _ Repo = (*PostgresRepo)(nil)

// Create inserts the user and its profile in one transaction.
func (r *PostgresRepo) Create(ctx context.Context, user *User) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			INSERT INTO users (id, email, password_hash, enabled, email_verified, created_at, last_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := tx.ExecContext(ctx, query,
			user.ID, user.Email, user.PasswordHash, user.Enabled, user.EmailVerified,
			user.CreatedAt, user.LastActive); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("db error: %w", err)
		}

		if user.Profile == nil {
			user.Profile = &Profile{ID: user.ID, CreatedAt: user.CreatedAt}
		}

		query = `
			INSERT INTO user_profiles (user_id, first_name, last_name, created_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.ExecContext(ctx, query,
			user.ID, user.Profile.FirstName, user.Profile.LastName, user.Profile.CreatedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		return nil
	})
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `u.email = $1`, email)
}

func (r *PostgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, `u.id = $1`, id)
}

func (r *PostgresRepo) get(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT u.id, u.email, u.password_hash, u.enabled, u.email_verified, u.created_at, u.last_active,
		       p.first_name, p.last_name, p.created_at, p.updated_at
		FROM users u
		JOIN user_profiles p ON p.user_id = u.id
		WHERE ` + where

	user := &User{Profile: &Profile{}}
	var passwordHash sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &passwordHash, &user.Enabled, &user.EmailVerified,
		&user.CreatedAt, &user.LastActive,
		&user.Profile.FirstName, &user.Profile.LastName, &user.Profile.CreatedAt, &user.Profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.PasswordHash = passwordHash.String
	user.Profile.ID = user.ID

	if err := r.loadAuthorities(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// loadAuthorities fills Roles and Permissions from the rbac tables.
func (r *PostgresRepo) loadAuthorities(ctx context.Context, user *User) error {
	query := `
		SELECT r.code_name, COALESCE(p.code_name, '')
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, user.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	roles := map[string]struct{}{}
	perms := map[string]struct{}{}
	for rows.Next() {
		var role, perm string
		if err := rows.Scan(&role, &perm); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		roles[role] = struct{}{}
		if perm != "" {
			perms[perm] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for role := range roles {
		user.Roles = append(user.Roles, role)
	}
	for perm := range perms {
		user.Permissions = append(user.Permissions, perm)
	}
	return nil
}

func (r *PostgresRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, newHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, newHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepo) SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	query := `UPDATE users SET email_verified = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, verified)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepo) TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_active = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports a Postgres unique-constraint failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

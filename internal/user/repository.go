// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByVerificationDigest(ctx context.Context, digest string, now time.Time) (*User, error)
	GetByResetDigest(ctx context.Context, digest string, now time.Time) (*User, error)
	GetByRefreshDigest(ctx context.Context, digest string) (*User, error)
	Update(ctx context.Context, user *User) error
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `
	id, email, username, full_name, password_hash, role, phone, address,
	avatar_key, is_verified, is_active,
	verification_digest, verification_expires_at,
	reset_digest, reset_expires_at, refresh_digest,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (
			id, email, username, full_name, password_hash, role, phone, address,
			is_verified, is_active, verification_digest, verification_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.Username,
		user.FullName,
		user.PasswordHash,
		user.Role,
		user.Phone,
		user.Address,
		user.IsVerified,
		user.IsActive,
		user.VerificationDigest,
		user.VerificationExpiresAt,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", duplicateError(err))
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) getOne(
	ctx context.Context,
	op, where string,
	args ...any,
) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + where

	var user User
	err := r.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "get user", "id = $1", id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "get user by email", "email = $1", email)
}

func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, "get user by username", "username = $1", username)
}

func (r *repository) GetByVerificationDigest(
	ctx context.Context,
	digest string,
	now time.Time,
) (*User, error) {
	return r.getOne(ctx, "get user by verification token",
		"verification_digest = $1 AND verification_expires_at > $2", digest, now)
}

func (r *repository) GetByResetDigest(
	ctx context.Context,
	digest string,
	now time.Time,
) (*User, error) {
	return r.getOne(ctx, "get user by reset token",
		"reset_digest = $1 AND reset_expires_at > $2", digest, now)
}

func (r *repository) GetByRefreshDigest(ctx context.Context, digest string) (*User, error) {
	return r.getOne(ctx, "get user by refresh token", "refresh_digest = $1", digest)
}

// Update writes every mutable column in one statement.
func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET full_name = $2, password_hash = $3, role = $4, phone = $5,
		    address = $6, avatar_key = $7, is_verified = $8, is_active = $9,
		    verification_digest = $10, verification_expires_at = $11,
		    reset_digest = $12, reset_expires_at = $13, refresh_digest = $14,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.FullName,
		user.PasswordHash,
		user.Role,
		user.Phone,
		user.Address,
		user.AvatarKey,
		user.IsVerified,
		user.IsActive,
		user.VerificationDigest,
		user.VerificationExpiresAt,
		user.ResetDigest,
		user.ResetExpiresAt,
		user.RefreshDigest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

// SetActive also empties the refresh slot when deactivating, so the
// account's outstanding refresh token stops working immediately.
func (r *repository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE users
		SET is_active = $2,
		    refresh_digest = CASE WHEN $2 THEN refresh_digest ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set user active: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR username ILIKE $%d OR full_name ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("is_verified = $%d", argIdx))
		args = append(args, *params.Verified)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM users WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func duplicateError(err error) error {
	field := core.DuplicateField(err)
	if field == "" {
		field = "account"
	}
	return core.DuplicateError(field)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

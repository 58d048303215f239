// AngelaMos | 2026
// repository.go

package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
)

type Repository interface {
	Create(ctx context.Context, admin *Admin) error
	Get(ctx context.Context, by Lookup) (*Admin, error)
	Update(ctx context.Context, admin *Admin) error
}

// Lookup selects a single admin row. Exactly one field is expected to be
// set; Now bounds the expiring digests.
type Lookup struct {
	ID                 string
	Email              string
	VerificationDigest string
	ResetDigest        string
	RefreshDigest      string
	Now                time.Time
}

func (l Lookup) where() (string, []any, error) {
	switch {
	case l.ID != "":
		return "id = $1", []any{l.ID}, nil
	case l.Email != "":
		return "email = $1", []any{l.Email}, nil
	case l.VerificationDigest != "":
		return "verification_digest = $1 AND verification_expires_at > $2",
			[]any{l.VerificationDigest, l.Now}, nil
	case l.ResetDigest != "":
		return "reset_digest = $1 AND reset_expires_at > $2",
			[]any{l.ResetDigest, l.Now}, nil
	case l.RefreshDigest != "":
		return "refresh_digest = $1", []any{l.RefreshDigest}, nil
	default:
		return "", nil, fmt.Errorf("empty admin lookup: %w", core.ErrNotFound)
	}
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, admin *Admin) error {
	query := `
		INSERT INTO admins (
			id, email, name, password_hash, role, phone, address,
			is_verified, is_active, verification_digest, verification_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, admin, query,
		admin.ID,
		admin.Email,
		admin.Name,
		admin.PasswordHash,
		admin.Role,
		admin.Phone,
		admin.Address,
		admin.IsVerified,
		admin.IsActive,
		admin.VerificationDigest,
		admin.VerificationExpiresAt,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create admin: %w", core.DuplicateError("email"))
		}
		return fmt.Errorf("create admin: %w", err)
	}

	return nil
}

func (r *repository) Get(ctx context.Context, by Lookup) (*Admin, error) {
	where, args, err := by.where()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, email, name, password_hash, role, phone, address, avatar_key,
		       is_verified, is_active, verification_digest, verification_expires_at,
		       reset_digest, reset_expires_at, refresh_digest, created_at, updated_at
		FROM admins
		WHERE ` + where

	var admin Admin
	err = r.db.GetContext(ctx, &admin, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get admin: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}

	return &admin, nil
}

func (r *repository) Update(ctx context.Context, admin *Admin) error {
	query := `
		UPDATE admins
		SET name = $2, password_hash = $3, role = $4, phone = $5, address = $6,
		    avatar_key = $7, is_verified = $8, is_active = $9,
		    verification_digest = $10, verification_expires_at = $11,
		    reset_digest = $12, reset_expires_at = $13, refresh_digest = $14,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &admin.UpdatedAt, query,
		admin.ID,
		admin.Name,
		admin.PasswordHash,
		admin.Role,
		admin.Phone,
		admin.Address,
		admin.AvatarKey,
		admin.IsVerified,
		admin.IsActive,
		admin.VerificationDigest,
		admin.VerificationExpiresAt,
		admin.ResetDigest,
		admin.ResetExpiresAt,
		admin.RefreshDigest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update admin: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update admin: %w", err)
	}

	return nil
}

// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/auth"
)

type User struct {
	ID                    string     `db:"id"`
	Email                 string     `db:"email"`
	Username              string     `db:"username"`
	FullName              string     `db:"full_name"`
	PasswordHash          string     `db:"password_hash"`
	Role                  string     `db:"role"`
	Phone                 string     `db:"phone"`
	Address               string     `db:"address"`
	AvatarKey             string     `db:"avatar_key"`
	IsVerified            bool       `db:"is_verified"`
	IsActive              bool       `db:"is_active"`
	VerificationDigest    *string    `db:"verification_digest"`
	VerificationExpiresAt *time.Time `db:"verification_expires_at"`
	ResetDigest           *string    `db:"reset_digest"`
	ResetExpiresAt        *time.Time `db:"reset_expires_at"`
	RefreshDigest         *string    `db:"refresh_digest"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func (u *User) credential() *auth.Credential {
	return &auth.Credential{
		ID:                    u.ID,
		Email:                 u.Email,
		Username:              u.Username,
		Name:                  u.FullName,
		PasswordHash:          u.PasswordHash,
		Role:                  u.Role,
		Phone:                 u.Phone,
		Address:               u.Address,
		AvatarKey:             u.AvatarKey,
		IsVerified:            u.IsVerified,
		IsActive:              u.IsActive,
		VerificationDigest:    u.VerificationDigest,
		VerificationExpiresAt: u.VerificationExpiresAt,
		ResetDigest:           u.ResetDigest,
		ResetExpiresAt:        u.ResetExpiresAt,
		RefreshDigest:         u.RefreshDigest,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func fromCredential(c *auth.Credential) *User {
	return &User{
		ID:                    c.ID,
		Email:                 c.Email,
		Username:              c.Username,
		FullName:              c.Name,
		PasswordHash:          c.PasswordHash,
		Role:                  c.Role,
		Phone:                 c.Phone,
		Address:               c.Address,
		AvatarKey:             c.AvatarKey,
		IsVerified:            c.IsVerified,
		IsActive:              c.IsActive,
		VerificationDigest:    c.VerificationDigest,
		VerificationExpiresAt: c.VerificationExpiresAt,
		ResetDigest:           c.ResetDigest,
		ResetExpiresAt:        c.ResetExpiresAt,
		RefreshDigest:         c.RefreshDigest,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

// AngelaMos | 2026
// entity.go

package admin

import (
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/auth"
)

type Admin struct {
	ID                    string     `db:"id"`
	Email                 string     `db:"email"`
	Name                  string     `db:"name"`
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

func (a *Admin) credential() *auth.Credential {
	return &auth.Credential{
		ID:                    a.ID,
		Email:                 a.Email,
		Name:                  a.Name,
		PasswordHash:          a.PasswordHash,
		Role:                  a.Role,
		Phone:                 a.Phone,
		Address:               a.Address,
		AvatarKey:             a.AvatarKey,
		IsVerified:            a.IsVerified,
		IsActive:              a.IsActive,
		VerificationDigest:    a.VerificationDigest,
		VerificationExpiresAt: a.VerificationExpiresAt,
		ResetDigest:           a.ResetDigest,
		ResetExpiresAt:        a.ResetExpiresAt,
		RefreshDigest:         a.RefreshDigest,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

// fromCredential drops Username; admins are addressed by email only.
func fromCredential(c *auth.Credential) *Admin {
	return &Admin{
		ID:                    c.ID,
		Email:                 c.Email,
		Name:                  c.Name,
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

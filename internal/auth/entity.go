// AngelaMos | 2026
// entity.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/principal"
)

// Credential is the view of a stored principal that the auth flows work
// on. Username is empty for admins.
type Credential struct {
	ID           string
	Email        string
	Username     string
	Name         string
	PasswordHash string
	Role         string
	Phone        string
	Address      string
	AvatarKey    string
	IsVerified   bool
	IsActive     bool

	VerificationDigest    *string
	VerificationExpiresAt *time.Time
	ResetDigest           *string
	ResetExpiresAt        *time.Time
	RefreshDigest         *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialStore is implemented once per principal kind. Digest lookups
// only match rows whose expiry is strictly after now. Save writes the whole
// row in a single statement keyed by ID.
type CredentialStore interface {
	Create(ctx context.Context, c *Credential) error
	FindByID(ctx context.Context, id string) (*Credential, error)
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	FindByUsername(ctx context.Context, username string) (*Credential, error)
	FindByVerificationDigest(
		ctx context.Context,
		digest string,
		now time.Time,
	) (*Credential, error)
	FindByResetDigest(
		ctx context.Context,
		digest string,
		now time.Time,
	) (*Credential, error)
	FindByRefreshDigest(ctx context.Context, digest string) (*Credential, error)
	Save(ctx context.Context, c *Credential) error
}

func (c *Credential) SetVerificationToken(tok *core.EphemeralToken) {
	digest := tok.Digest
	expires := tok.ExpiresAt
	c.VerificationDigest = &digest
	c.VerificationExpiresAt = &expires
}

func (c *Credential) MarkVerified() {
	c.IsVerified = true
	c.VerificationDigest = nil
	c.VerificationExpiresAt = nil
}

func (c *Credential) SetResetToken(tok *core.EphemeralToken) {
	digest := tok.Digest
	expires := tok.ExpiresAt
	c.ResetDigest = &digest
	c.ResetExpiresAt = &expires
}

func (c *Credential) ClearReset() {
	c.ResetDigest = nil
	c.ResetExpiresAt = nil
}

func (c *Credential) SetRefreshToken(token string) {
	digest := core.HashToken(token)
	c.RefreshDigest = &digest
}

func (c *Credential) ClearRefresh() {
	c.RefreshDigest = nil
}

// Principal projects the credential into the principal sum type for kind.
func (c *Credential) Principal(kind principal.Kind) (principal.Principal, error) {
	switch kind {
	case principal.KindUser:
		role, ok := principal.ParseUserRole(c.Role)
		if !ok {
			return nil, fmt.Errorf("user %s has unknown role %q", c.ID, c.Role)
		}
		return principal.User{
			ID:       c.ID,
			Email:    c.Email,
			Username: c.Username,
			Role:     role,
		}, nil
	case principal.KindAdmin:
		role, ok := principal.ParseAdminRole(c.Role)
		if !ok {
			return nil, fmt.Errorf("admin %s has unknown role %q", c.ID, c.Role)
		}
		return principal.Admin{
			ID:    c.ID,
			Email: c.Email,
			Role:  role,
		}, nil
	default:
		return nil, fmt.Errorf("unknown principal kind %q", kind)
	}
}

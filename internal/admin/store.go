// AngelaMos | 2026
// store.go

package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/auth"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
)

// Store adapts the admins table to the credential flows.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

func (s *Store) Create(ctx context.Context, c *auth.Credential) error {
	a := fromCredential(c)
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	c.CreatedAt = a.CreatedAt
	c.UpdatedAt = a.UpdatedAt
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.Credential, error) {
	return s.find(ctx, Lookup{ID: id})
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	return s.find(ctx, Lookup{Email: email})
}

// FindByUsername never matches; admins carry no username.
func (s *Store) FindByUsername(_ context.Context, username string) (*auth.Credential, error) {
	return nil, fmt.Errorf("get admin by username %q: %w", username, core.ErrNotFound)
}

func (s *Store) FindByVerificationDigest(
	ctx context.Context,
	digest string,
	now time.Time,
) (*auth.Credential, error) {
	return s.find(ctx, Lookup{VerificationDigest: digest, Now: now})
}

func (s *Store) FindByResetDigest(
	ctx context.Context,
	digest string,
	now time.Time,
) (*auth.Credential, error) {
	return s.find(ctx, Lookup{ResetDigest: digest, Now: now})
}

func (s *Store) FindByRefreshDigest(
	ctx context.Context,
	digest string,
) (*auth.Credential, error) {
	return s.find(ctx, Lookup{RefreshDigest: digest})
}

func (s *Store) Save(ctx context.Context, c *auth.Credential) error {
	a := fromCredential(c)
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	c.UpdatedAt = a.UpdatedAt
	return nil
}

func (s *Store) find(ctx context.Context, by Lookup) (*auth.Credential, error) {
	a, err := s.repo.Get(ctx, by)
	if err != nil {
		return nil, err
	}
	return a.credential(), nil
}

var _ auth.CredentialStore = (*Store)(nil)

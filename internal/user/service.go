// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/auth"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/blob"
)

// Service backs the user credential store and the admin-facing user
// management routes.
type Service struct {
	repo   Repository
	blob   blob.Store
	logger *slog.Logger
}

func NewService(repo Repository, store blob.Store, logger *slog.Logger) *Service {
	if store == nil {
		store = blob.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, blob: store, logger: logger}
}

func (s *Service) Create(ctx context.Context, c *auth.Credential) error {
	u := fromCredential(c)
	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}
	c.CreatedAt = u.CreatedAt
	c.UpdatedAt = u.UpdatedAt
	return nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*auth.Credential, error) {
	return credential(s.repo.GetByID(ctx, id))
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	return credential(s.repo.GetByEmail(ctx, email))
}

func (s *Service) FindByUsername(
	ctx context.Context,
	username string,
) (*auth.Credential, error) {
	return credential(s.repo.GetByUsername(ctx, username))
}

func (s *Service) FindByVerificationDigest(
	ctx context.Context,
	digest string,
	now time.Time,
) (*auth.Credential, error) {
	return credential(s.repo.GetByVerificationDigest(ctx, digest, now))
}

func (s *Service) FindByResetDigest(
	ctx context.Context,
	digest string,
	now time.Time,
) (*auth.Credential, error) {
	return credential(s.repo.GetByResetDigest(ctx, digest, now))
}

func (s *Service) FindByRefreshDigest(
	ctx context.Context,
	digest string,
) (*auth.Credential, error) {
	return credential(s.repo.GetByRefreshDigest(ctx, digest))
}

func (s *Service) Save(ctx context.Context, c *auth.Credential) error {
	u := fromCredential(c)
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	c.UpdatedAt = u.UpdatedAt
	return nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]UserSummary, int, error) {
	users, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, toSummary(&users[i], s.avatarURL(ctx, users[i].AvatarKey)))
	}
	return out, total, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (UserSummary, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return UserSummary{}, err
	}
	return toSummary(u, s.avatarURL(ctx, u.AvatarKey)), nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set active %s: %w", id, err)
	}

	s.logger.Info("user status changed",
		slog.String("user_id", id),
		slog.Bool("active", active),
	)
	return nil
}

func (s *Service) avatarURL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	url, err := s.blob.SignedURL(ctx, key)
	if err != nil {
		s.logger.Warn("avatar url", slog.String("key", key), slog.String("error", err.Error()))
		return ""
	}
	return url
}

func credential(u *User, err error) (*auth.Credential, error) {
	if err != nil {
		return nil, err
	}
	return u.credential(), nil
}

var _ auth.CredentialStore = (*Service)(nil)

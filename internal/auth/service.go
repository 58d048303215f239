// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/blob"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/notify"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/principal"
)

// Submitter hands a message to the background dispatcher.
type Submitter interface {
	Submit(msg notify.Message) error
}

// Policy holds the per-kind knobs of the auth flows.
type Policy struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	// BlockingRegisterNotify makes registration wait for the verification
	// email and fail when it cannot be sent.
	BlockingRegisterNotify bool
	RotateRefreshOnUse     bool
	PublicBaseURL          string
	AvatarFolder           string
	PhoneRegion            string
}

type ServiceConfig struct {
	Kind     principal.Kind
	Store    CredentialStore
	Issuer   *TokenIssuer
	Hasher   *core.PasswordHasher
	Sink     notify.Sink
	Async    Submitter
	Blob     blob.Store
	Composer notify.Composer
	Policy   Policy
	Logger   *slog.Logger
}

// Service runs every auth flow for one principal kind.
type Service struct {
	kind     principal.Kind
	store    CredentialStore
	issuer   *TokenIssuer
	hasher   *core.PasswordHasher
	sink     notify.Sink
	async    Submitter
	blob     blob.Store
	composer notify.Composer
	policy   Policy
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func NewService(cfg ServiceConfig, opts ...Option) (*Service, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("auth service: invalid principal kind %q", cfg.Kind)
	}
	if cfg.Store == nil || cfg.Issuer == nil || cfg.Hasher == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("auth service: store, issuer, hasher and sink are required")
	}

	s := &Service{
		kind:     cfg.Kind,
		store:    cfg.Store,
		issuer:   cfg.Issuer,
		hasher:   cfg.Hasher,
		sink:     cfg.Sink,
		async:    cfg.Async,
		blob:     cfg.Blob,
		composer: cfg.Composer,
		policy:   cfg.Policy,
		logger:   cfg.Logger,
		tracer:   otel.Tracer("marketplace-auth/auth"),
		now:      time.Now,
	}

	if s.blob == nil {
		s.blob = blob.Noop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.policy.AvatarFolder == "" {
		s.policy.AvatarFolder = "avatars"
	}
	s.policy.PublicBaseURL = strings.TrimRight(s.policy.PublicBaseURL, "/")

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Service) Kind() principal.Kind {
	return s.kind
}

type RegisterInput struct {
	Email    string
	Username string
	Name     string
	Password string
	Role     string
	Phone    string
	Address  string
}

// Profile is the outward projection of a credential. It never carries the
// password hash or any token digest.
type Profile struct {
	ID         string
	Email      string
	Username   string
	Name       string
	Role       string
	Phone      string
	Address    string
	AvatarURL  string
	IsVerified bool
	CreatedAt  time.Time
}

type LoginResult struct {
	Principal    principal.Principal
	Profile      *Profile
	AccessToken  *SignedToken
	RefreshToken *SignedToken
}

// RefreshResult carries a new refresh token only when rotation is on.
type RefreshResult struct {
	AccessToken  *SignedToken
	RefreshToken *SignedToken
}

func (s *Service) Register(
	ctx context.Context,
	in RegisterInput,
) (_ *Profile, err error) {
	ctx, span := s.startSpan(ctx, "register")
	defer endSpan(span, &err)

	cred, err := s.newCredential(ctx, in)
	if err != nil {
		return nil, err
	}

	tok, err := core.GenerateEphemeralToken(s.now(), s.policy.VerificationTTL)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	cred.SetVerificationToken(tok)

	if err := s.store.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	msg, err := s.composer.VerificationEmail(
		cred.Email,
		cred.Name,
		s.link("verify-email", tok.Plaintext),
		s.policy.VerificationTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	if s.policy.BlockingRegisterNotify || s.async == nil {
		if err := s.sink.Send(ctx, msg); err != nil {
			return nil, fmt.Errorf("register: send verification email: %w", err)
		}
	} else if err := s.async.Submit(msg); err != nil {
		s.logger.WarnContext(ctx, "verification email not queued",
			"kind", s.kind,
			"principal_id", cred.ID,
			"error", err,
		)
	}

	return s.profile(ctx, cred), nil
}

func (s *Service) newCredential(
	ctx context.Context,
	in RegisterInput,
) (*Credential, error) {
	email := normalizeEmail(in.Email)

	role, err := s.resolveRole(in.Role)
	if err != nil {
		return nil, err
	}

	phone := ""
	if strings.TrimSpace(in.Phone) != "" {
		phone, err = core.NormalizePhone(in.Phone, s.policy.PhoneRegion)
		if err != nil {
			return nil, core.ValidationError("phone must be a valid phone number")
		}
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, core.DuplicateError("email")
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("register: find by email: %w", err)
	}

	username := ""
	if s.kind == principal.KindUser {
		username, err = s.resolveUsername(ctx, in.Username, in.Name)
		if err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	return &Credential{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         role,
		Phone:        phone,
		Address:      strings.TrimSpace(in.Address),
		IsActive:     true,
	}, nil
}

func (s *Service) resolveRole(raw string) (string, error) {
	switch s.kind {
	case principal.KindUser:
		if raw == "" {
			return string(principal.DefaultUserRole), nil
		}
		if role, ok := principal.ParseUserRole(raw); ok {
			return string(role), nil
		}
		return "", core.ValidationError(fmt.Sprintf(
			"role must be one of [%s]",
			strings.Join(principal.UserRoleNames(), " "),
		))
	default:
		if raw == "" {
			return string(principal.DefaultAdminRole), nil
		}
		if role, ok := principal.ParseAdminRole(raw); ok {
			return string(role), nil
		}
		return "", core.ValidationError(fmt.Sprintf(
			"role must be one of [%s]",
			strings.Join(principal.AdminRoleNames(), " "),
		))
	}
}

func (s *Service) resolveUsername(
	ctx context.Context,
	requested, fullName string,
) (string, error) {
	if requested == "" {
		return s.generateUsername(ctx, fullName)
	}

	username := strings.ToLower(strings.TrimSpace(requested))
	if !core.ValidUsername(username) {
		return "", core.ValidationError(
			"username may only contain lowercase letters, numbers and underscores (3-20)",
		)
	}

	taken, err := s.usernameTaken(ctx, username)
	if err != nil {
		return "", err
	}
	if taken {
		return "", core.DuplicateError("username")
	}

	return username, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (err error) {
	ctx, span := s.startSpan(ctx, "verify_email")
	defer endSpan(span, &err)

	cred, err := s.store.FindByVerificationDigest(ctx, core.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.InvalidOrExpiredError("verification")
		}
		return fmt.Errorf("verify email: %w", err)
	}

	cred.MarkVerified()

	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}

	return nil
}

// ResendVerification replaces any outstanding verification token.
func (s *Service) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "resend_verification")
	defer endSpan(span, &err)

	cred, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError(s.noun())
		}
		return fmt.Errorf("resend verification: %w", err)
	}

	if cred.IsVerified {
		return core.NewAppError(
			core.ErrConflict,
			"email is already verified",
			http.StatusConflict,
			"ALREADY_VERIFIED",
		)
	}

	tok, err := core.GenerateEphemeralToken(s.now(), s.policy.VerificationTTL)
	if err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}
	cred.SetVerificationToken(tok)

	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}

	msg, err := s.composer.VerificationEmail(
		cred.Email,
		cred.Name,
		s.link("verify-email", tok.Plaintext),
		s.policy.VerificationTTL,
	)
	if err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}

	if err := s.sink.Send(ctx, msg); err != nil {
		return fmt.Errorf("resend verification: send email: %w", err)
	}

	return nil
}

func (s *Service) Login(
	ctx context.Context,
	email, password string,
) (_ *LoginResult, err error) {
	ctx, span := s.startSpan(ctx, "login")
	defer endSpan(span, &err)

	cred, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.hasher.VerifyTimingSafe(password, nil)
			return nil, core.InvalidCredentialsError()
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	valid, newHash := s.hasher.VerifyTimingSafe(password, &cred.PasswordHash)
	if !valid {
		return nil, core.InvalidCredentialsError()
	}

	if !cred.IsActive {
		return nil, core.ForbiddenError("account is deactivated")
	}

	if !cred.IsVerified {
		return nil, core.NotVerifiedError()
	}

	if newHash != "" {
		cred.PasswordHash = newHash
	}

	p, err := cred.Principal(s.kind)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	access, err := s.issuer.IssueAccessToken(p)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	refresh, err := s.issuer.IssueRefreshToken(p)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	cred.SetRefreshToken(refresh.Token)

	if err := s.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &LoginResult{
		Principal:    p,
		Profile:      s.profile(ctx, cred),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) Logout(ctx context.Context, id string) (err error) {
	ctx, span := s.startSpan(ctx, "logout")
	defer endSpan(span, &err)

	cred, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	cred.ClearRefresh()

	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

// Refresh exchanges a refresh token for a new access token. A token that
// verifies but no longer matches the stored slot is forbidden.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken string,
) (_ *RefreshResult, err error) {
	ctx, span := s.startSpan(ctx, "refresh")
	defer endSpan(span, &err)

	if refreshToken == "" {
		return nil, core.UnauthorizedError("refresh token not found")
	}

	subject, err := s.issuer.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil, core.TokenExpiredError()
		}
		return nil, core.TokenInvalidError()
	}

	cred, err := s.store.FindByRefreshDigest(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ForbiddenError("refresh token is no longer valid")
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if cred.ID != subject || !cred.IsActive {
		return nil, core.ForbiddenError("refresh token is no longer valid")
	}

	p, err := cred.Principal(s.kind)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	access, err := s.issuer.IssueAccessToken(p)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	result := &RefreshResult{AccessToken: access}

	if s.policy.RotateRefreshOnUse {
		next, err := s.issuer.IssueRefreshToken(p)
		if err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}

		cred.SetRefreshToken(next.Token)
		if err := s.store.Save(ctx, cred); err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		result.RefreshToken = next
	}

	return result, nil
}

func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "forgot_password")
	defer endSpan(span, &err)

	cred, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError(s.noun())
		}
		return fmt.Errorf("forgot password: %w", err)
	}

	tok, err := core.GenerateEphemeralToken(s.now(), s.policy.ResetTTL)
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	cred.SetResetToken(tok)

	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	msg, err := s.composer.ResetEmail(
		cred.Email,
		cred.Name,
		s.link("reset-password", tok.Plaintext),
		s.policy.ResetTTL,
	)
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	if err := s.sink.Send(ctx, msg); err != nil {
		return fmt.Errorf("forgot password: send email: %w", err)
	}

	return nil
}

func (s *Service) ResetPassword(
	ctx context.Context,
	token, newPassword string,
) (err error) {
	ctx, span := s.startSpan(ctx, "reset_password")
	defer endSpan(span, &err)

	cred, err := s.store.FindByResetDigest(ctx, core.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.InvalidOrExpiredError("reset")
		}
		return fmt.Errorf("reset password: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: hash: %w", err)
	}

	cred.PasswordHash = hash
	cred.ClearReset()

	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	return nil
}

func (s *Service) Me(ctx context.Context, id string) (_ *Profile, err error) {
	ctx, span := s.startSpan(ctx, "me")
	defer endSpan(span, &err)

	cred, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.profile(ctx, cred), nil
}

// UpdateAvatar stores a new avatar and drops the previous blob. Removing
// the old blob is best effort.
func (s *Service) UpdateAvatar(
	ctx context.Context,
	id string,
	file io.Reader,
) (_ *Profile, err error) {
	ctx, span := s.startSpan(ctx, "update_avatar")
	defer endSpan(span, &err)

	cred, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key, err := s.blob.Upload(ctx, file, s.policy.AvatarFolder)
	if err != nil {
		if errors.Is(err, blob.ErrDisabled) {
			return nil, core.NewAppError(
				err,
				"avatar uploads are not enabled",
				http.StatusServiceUnavailable,
				"UPLOADS_DISABLED",
			)
		}
		return nil, fmt.Errorf("update avatar: upload: %w", err)
	}

	previous := cred.AvatarKey
	cred.AvatarKey = key

	if err := s.store.Save(ctx, cred); err != nil {
		s.deleteBlob(ctx, key)
		return nil, fmt.Errorf("update avatar: %w", err)
	}

	if previous != "" {
		s.deleteBlob(ctx, previous)
	}

	return s.profile(ctx, cred), nil
}

// UsernameAvailable reports whether a user could register under username.
func (s *Service) UsernameAvailable(
	ctx context.Context,
	username string,
) (string, bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !core.ValidUsername(username) {
		return username, false, core.ValidationError(
			"username may only contain lowercase letters, numbers and underscores (3-20)",
		)
	}

	taken, err := s.usernameTaken(ctx, username)
	if err != nil {
		return username, false, err
	}

	return username, !taken, nil
}

// DeleteAvatar removes the stored image before clearing the key, so a
// failed delete leaves the profile pointing at a blob that still exists.
func (s *Service) DeleteAvatar(ctx context.Context, id string) (_ *Profile, err error) {
	ctx, span := s.startSpan(ctx, "delete_avatar")
	defer endSpan(span, &err)

	cred, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cred.AvatarKey == "" {
		return nil, core.NewAppError(
			core.ErrInvalidInput,
			"no avatar to delete",
			http.StatusBadRequest,
			"NO_AVATAR",
		)
	}

	if err := s.blob.Delete(ctx, cred.AvatarKey); err != nil {
		return nil, fmt.Errorf("delete avatar: blob: %w", err)
	}

	cred.AvatarKey = ""
	if err := s.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("delete avatar: %w", err)
	}

	return s.profile(ctx, cred), nil
}

func (s *Service) deleteBlob(ctx context.Context, key string) {
	if err := s.blob.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "avatar cleanup failed",
			"kind", s.kind,
			"key", key,
			"error", err,
		)
	}
}

func (s *Service) findByID(ctx context.Context, id string) (*Credential, error) {
	cred, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NotFoundError(s.noun())
		}
		return nil, fmt.Errorf("find %s: %w", s.noun(), err)
	}
	return cred, nil
}

func (s *Service) profile(ctx context.Context, c *Credential) *Profile {
	p := &Profile{
		ID:         c.ID,
		Email:      c.Email,
		Username:   c.Username,
		Name:       c.Name,
		Role:       c.Role,
		Phone:      c.Phone,
		Address:    c.Address,
		IsVerified: c.IsVerified,
		CreatedAt:  c.CreatedAt,
	}

	if c.AvatarKey != "" {
		url, err := s.blob.SignedURL(ctx, c.AvatarKey)
		if err != nil {
			s.logger.WarnContext(ctx, "sign avatar url", "error", err)
		}
		p.AvatarURL = url
	}

	return p
}

func (s *Service) link(action, token string) string {
	return fmt.Sprintf(
		"%s/v1/auth/%s/%s/%s",
		s.policy.PublicBaseURL,
		s.kind.Plural(),
		action,
		token,
	)
}

func (s *Service) noun() string {
	return string(s.kind)
}

func (s *Service) startSpan(ctx context.Context, flow string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "auth."+string(s.kind)+"."+flow,
		trace.WithAttributes(attribute.String("principal.kind", string(s.kind))),
	)
}

func endSpan(span trace.Span, errp *error) {
	if err := *errp; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

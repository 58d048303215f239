// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/config"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/middleware"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/principal"
)

const (
	claimType      = "typ"
	claimUserRole  = "user_role"
	claimAdminRole = "admin_role"
	claimEmail     = "email"
	claimUsername  = "username"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// TokenIssuer signs access and refresh tokens with HS256 under two
// distinct secrets, so one kind can never be replayed as the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	config        config.JWTConfig
	now           func() time.Time
}

type IssuerOption func(*TokenIssuer)

func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(m *TokenIssuer) {
		m.now = now
	}
}

func NewTokenIssuer(
	cfg config.JWTConfig,
	opts ...IssuerOption,
) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("token issuer: secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("token issuer: access and refresh secrets must differ")
	}

	m := &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		config:        cfg,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

type SignedToken struct {
	Token     string
	ExpiresAt time.Time
}

func (m *TokenIssuer) IssueAccessToken(p principal.Principal) (*SignedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.config.AccessTokenExpire)

	builder := m.baseClaims(p.PrincipalID(), now, expiresAt).
		Claim(claimType, typeAccess).
		Claim(claimEmail, p.EmailAddress())

	switch v := p.(type) {
	case principal.User:
		builder = builder.
			Claim(claimUserRole, string(v.Role)).
			Claim(claimUsername, v.Username)
	case principal.Admin:
		builder = builder.Claim(claimAdminRole, string(v.Role))
	default:
		return nil, fmt.Errorf("issue access token: unknown principal %T", p)
	}

	return m.sign(builder, m.accessSecret, expiresAt)
}

// IssueRefreshToken carries no role or profile claims.
func (m *TokenIssuer) IssueRefreshToken(p principal.Principal) (*SignedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.config.RefreshTokenExpire)

	builder := m.baseClaims(p.PrincipalID(), now, expiresAt).
		Claim(claimType, typeRefresh)

	return m.sign(builder, m.refreshSecret, expiresAt)
}

func (m *TokenIssuer) baseClaims(
	subject string,
	now, expiresAt time.Time,
) *jwt.Builder {
	return jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(subject).
		IssuedAt(now).
		Expiration(expiresAt)
}

func (m *TokenIssuer) sign(
	builder *jwt.Builder,
	secret []byte,
	expiresAt time.Time,
) (*SignedToken, error) {
	token, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), secret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &SignedToken{Token: string(signed), ExpiresAt: expiresAt}, nil
}

func (m *TokenIssuer) VerifyAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := m.parse(tokenString, m.accessSecret, typeAccess)
	if err != nil {
		return nil, err
	}

	subject, _ := token.Subject()
	expiresAt, _ := token.Expiration()

	claims := &middleware.AccessTokenClaims{
		Subject:   subject,
		ExpiresAt: expiresAt,
	}

	optionalString(token, claimEmail, &claims.Email)
	optionalString(token, claimUsername, &claims.Username)
	optionalString(token, claimUserRole, &claims.UserRole)
	optionalString(token, claimAdminRole, &claims.AdminRole)

	return claims, nil
}

// VerifyRefreshToken returns the subject of a valid refresh token.
func (m *TokenIssuer) VerifyRefreshToken(
	_ context.Context,
	tokenString string,
) (string, error) {
	token, err := m.parse(tokenString, m.refreshSecret, typeRefresh)
	if err != nil {
		return "", err
	}

	subject, _ := token.Subject()
	return subject, nil
}

// parse checks signature, type, issuer, audience and expiry. Expiry is
// exclusive: a token whose exp equals now is already expired.
func (m *TokenIssuer) parse(
	tokenString string,
	secret []byte,
	wantType string,
) (jwt.Token, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), secret),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get(claimType, &tokenType); err != nil || tokenType != wantType {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	if iss, _ := token.Issuer(); iss != m.config.Issuer {
		return nil, fmt.Errorf(
			"verify token: unexpected issuer: %w",
			core.ErrTokenInvalid,
		)
	}

	aud, _ := token.Audience()
	if !slices.Contains(aud, m.config.Audience) {
		return nil, fmt.Errorf(
			"verify token: unexpected audience: %w",
			core.ErrTokenInvalid,
		)
	}

	exp, ok := token.Expiration()
	if !ok {
		return nil, fmt.Errorf(
			"verify token: missing expiry: %w",
			core.ErrTokenInvalid,
		)
	}

	if !exp.After(m.now()) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
	}

	return token, nil
}

func optionalString(token jwt.Token, name string, dst *string) {
	if !token.Has(name) {
		return
	}
	var v string
	if err := token.Get(name, &v); err == nil {
		*dst = v
	}
}

var _ middleware.TokenVerifier = (*TokenIssuer)(nil)

// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/middleware"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/principal"
)

func newTestIssuer(t *testing.T, clock *testClock) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(testJWTConfig(), WithIssuerClock(clock.Now))
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer_RejectsSharedSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	_, err := NewTokenIssuer(cfg)
	require.Error(t, err)

	cfg.AccessSecret = ""
	_, err = NewTokenIssuer(cfg)
	require.Error(t, err)
}

func TestAccessToken_UserRoundTrip(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(t, clock)

	in := principal.User{
		ID:       "7d1f5f0e-1111-4c3a-9f00-000000000001",
		Email:    "a@x.com",
		Username: "ayesha",
		Role:     principal.UserRoleStoreAdmin,
	}

	tok, err := issuer.IssueAccessToken(in)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(15*time.Minute), tok.ExpiresAt)

	for range 2 {
		claims, err := issuer.VerifyAccessToken(context.Background(), tok.Token)
		require.NoError(t, err)

		assert.Equal(t, in.ID, claims.Subject)
		assert.Equal(t, "a@x.com", claims.Email)
		assert.Equal(t, "ayesha", claims.Username)
		assert.Equal(t, "store-admin", claims.UserRole)
		assert.Empty(t, claims.AdminRole)
		assert.True(t, claims.ExpiresAt.Equal(tok.ExpiresAt))

		out, err := middleware.ResolvePrincipal(claims)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestAccessToken_AdminRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, newTestClock())

	in := principal.Admin{ID: "admin-1", Email: "ops@x.com", Role: principal.AdminRoleAnalyst}

	tok, err := issuer.IssueAccessToken(in)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccessToken(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "analystAdmin", claims.AdminRole)
	assert.Empty(t, claims.UserRole)
	assert.Empty(t, claims.Username)

	out, err := middleware.ResolvePrincipal(claims)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAccessToken_ExpiryIsExclusive(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(t, clock)

	tok, err := issuer.IssueAccessToken(principal.User{ID: "u1", Role: principal.UserRoleBuyer})
	require.NoError(t, err)

	clock.Set(tok.ExpiresAt.Add(-time.Second))
	_, err = issuer.VerifyAccessToken(context.Background(), tok.Token)
	require.NoError(t, err)

	clock.Set(tok.ExpiresAt)
	_, err = issuer.VerifyAccessToken(context.Background(), tok.Token)
	require.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerify_RejectsForeignAndMalformedTokens(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(t, clock)
	p := principal.User{ID: "u1", Role: principal.UserRoleBuyer}

	access, err := issuer.IssueAccessToken(p)
	require.NoError(t, err)
	refresh, err := issuer.IssueRefreshToken(p)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(context.Background(), refresh.Token)
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = issuer.VerifyRefreshToken(context.Background(), access.Token)
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	subject, err := issuer.VerifyRefreshToken(context.Background(), refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)

	other := testJWTConfig()
	other.AccessSecret = strings.Repeat("z", 32)
	foreign, err := NewTokenIssuer(other, WithIssuerClock(clock.Now))
	require.NoError(t, err)
	_, err = foreign.VerifyAccessToken(context.Background(), access.Token)
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	wrongIss := testJWTConfig()
	wrongIss.Issuer = "someone-else"
	stranger, err := NewTokenIssuer(wrongIss, WithIssuerClock(clock.Now))
	require.NoError(t, err)
	_, err = stranger.VerifyAccessToken(context.Background(), access.Token)
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	wrongAud := testJWTConfig()
	wrongAud.Audience = "another-api"
	outsider, err := NewTokenIssuer(wrongAud, WithIssuerClock(clock.Now))
	require.NoError(t, err)
	_, err = outsider.VerifyAccessToken(context.Background(), access.Token)
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = issuer.VerifyAccessToken(context.Background(), "a.b.c")
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	parts := strings.Split(access.Token, ".")
	require.Len(t, parts, 3)
	parts[2] = strings.Split(refresh.Token, ".")[2]
	tampered := strings.Join(parts, ".")
	_, err = issuer.VerifyAccessToken(context.Background(), tampered)
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestRefreshToken_CarriesNoRoleClaims(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(t, clock)

	refresh, err := issuer.IssueRefreshToken(principal.Admin{
		ID:    "admin-1",
		Email: "ops@x.com",
		Role:  principal.AdminRoleSuper,
	})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(7*24*time.Hour), refresh.ExpiresAt)

	parsed, err := issuer.parse(refresh.Token, issuer.refreshSecret, typeRefresh)
	require.NoError(t, err)
	assert.False(t, parsed.Has(claimAdminRole))
	assert.False(t, parsed.Has(claimUserRole))
	assert.False(t, parsed.Has(claimEmail))
}

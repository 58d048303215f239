// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/principal"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

const (
	PrincipalKey   contextKey = "principal"
	PrincipalIDKey contextKey = "principal_id"
	KindKey        contextKey = "principal_kind"
	RoleKey        contextKey = "principal_role"
)

type TokenVerifier interface {
	VerifyAccessToken(
		ctx context.Context,
		token string,
	) (*AccessTokenClaims, error)
}

// AccessTokenClaims is the verified claim set. Exactly one of UserRole and
// AdminRole must be set for the token to name a principal.
type AccessTokenClaims struct {
	Subject   string
	Email     string
	Username  string
	UserRole  string
	AdminRole string
	ExpiresAt time.Time
}

var errNoRole = core.NewAppError(
	core.ErrTokenInvalid,
	"invalid token: no role information found",
	http.StatusUnauthorized,
	"TOKEN_INVALID",
)

// ResolvePrincipal picks the principal case from the claim shape.
func ResolvePrincipal(c *AccessTokenClaims) (principal.Principal, error) {
	hasUser := c.UserRole != ""
	hasAdmin := c.AdminRole != ""

	switch {
	case hasUser && !hasAdmin:
		role, ok := principal.ParseUserRole(c.UserRole)
		if !ok {
			return nil, fmt.Errorf("user role %q: %w", c.UserRole, errNoRole)
		}
		return principal.User{
			ID:       c.Subject,
			Email:    c.Email,
			Username: c.Username,
			Role:     role,
		}, nil
	case hasAdmin && !hasUser:
		role, ok := principal.ParseAdminRole(c.AdminRole)
		if !ok {
			return nil, fmt.Errorf("admin role %q: %w", c.AdminRole, errNoRole)
		}
		return principal.Admin{
			ID:    c.Subject,
			Email: c.Email,
			Role:  role,
		}, nil
	default:
		return nil, errNoRole
	}
}

// Authenticate verifies the access token and admits principals whose role
// is in allowedRoles. No roles means any authenticated principal.
func Authenticate(
	verifier TokenVerifier,
	allowedRoles ...string,
) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		roleSet[role] = struct{}{}
	}
	required := strings.Join(allowedRoles, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("you are not logged in"))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			p, err := ResolvePrincipal(claims)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			if len(roleSet) > 0 {
				if _, ok := roleSet[p.RoleName()]; !ok {
					core.JSONError(w, core.ForbiddenError(fmt.Sprintf(
						"access denied: required roles [%s], but got %s",
						required,
						p.RoleName(),
					)))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func WithPrincipal(ctx context.Context, p principal.Principal) context.Context {
	ctx = context.WithValue(ctx, PrincipalKey, p)
	ctx = context.WithValue(ctx, PrincipalIDKey, p.PrincipalID())
	ctx = context.WithValue(ctx, KindKey, p.Kind())
	ctx = context.WithValue(ctx, RoleKey, p.RoleName())
	return ctx
}

// ExtractToken reads the access-token cookie, falling back to a bearer
// header for non-browser clients.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	default:
		core.JSONError(w, core.TokenInvalidError())
	}
}

func GetPrincipal(ctx context.Context) principal.Principal {
	if p, ok := ctx.Value(PrincipalKey).(principal.Principal); ok {
		return p
	}
	return nil
}

func GetPrincipalID(ctx context.Context) string {
	if id, ok := ctx.Value(PrincipalIDKey).(string); ok {
		return id
	}
	return ""
}

func GetKind(ctx context.Context) principal.Kind {
	if kind, ok := ctx.Value(KindKey).(principal.Kind); ok {
		return kind
	}
	return ""
}

func GetRole(ctx context.Context) string {
	if role, ok := ctx.Value(RoleKey).(string); ok {
		return role
	}
	return ""
}

func IsAuthenticated(ctx context.Context) bool {
	return GetPrincipalID(ctx) != ""
}

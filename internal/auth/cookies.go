// AngelaMos | 2026
// cookies.go

package auth

import (
	"net/http"
	"time"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/middleware"
)

type CookieConfig struct {
	Domain string
	Path   string
	Secure bool
}

// The access cookie stays readable by scripts; the refresh cookie never is.
func (c CookieConfig) setAccess(w http.ResponseWriter, tok *SignedToken, now time.Time) {
	http.SetCookie(w, c.cookie(middleware.AccessTokenCookie, tok, now, false))
}

func (c CookieConfig) setRefresh(w http.ResponseWriter, tok *SignedToken, now time.Time) {
	http.SetCookie(w, c.cookie(middleware.RefreshTokenCookie, tok, now, true))
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	for _, name := range []string{
		middleware.AccessTokenCookie,
		middleware.RefreshTokenCookie,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     c.path(),
			Domain:   c.Domain,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: name == middleware.RefreshTokenCookie,
			Secure:   c.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (c CookieConfig) cookie(
	name string,
	tok *SignedToken,
	now time.Time,
	httpOnly bool,
) *http.Cookie {
	maxAge := int(tok.ExpiresAt.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     name,
		Value:    tok.Token,
		Path:     c.path(),
		Domain:   c.Domain,
		Expires:  tok.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieConfig) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

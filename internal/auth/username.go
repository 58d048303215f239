// AngelaMos | 2026
// username.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
)

const (
	usernameBaseMax     = 15
	usernameMin         = 3
	usernameMaxAttempts = 100
)

func usernameBase(fullName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(fullName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == usernameBaseMax {
				break
			}
		}
	}

	base := b.String()
	for len(base) < usernameMin {
		base += "0"
	}
	return base
}

// generateUsername derives a free username from the full name, trying
// numeric suffixes before falling back to a random one.
func (s *Service) generateUsername(ctx context.Context, fullName string) (string, error) {
	base := usernameBase(fullName)

	for i := 0; i <= usernameMaxAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate += strconv.Itoa(i)
		}

		taken, err := s.usernameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	suffix, err := core.GenerateSecureHex(4)
	if err != nil {
		return "", fmt.Errorf("generate username: %w", err)
	}
	return "user" + suffix, nil
}

func (s *Service) usernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := s.store.FindByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check username: %w", err)
}

// AngelaMos | 2026
// validation.go

package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// NewValidator registers the `username` and `phone` tags. Phone numbers
// without a country prefix are read in defaultRegion.
func NewValidator(defaultRegion string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	//nolint:errcheck // tags are static and valid
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(strings.ToLower(fl.Field().String()))
	})

	//nolint:errcheck // tags are static and valid
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		_, err := NormalizePhone(fl.Field().String(), defaultRegion)
		return err == nil
	})

	return v
}

// NormalizePhone returns the E.164 form of raw.
func NormalizePhone(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("normalize phone: empty: %w", ErrInvalidInput)
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", fmt.Errorf("normalize phone: %w: %w", ErrInvalidInput, err)
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("normalize phone: %q: %w", raw, ErrInvalidInput)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

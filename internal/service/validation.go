package service

import (
	"regexp"
	"strings"

	"storefront/internal/auth"
	apperrors "storefront/internal/errors"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > auth.MaxPasswordLength {
		return apperrors.InvalidInput("password must be at most %d bytes", auth.MaxPasswordLength)
	}
	return nil
}

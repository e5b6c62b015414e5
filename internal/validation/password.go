package validation

import (
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
)

const (
	MinPasswordLength = 6
	// bcrypt учитывает только первые 72 байта.
	MaxPasswordLength = 72
)

// ValidatePassword проверяет длину пароля.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.Validation("Password must be at least 6 characters")
	}
	if len(password) > MaxPasswordLength {
		return apperror.Validation("Password must be at most 72 bytes")
	}
	return nil
}

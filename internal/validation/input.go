package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
)

// Константы валидации
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MaxTitleLength    = 200
	MaxTextLength     = 5000
	MaxFieldLength    = 255
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// notblank: строка не пустая после обрезки пробелов.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ValidateCredentials проверяет пару логин/пароль при входе.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return apperror.Validation("Username and password are required")
	}
	return nil
}

// ValidateUsername проверяет имя пользователя при регистрации.
func ValidateUsername(username string) error {
	length := utf8.RuneCountInString(username)
	if length < MinUsernameLength || length > MaxUsernameLength {
		return apperror.Validation("Username must be between 3 and 50 characters")
	}
	if !usernameRegex.MatchString(username) {
		return apperror.Validation("Username may contain only letters, digits, dots, dashes and underscores")
	}
	return nil
}

// ValidateProfile проверяет поля профиля. Для типа "Other" обязательна своя подпись.
func ValidateProfile(p models.ProfileFields, message string) error {
	for _, v := range []string{p.FullName, p.PhoneNumber, p.Address, p.UserType} {
		if strings.TrimSpace(v) == "" {
			return apperror.Validation(message)
		}
		if utf8.RuneCountInString(v) > MaxFieldLength {
			return apperror.Validation("Profile fields must be at most 255 characters")
		}
	}
	if p.UserType == models.UserTypeOther && strings.TrimSpace(p.UserTypeCustom) == "" {
		return apperror.Validation(`Custom user type is required when "Other" is selected`)
	}
	return nil
}

// ValidateIssueInput проверяет поля обращения.
// message подставляется, когда не хватает обязательных полей.
func ValidateIssueInput(in models.IssueInput, message string) error {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !asValidationErrors(err, &verrs) {
			return apperror.Wrap(err, apperror.ErrCodeValidation, message)
		}
		for _, fe := range verrs {
			switch fe.Field() {
			case "Latitude":
				return apperror.Validation("Latitude must be between -90 and 90")
			case "Longitude":
				return apperror.Validation("Longitude must be between -180 and 180")
			}
		}
		return apperror.Validation(message)
	}

	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return apperror.Validation("Title must be at most 200 characters")
	}
	if utf8.RuneCountInString(in.Description) > MaxTextLength {
		return apperror.Validation("Description must be at most 5000 characters")
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/validation"
)

// UserStore описывает зависимости AuthService от слоя хранилища.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
}

// AuthService инкапсулирует регистрацию, вход и профиль гражданина.
type AuthService struct {
	users        UserStore
	tokenManager *TokenManager
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Username string
	Password string
	models.ProfileFields
}

// AuthResult возвращает итог регистрации или входа.
type AuthResult struct {
	Token            string    `json:"token"`
	ID               uuid.UUID `json:"id"`
	Username         string    `json:"username"`
	ProfileCompleted bool      `json:"profileCompleted"`
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users UserStore, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		users:        users,
		tokenManager: tokenManager,
	}
}

// Register создаёт гражданина сразу с заполненным профилем.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, apperror.Validation("All fields are required")
	}
	if err := validation.ValidateProfile(in.ProfileFields, "All fields are required"); err != nil {
		return nil, err
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		PasswordHash: string(passHash),
	}
	applyProfile(user, in.ProfileFields)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login проверяет учётные данные и возвращает токен.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	return s.issue(user)
}

// GetProfile возвращает профиль пользователя.
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile обновляет профиль пользователя.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, fields models.ProfileFields) (*models.User, error) {
	if err := validation.ValidateProfile(fields, "All profile fields are required"); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	applyProfile(user, fields)

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokenManager.Generate(user.ID, user.Username, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:            token,
		ID:               user.ID,
		Username:         user.Username,
		ProfileCompleted: user.ProfileCompleted(),
	}, nil
}

// applyProfile переносит поля профиля; своя подпись хранится только для "Other".
func applyProfile(user *models.User, f models.ProfileFields) {
	user.FullName = stringPtr(strings.TrimSpace(f.FullName))
	user.PhoneNumber = stringPtr(strings.TrimSpace(f.PhoneNumber))
	user.Address = stringPtr(strings.TrimSpace(f.Address))
	user.UserType = stringPtr(strings.TrimSpace(f.UserType))
	user.UserTypeCustom = nil
	if f.UserType == models.UserTypeOther {
		user.UserTypeCustom = stringPtr(strings.TrimSpace(f.UserTypeCustom))
	}
}

func stringPtr(s string) *string {
	return &s
}

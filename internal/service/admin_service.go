package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/validation"
)

// AdminStore - хранилище учётных записей администраторов.
type AdminStore interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByUsername(ctx context.Context, username string) (*models.Admin, error)
	List(ctx context.Context) ([]models.Admin, error)
	Count(ctx context.Context) (int, error)
}

var (
	errInvalidAdminCredentials = apperror.Unauthorized("Invalid admin credentials")
	errAdminSignupKey          = apperror.Forbidden("Invalid admin signup key")
	errAdminUsernameTaken      = apperror.Conflict("Admin username already exists")
)

// AdminService управляет входом и созданием администраторов.
type AdminService struct {
	admins       AdminStore
	tokenManager *TokenManager
	signupKey    string
}

// AdminLoginResult - ответ на вход администратора.
type AdminLoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AdminOverview - ответ для /admin/check.
type AdminOverview struct {
	Count  int            `json:"count"`
	Admins []models.Admin `json:"admins"`
}

// NewAdminService создаёт сервис администраторов.
// Если signupKey не пуст, создание администратора требует этот ключ.
func NewAdminService(admins AdminStore, tokenManager *TokenManager, signupKey string) *AdminService {
	return &AdminService{
		admins:       admins,
		tokenManager: tokenManager,
		signupKey:    signupKey,
	}
}

// Login проверяет учётные данные администратора и выпускает токен с ролью admin.
func (s *AdminService) Login(ctx context.Context, username, password string) (*AdminLoginResult, error) {
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	admin, err := s.admins.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrAdminNotFound) {
			return nil, errInvalidAdminCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidAdminCredentials
	}

	token, err := s.tokenManager.Generate(admin.ID, admin.Username, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &AdminLoginResult{Token: token, Username: admin.Username, Role: models.RoleAdmin}, nil
}

// Create создаёт администратора.
func (s *AdminService) Create(ctx context.Context, username, password, signupKey string) (*models.Admin, error) {
	if s.signupKey != "" && subtle.ConstantTimeCompare([]byte(s.signupKey), []byte(signupKey)) != 1 {
		return nil, errAdminSignupKey
	}
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("admin service: не удалось захешировать пароль: %w", err)
	}

	admin := &models.Admin{Username: strings.TrimSpace(username), PasswordHash: string(hash)}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, apperror.ErrUsernameTaken) {
			return nil, errAdminUsernameTaken
		}
		return nil, err
	}
	return admin, nil
}

// Overview возвращает количество и список администраторов.
func (s *AdminService) Overview(ctx context.Context) (*AdminOverview, error) {
	count, err := s.admins.Count(ctx)
	if err != nil {
		return nil, err
	}
	admins, err := s.admins.List(ctx)
	if err != nil {
		return nil, err
	}
	if admins == nil {
		admins = []models.Admin{}
	}
	return &AdminOverview{Count: count, Admins: admins}, nil
}

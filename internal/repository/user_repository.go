package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/repository/common"
)

const usersTable = "users"

// UserRepository отвечает за работу с таблицей users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт пользователя вместе с профилем.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, full_name, phone_number, address, user_type, user_type_custom)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Username, user.PasswordHash, user.FullName, user.PhoneNumber,
		user.Address, user.UserType, user.UserTypeCustom,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, "users_username_key") {
			return apperror.ErrUsernameTaken
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByUsername возвращает пользователя по логину.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return common.GetByField[models.User](ctx, r.db, usersTable, "username", username, apperror.ErrUserNotFound)
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, usersTable, id, apperror.ErrUserNotFound)
}

// UpdateProfile обновляет поля профиля.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET full_name = $1, phone_number = $2, address = $3, user_type = $4, user_type_custom = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.FullName, user.PhoneNumber, user.Address, user.UserType, user.UserTypeCustom, user.ID,
	).Scan(&user.UpdatedAt); err != nil {
		if isNoRows(err) {
			return apperror.ErrUserNotFound
		}
		return fmt.Errorf("user repository: update profile %w", err)
	}

	return nil
}

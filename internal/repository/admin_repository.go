package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/repository/common"
)

// AdminRepository работает с таблицей admins.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository создаёт репозиторий администраторов.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Create добавляет администратора.
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	query := `
		INSERT INTO admins (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, admin.Username, admin.PasswordHash).
		Scan(&admin.ID, &admin.CreatedAt); err != nil {
		if common.IsUniqueViolation(err, "admins_username_key") {
			return apperror.ErrUsernameTaken
		}
		return fmt.Errorf("admin repository: create %w", err)
	}
	return nil
}

// GetByUsername возвращает администратора по логину.
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*models.Admin, error) {
	return common.GetByField[models.Admin](ctx, r.db, "admins", "username", username, apperror.ErrAdminNotFound)
}

// List возвращает всех администраторов без хешей паролей.
func (r *AdminRepository) List(ctx context.Context) ([]models.Admin, error) {
	var admins []models.Admin
	query := `SELECT id, username, created_at FROM admins ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &admins, query); err != nil {
		return nil, fmt.Errorf("admin repository: list %w", err)
	}
	return admins, nil
}

// Count возвращает количество администраторов.
func (r *AdminRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM admins`); err != nil {
		return 0, fmt.Errorf("admin repository: count %w", err)
	}
	return count, nil
}

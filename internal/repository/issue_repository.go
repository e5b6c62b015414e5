package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/repository/common"
)

const (
	issueColumns = `i.id, i.issue_id, i.user_id, i.title, i.description, i.location,
		i.latitude, i.longitude, i.date_of_occurrence, i.media_paths, i.status,
		i.feedback, i.rating, i.created_at, i.updated_at, i.resolved_at`

	reporterColumns = `u.full_name, u.phone_number, u.address, u.user_type, u.user_type_custom`
)

// issueRow - строка таблицы issues. media_paths хранится как TEXT[].
type issueRow struct {
	ID               uuid.UUID      `db:"id"`
	IssueCode        string         `db:"issue_id"`
	UserID           uuid.UUID      `db:"user_id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Location         string         `db:"location"`
	Latitude         *float64       `db:"latitude"`
	Longitude        *float64       `db:"longitude"`
	DateOfOccurrence string         `db:"date_of_occurrence"`
	MediaPaths       pq.StringArray `db:"media_paths"`
	Status           string         `db:"status"`
	Feedback         *string        `db:"feedback"`
	Rating           *int           `db:"rating"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	ResolvedAt       *time.Time     `db:"resolved_at"`
}

func (r issueRow) toModel() models.Issue {
	media := []string(r.MediaPaths)
	if media == nil {
		media = []string{}
	}
	return models.Issue{
		ID:               r.ID,
		IssueCode:        r.IssueCode,
		UserID:           r.UserID,
		Title:            r.Title,
		Description:      r.Description,
		Location:         r.Location,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		DateOfOccurrence: r.DateOfOccurrence,
		MediaPaths:       media,
		Status:           models.IssueStatus(r.Status),
		Feedback:         r.Feedback,
		Rating:           r.Rating,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		ResolvedAt:       r.ResolvedAt,
	}
}

// issueDetailsRow - обращение с присоединённым профилем автора.
type issueDetailsRow struct {
	issueRow
	FullName       *string `db:"full_name"`
	PhoneNumber    *string `db:"phone_number"`
	Address        *string `db:"address"`
	UserType       *string `db:"user_type"`
	UserTypeCustom *string `db:"user_type_custom"`
}

func (r issueDetailsRow) toModel() models.IssueDetails {
	return models.IssueDetails{
		Issue: r.issueRow.toModel(),
		Reporter: models.Reporter{
			FullName:       r.FullName,
			PhoneNumber:    r.PhoneNumber,
			Address:        r.Address,
			UserType:       r.UserType,
			UserTypeCustom: r.UserTypeCustom,
		},
	}
}

// IssueRepository хранит обращения граждан в PostgreSQL.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository создаёт репозиторий обращений.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create сохраняет новое обращение и заполняет id и временные метки.
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	query := `
		INSERT INTO issues (issue_id, user_id, title, description, location, latitude, longitude,
			date_of_occurrence, media_paths, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		issue.IssueCode, issue.UserID, issue.Title, issue.Description, issue.Location,
		issue.Latitude, issue.Longitude, issue.DateOfOccurrence,
		pq.StringArray(issue.MediaPaths), string(issue.Status),
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, "issues_issue_id_key") {
			return apperror.ErrIssueCodeTaken
		}
		return fmt.Errorf("issue repository: create %w", err)
	}

	return nil
}

// GetByID возвращает обращение без профиля автора.
func (r *IssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	var row issueRow
	query := `SELECT ` + issueColumns + ` FROM issues i WHERE i.id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if isNoRows(err) {
			return nil, apperror.ErrIssueNotFound
		}
		return nil, fmt.Errorf("issue repository: get by id %w", err)
	}
	issue := row.toModel()
	return &issue, nil
}

// GetDetails возвращает обращение вместе с профилем автора.
func (r *IssueRepository) GetDetails(ctx context.Context, id uuid.UUID) (*models.IssueDetails, error) {
	var row issueDetailsRow
	query := `SELECT ` + issueColumns + `, ` + reporterColumns + `
		FROM issues i
		JOIN users u ON i.user_id = u.id
		WHERE i.id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if isNoRows(err) {
			return nil, apperror.ErrIssueNotFound
		}
		return nil, fmt.Errorf("issue repository: get details %w", err)
	}
	details := row.toModel()
	return &details, nil
}

// GetByCodeForOwner ищет обращение по публичному коду среди обращений владельца.
func (r *IssueRepository) GetByCodeForOwner(ctx context.Context, code string, ownerID uuid.UUID) (*models.Issue, error) {
	var row issueRow
	query := `SELECT ` + issueColumns + ` FROM issues i WHERE i.issue_id = $1 AND i.user_id = $2`
	if err := r.db.GetContext(ctx, &row, query, code, ownerID); err != nil {
		if isNoRows(err) {
			return nil, apperror.ErrIssueNotFound
		}
		return nil, fmt.Errorf("issue repository: get by code %w", err)
	}
	issue := row.toModel()
	return &issue, nil
}

// ListByOwner возвращает обращения пользователя, новые первыми.
func (r *IssueRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Issue, error) {
	var rows []issueRow
	query := `SELECT ` + issueColumns + ` FROM issues i WHERE i.user_id = $1 ORDER BY i.created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("issue repository: list by owner %w", err)
	}

	issues := make([]models.Issue, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, row.toModel())
	}
	return issues, nil
}

// List возвращает обращения для админки с фильтром по статусу и поиском.
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]models.IssueDetails, error) {
	query, args := buildListQuery(filter)

	var rows []issueDetailsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("issue repository: list %w", err)
	}

	issues := make([]models.IssueDetails, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, row.toModel())
	}
	return issues, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildListQuery(filter models.IssueFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(i.issue_id ILIKE $%d OR i.title ILIKE $%d OR i.description ILIKE $%d)", n, n, n))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + issueColumns + `, ` + reporterColumns + ` FROM issues i JOIN users u ON i.user_id = u.id`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY i.created_at DESC")

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	return sb.String(), args
}

// Update сохраняет изменения содержимого и список медиа.
func (r *IssueRepository) Update(ctx context.Context, issue *models.Issue) error {
	query := `
		UPDATE issues
		SET title = $1, description = $2, location = $3, latitude = $4, longitude = $5,
			date_of_occurrence = $6, media_paths = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		issue.Title, issue.Description, issue.Location, issue.Latitude, issue.Longitude,
		issue.DateOfOccurrence, pq.StringArray(issue.MediaPaths), issue.ID,
	).Scan(&issue.UpdatedAt); err != nil {
		if isNoRows(err) {
			return apperror.ErrIssueNotFound
		}
		return fmt.Errorf("issue repository: update %w", err)
	}
	return nil
}

// UpdateStatus меняет статус и время решения.
func (r *IssueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.IssueStatus, resolvedAt *time.Time) error {
	query := `UPDATE issues SET status = $1, resolved_at = $2, updated_at = NOW() WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, string(status), resolvedAt, id)
	if err != nil {
		return fmt.Errorf("issue repository: update status %w", err)
	}
	return requireAffected(res, apperror.ErrIssueNotFound)
}

// Delete удаляет обращение.
func (r *IssueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("issue repository: delete %w", err)
	}
	return requireAffected(res, apperror.ErrIssueNotFound)
}

// Stats считает обращения по статусам.
func (r *IssueRepository) Stats(ctx context.Context) (*models.IssueStats, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM issues GROUP BY status`); err != nil {
		return nil, fmt.Errorf("issue repository: stats %w", err)
	}

	stats := &models.IssueStats{ByStatus: make(map[models.IssueStatus]int, len(models.AllIssueStatuses))}
	for _, s := range models.AllIssueStatuses {
		stats.ByStatus[s] = 0
	}
	for _, row := range rows {
		stats.ByStatus[models.IssueStatus(row.Status)] = row.Count
		stats.Total += row.Count
	}
	return stats, nil
}

// ListMediaPaths возвращает все ссылки на медиа, на которые ссылаются обращения.
func (r *IssueRepository) ListMediaPaths(ctx context.Context) ([]string, error) {
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, `SELECT DISTINCT unnest(media_paths) FROM issues`); err != nil {
		return nil, fmt.Errorf("issue repository: list media paths %w", err)
	}
	return paths, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

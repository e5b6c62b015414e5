package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jandrishti/jandrishti-backend/internal/logger"
	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/validation"
)

// IssueStore - хранилище обращений.
type IssueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*models.IssueDetails, error)
	GetByCodeForOwner(ctx context.Context, code string, ownerID uuid.UUID) (*models.Issue, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.IssueDetails, error)
	Update(ctx context.Context, issue *models.Issue) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.IssueStatus, resolvedAt *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*models.IssueStats, error)
}

// EventPublisher рассылает события подключённым клиентам.
// Publish не блокируется и не возвращает ошибок.
type EventPublisher interface {
	Publish(event string, payload interface{})
}

// IssueDeletedEvent - полезная нагрузка события issue_deleted.
type IssueDeletedEvent struct {
	ID        uuid.UUID `json:"id"`
	IssueCode string    `json:"issue_id"`
}

// MaxListLimit ограничивает размер страницы в админском списке.
const MaxListLimit = 500

const (
	msgIssueFieldsRequired       = "All issue fields are required"
	msgIssueFieldsRequiredUpdate = "All issue fields are required for update"
)

// IssueService реализует жизненный цикл обращения.
type IssueService struct {
	store  IssueStore
	blobs  BlobStore
	events EventPublisher
	now    func() time.Time
	intN   func(int) int

	cache    *CacheService
	cacheTTL time.Duration
}

// NewIssueService создаёт сервис обращений.
func NewIssueService(store IssueStore, blobs BlobStore, events EventPublisher) *IssueService {
	return &IssueService{
		store:  store,
		blobs:  blobs,
		events: events,
		now:    time.Now,
		intN:   rand.Intn,
	}
}

// WithStatsCache включает кэширование статистики для админки.
func (s *IssueService) WithStatsCache(cache *CacheService, ttl time.Duration) *IssueService {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// Create регистрирует новое обращение со статусом OPEN.
func (s *IssueService) Create(ctx context.Context, ownerID uuid.UUID, in models.IssueInput, uploaded []string) (*models.IssueDetails, error) {
	if err := validation.ValidateIssueInput(in, msgIssueFieldsRequired); err != nil {
		return nil, err
	}

	issue := &models.Issue{
		UserID:     ownerID,
		MediaPaths: append([]string{}, uploaded...),
		Status:     models.IssueStatusOpen,
	}
	applyIssueInput(issue, in)

	for attempt := 1; ; attempt++ {
		issue.IssueCode = generateIssueCode(s.now(), s.intN)
		err := s.store.Create(ctx, issue)
		if err == nil {
			break
		}
		if errors.Is(err, apperror.ErrIssueCodeTaken) && attempt < maxIssueCodeAttempts {
			logger.L().WithField("issue_id", issue.IssueCode).Warn("issue service: коллизия кода, генерируем новый")
			continue
		}
		return nil, err
	}

	s.invalidateStats()

	details, err := s.store.GetDetails(ctx, issue.ID)
	if err != nil {
		return nil, err
	}

	s.events.Publish(models.EventNewIssue, details)
	return details, nil
}

// Edit обновляет содержимое и медиа обращения. Доступно только владельцу и только в статусе OPEN.
func (s *IssueService) Edit(ctx context.Context, issueID, requesterID uuid.UUID, in models.IssueInput, keep, uploaded []string) (*models.IssueDetails, error) {
	issue, err := s.store.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !issue.IsOwnedBy(requesterID) {
		return nil, apperror.Forbidden("Unauthorized: You can only edit your own issues")
	}
	if !issue.IsEditable() {
		return nil, apperror.InvalidState(`Issue can only be edited if status is "OPEN"`)
	}
	if err := validation.ValidateIssueInput(in, msgIssueFieldsRequiredUpdate); err != nil {
		return nil, err
	}

	final, toDelete := ReconcileMedia(issue.MediaPaths, keep, uploaded)

	applyIssueInput(issue, in)
	issue.MediaPaths = final
	if err := s.store.Update(ctx, issue); err != nil {
		return nil, err
	}

	// Файлы удаляем только после успешной записи.
	scheduleBlobDeletion(ctx, s.blobs, toDelete)

	details, err := s.store.GetDetails(ctx, issue.ID)
	if err != nil {
		return nil, err
	}

	s.events.Publish(models.EventIssueUpdated, details)
	return details, nil
}

// Delete удаляет обращение и все его медиа.
func (s *IssueService) Delete(ctx context.Context, issueID, requesterID uuid.UUID) error {
	issue, err := s.store.GetByID(ctx, issueID)
	if err != nil {
		return err
	}
	if !issue.IsOwnedBy(requesterID) {
		return apperror.Forbidden("Unauthorized: You can only delete your own issues")
	}
	if !issue.IsEditable() {
		return apperror.InvalidState(`Issue can only be deleted if status is "OPEN"`)
	}

	if err := s.store.Delete(ctx, issue.ID); err != nil {
		return err
	}
	s.invalidateStats()

	scheduleBlobDeletion(ctx, s.blobs, issue.MediaPaths)

	s.events.Publish(models.EventIssueDeleted, IssueDeletedEvent{ID: issue.ID, IssueCode: issue.IssueCode})
	return nil
}

// UpdateStatus меняет статус обращения (только администратор).
// Если статус не меняется, возвращает changed=false без записи и события.
func (s *IssueService) UpdateStatus(ctx context.Context, issueID uuid.UUID, rawStatus string, isAdmin bool) (*models.IssueDetails, bool, error) {
	if !isAdmin {
		return nil, false, apperror.ErrAdminOnly
	}

	status, err := models.ParseIssueStatus(rawStatus)
	if err != nil {
		return nil, false, err
	}

	issue, err := s.store.GetByID(ctx, issueID)
	if err != nil {
		return nil, false, err
	}
	if issue.Status == status {
		return nil, false, nil
	}

	var resolvedAt *time.Time
	if status == models.IssueStatusResolved {
		now := s.now().UTC()
		resolvedAt = &now
	}

	if err := s.store.UpdateStatus(ctx, issue.ID, status, resolvedAt); err != nil {
		return nil, false, err
	}
	s.invalidateStats()

	details, err := s.store.GetDetails(ctx, issue.ID)
	if err != nil {
		return nil, false, err
	}

	s.events.Publish(models.EventStatusUpdated, details)
	return details, true, nil
}

// ListForOwner возвращает обращения владельца. Чужие списки недоступны.
func (s *IssueService) ListForOwner(ctx context.Context, requesterID, ownerID uuid.UUID) ([]models.Issue, error) {
	if requesterID != ownerID {
		return nil, apperror.Forbidden("Unauthorized: You can only view your own issues")
	}
	issues, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return issues, nil
}

// GetByCodeForOwner ищет обращение по публичному коду среди своих.
func (s *IssueService) GetByCodeForOwner(ctx context.Context, code string, ownerID uuid.UUID) (*models.Issue, error) {
	issue, err := s.store.GetByCodeForOwner(ctx, strings.TrimSpace(code), ownerID)
	if err != nil {
		if errors.Is(err, apperror.ErrIssueNotFound) {
			return nil, apperror.NotFound("Issue not found for this user")
		}
		return nil, err
	}
	return issue, nil
}

// ListAll возвращает обращения для админки.
func (s *IssueService) ListAll(ctx context.Context, filter models.IssueFilter) ([]models.IssueDetails, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation("Invalid status provided")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperror.Validation("limit and offset must not be negative")
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}

	issues, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []models.IssueDetails{}
	}
	return issues, nil
}

// GetDetails возвращает обращение с профилем автора.
func (s *IssueService) GetDetails(ctx context.Context, issueID uuid.UUID) (*models.IssueDetails, error) {
	return s.store.GetDetails(ctx, issueID)
}

// Stats возвращает количество обращений по статусам.
func (s *IssueService) Stats(ctx context.Context) (*models.IssueStats, error) {
	if s.cache == nil {
		return s.store.Stats(ctx)
	}
	value, err := s.cache.GetOrSet(statsCacheKey, s.cacheTTL, func() (interface{}, error) {
		return s.store.Stats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.(*models.IssueStats), nil
}

func (s *IssueService) invalidateStats() {
	if s.cache != nil {
		s.cache.Delete(statsCacheKey)
	}
}

func applyIssueInput(issue *models.Issue, in models.IssueInput) {
	issue.Title = strings.TrimSpace(in.Title)
	issue.Description = strings.TrimSpace(in.Description)
	issue.Location = strings.TrimSpace(in.Location)
	issue.DateOfOccurrence = strings.TrimSpace(in.DateOfOccurrence)
	issue.Latitude = in.Latitude
	issue.Longitude = in.Longitude
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jandrishti/jandrishti-backend/internal/export"
	"github.com/jandrishti/jandrishti-backend/internal/http/handlers/common"
	"github.com/jandrishti/jandrishti-backend/internal/logger"
	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/service"
)

const (
	formMedia         = "media"
	formNewMedia      = "newMedia"
	formExistingMedia = "existingMedia"
)

var errInvalidExistingMedia = apperror.Validation("Invalid existing media data format")

type issueService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in models.IssueInput, uploaded []string) (*models.IssueDetails, error)
	Edit(ctx context.Context, issueID, requesterID uuid.UUID, in models.IssueInput, keep, uploaded []string) (*models.IssueDetails, error)
	Delete(ctx context.Context, issueID, requesterID uuid.UUID) error
	UpdateStatus(ctx context.Context, issueID uuid.UUID, rawStatus string, isAdmin bool) (*models.IssueDetails, bool, error)
	ListForOwner(ctx context.Context, requesterID, ownerID uuid.UUID) ([]models.Issue, error)
	GetByCodeForOwner(ctx context.Context, code string, ownerID uuid.UUID) (*models.Issue, error)
	ListAll(ctx context.Context, filter models.IssueFilter) ([]models.IssueDetails, error)
	GetDetails(ctx context.Context, issueID uuid.UUID) (*models.IssueDetails, error)
	Stats(ctx context.Context) (*models.IssueStats, error)
}

// MediaStore сохраняет загруженные файлы и удаляет их при откате.
type MediaStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, int64, error)
	Delete(ctx context.Context, ref string) error
}

// IssueHandler обслуживает /api/issues.
type IssueHandler struct {
	issues        issueService
	media         MediaStore
	maxFiles      int
	maxUploadSize int64
	now           func() time.Time
}

// NewIssueHandler создаёт хэндлер. maxUploadMB ограничивает один файл.
func NewIssueHandler(issues issueService, media MediaStore, maxFiles int, maxUploadMB int64) *IssueHandler {
	return &IssueHandler{
		issues:        issues,
		media:         media,
		maxFiles:      maxFiles,
		maxUploadSize: maxUploadMB * 1024 * 1024,
		now:           time.Now,
	}
}

// Create обрабатывает POST /api/issues (multipart, файлы в поле media).
func (h *IssueHandler) Create(c *gin.Context) {
	identity, ok := common.RequireCitizen(c)
	if !ok {
		return
	}

	if err := h.parseForm(c); err != nil {
		_ = c.Error(err)
		return
	}
	in, err := issueInputFromForm(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	uploaded, err := h.saveFiles(c, formMedia)
	if err != nil {
		_ = c.Error(err)
		return
	}

	details, err := h.issues.Create(c.Request.Context(), identity.ID, in, uploaded)
	if err != nil {
		h.discard(uploaded)
		_ = c.Error(err)
		return
	}

	common.RespondMessage(c, http.StatusCreated, "Issue reported successfully", gin.H{
		"issueId": details.IssueCode,
		"issue":   details,
	})
}

// ListForOwner обрабатывает GET /api/issues/user/:userId.
func (h *IssueHandler) ListForOwner(c *gin.Context) {
	identity, ok := common.RequireIdentity(c)
	if !ok {
		return
	}

	// Невалидный id просто не совпадёт с собственным и даст 403.
	ownerID, _ := uuid.Parse(c.Param("userId"))

	issues, err := h.issues.ListForOwner(c.Request.Context(), identity.ID, ownerID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

// Search обрабатывает GET /api/issues/search/:issueCode.
func (h *IssueHandler) Search(c *gin.Context) {
	identity, ok := common.RequireIdentity(c)
	if !ok {
		return
	}

	issue, err := h.issues.GetByCodeForOwner(c.Request.Context(), c.Param("issueCode"), identity.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// Update обрабатывает PUT /api/issues/:id (multipart: newMedia + existingMedia JSON).
func (h *IssueHandler) Update(c *gin.Context) {
	identity, ok := common.RequireCitizen(c)
	if !ok {
		return
	}
	issueID, err := common.ParseUUIDParam(c, "id", apperror.ErrIssueNotFound)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.parseForm(c); err != nil {
		_ = c.Error(err)
		return
	}
	in, err := issueInputFromForm(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	keep, err := parseExistingMedia(c.PostForm(formExistingMedia))
	if err != nil {
		_ = c.Error(err)
		return
	}

	uploaded, err := h.saveFiles(c, formNewMedia)
	if err != nil {
		_ = c.Error(err)
		return
	}

	issue, err := h.issues.Edit(c.Request.Context(), issueID, identity.ID, in, keep, uploaded)
	if err != nil {
		h.discard(uploaded)
		_ = c.Error(err)
		return
	}
	common.RespondMessage(c, http.StatusOK, "Issue updated successfully", gin.H{"issue": issue})
}

// Delete обрабатывает DELETE /api/issues/:id.
func (h *IssueHandler) Delete(c *gin.Context) {
	identity, ok := common.RequireCitizen(c)
	if !ok {
		return
	}
	issueID, err := common.ParseUUIDParam(c, "id", apperror.ErrIssueNotFound)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.issues.Delete(c.Request.Context(), issueID, identity.ID); err != nil {
		_ = c.Error(err)
		return
	}
	common.RespondMessage(c, http.StatusOK, "Issue deleted successfully", nil)
}

// ListAll обрабатывает GET /api/issues (админ).
func (h *IssueHandler) ListAll(c *gin.Context) {
	filter, err := issueFilterFromQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	issues, err := h.issues.ListAll(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

// Get обрабатывает GET /api/issues/:id и /api/admin/get-single-issue/:id (админ).
func (h *IssueHandler) Get(c *gin.Context) {
	issueID, err := common.ParseUUIDParam(c, "id", apperror.ErrIssueNotFound)
	if err != nil {
		_ = c.Error(err)
		return
	}

	details, err := h.issues.GetDetails(c.Request.Context(), issueID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// UpdateStatus обрабатывает PUT /api/issues/:id/status (админ).
func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	identity, ok := common.RequireIdentity(c)
	if !ok {
		return
	}
	issueID, err := common.ParseUUIDParam(c, "id", apperror.ErrIssueNotFound)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	details, changed, err := h.issues.UpdateStatus(c.Request.Context(), issueID, req.Status, identity.IsAdmin())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !changed {
		common.RespondMessage(c, http.StatusOK, "Status already updated", nil)
		return
	}
	common.RespondMessage(c, http.StatusOK, "Issue status updated successfully", gin.H{"issue": details})
}

// Stats обрабатывает GET /api/issues/stats (админ).
func (h *IssueHandler) Stats(c *gin.Context) {
	stats, err := h.issues.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Export обрабатывает GET /api/issues/export (админ): отфильтрованный список в PDF.
func (h *IssueHandler) Export(c *gin.Context) {
	filter, err := issueFilterFromQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if filter.Limit == 0 {
		filter.Limit = service.MaxListLimit
	}

	issues, err := h.issues.ListAll(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	now := h.now()
	doc, err := export.IssuesPDF(issues, filter, now)
	if err != nil {
		_ = c.Error(err)
		return
	}

	fileName := fmt.Sprintf("jandrishti-issues-%s.pdf", now.UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, "application/pdf", doc)
}

// saveFiles сохраняет файлы из поля формы. При ошибке уже сохранённые удаляются.
func (h *IssueHandler) saveFiles(c *gin.Context, field string) ([]string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// Запрос без файлов (urlencoded или пустая форма) допустим.
		return []string{}, nil
	}

	files := form.File[field]
	if h.maxFiles > 0 && len(files) > h.maxFiles {
		return nil, apperror.Validation(fmt.Sprintf("Too many files, at most %d allowed", h.maxFiles))
	}

	refs := make([]string, 0, len(files))
	for _, fh := range files {
		ref, err := h.saveOne(c.Request.Context(), fh)
		if err != nil {
			h.discard(refs)
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (h *IssueHandler) saveOne(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("issue handler: open upload %w", err)
	}
	defer f.Close()

	ref, _, err := h.media.Save(ctx, fh.Filename, f)
	return ref, err
}

// discard удаляет файлы, сохранённые в рамках неуспешного запроса.
func (h *IssueHandler) discard(refs []string) {
	for _, ref := range refs {
		if err := h.media.Delete(context.Background(), ref); err != nil {
			logger.L().WithFields(logrus.Fields{"ref": ref}).WithError(err).Warn("issue handler: не удалось удалить загруженный файл")
		}
	}
}

// parseForm ограничивает тело запроса (все файлы плюс запас на поля формы) и разбирает форму.
// Превышение лимита даёт 413, запрос без multipart допустим.
func (h *IssueHandler) parseForm(c *gin.Context) error {
	if h.maxUploadSize > 0 {
		files := int64(h.maxFiles)
		if files <= 0 {
			files = 1
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, files*h.maxUploadSize+1<<20)
	}

	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ErrUploadTooLarge
		}
	}
	return nil
}

func issueInputFromForm(c *gin.Context) (models.IssueInput, error) {
	lat, err := common.ParseOptionalFloat(c.PostForm("latitude"), "latitude")
	if err != nil {
		return models.IssueInput{}, err
	}
	lng, err := common.ParseOptionalFloat(c.PostForm("longitude"), "longitude")
	if err != nil {
		return models.IssueInput{}, err
	}

	return models.IssueInput{
		Title:            c.PostForm("title"),
		Description:      c.PostForm("description"),
		Location:         c.PostForm("location"),
		DateOfOccurrence: c.PostForm("dateOfOccurrence"),
		Latitude:         lat,
		Longitude:        lng,
	}, nil
}

// parseExistingMedia разбирает JSON-массив путей, которые клиент оставляет.
func parseExistingMedia(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	var keep []string
	if err := json.Unmarshal([]byte(raw), &keep); err != nil {
		return nil, errInvalidExistingMedia
	}
	if keep == nil {
		keep = []string{}
	}
	return keep, nil
}

func issueFilterFromQuery(c *gin.Context) (models.IssueFilter, error) {
	limit, err := common.ParseIntQuery(c, "limit", 0)
	if err != nil {
		return models.IssueFilter{}, err
	}
	offset, err := common.ParseIntQuery(c, "offset", 0)
	if err != nil {
		return models.IssueFilter{}, err
	}

	filter := models.IssueFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  limit,
		Offset: offset,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := models.ParseIssueStatus(raw)
		if err != nil {
			return models.IssueFilter{}, err
		}
		filter.Status = status
	}
	return filter, nil
}

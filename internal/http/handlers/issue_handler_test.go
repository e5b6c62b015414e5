package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/validation"
)

// fakeIssueService запоминает аргументы и возвращает заданные ошибки.
type fakeIssueService struct {
	err       error
	unchanged bool

	gotInput    models.IssueInput
	gotKeep     []string
	gotUploaded []string
	gotFilter   models.IssueFilter
	gotOwner    uuid.UUID
}

func (f *fakeIssueService) Create(ctx context.Context, ownerID uuid.UUID, in models.IssueInput, uploaded []string) (*models.IssueDetails, error) {
	f.gotInput, f.gotUploaded = in, uploaded
	if err := validation.ValidateIssueInput(in, "All issue fields are required"); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.IssueDetails{Issue: models.Issue{
		ID:         uuid.New(),
		IssueCode:  "JDR-20240115-AB12",
		UserID:     ownerID,
		Title:      in.Title,
		MediaPaths: uploaded,
		Status:     models.IssueStatusOpen,
	}}, nil
}

func (f *fakeIssueService) Edit(ctx context.Context, issueID, requesterID uuid.UUID, in models.IssueInput, keep, uploaded []string) (*models.IssueDetails, error) {
	f.gotInput, f.gotKeep, f.gotUploaded = in, keep, uploaded
	if f.err != nil {
		return nil, f.err
	}
	return &models.IssueDetails{Issue: models.Issue{ID: issueID, MediaPaths: append(keep, uploaded...)}}, nil
}

func (f *fakeIssueService) Delete(ctx context.Context, issueID, requesterID uuid.UUID) error {
	return f.err
}

func (f *fakeIssueService) UpdateStatus(ctx context.Context, issueID uuid.UUID, rawStatus string, isAdmin bool) (*models.IssueDetails, bool, error) {
	if !isAdmin {
		return nil, false, apperror.ErrAdminOnly
	}
	status, err := models.ParseIssueStatus(rawStatus)
	if err != nil {
		return nil, false, err
	}
	if f.unchanged {
		return nil, false, nil
	}
	return &models.IssueDetails{Issue: models.Issue{ID: issueID, Status: status}}, true, nil
}

func (f *fakeIssueService) ListForOwner(ctx context.Context, requesterID, ownerID uuid.UUID) ([]models.Issue, error) {
	f.gotOwner = ownerID
	if requesterID != ownerID {
		return nil, apperror.Forbidden("Unauthorized: You can only view your own issues")
	}
	return []models.Issue{}, nil
}

func (f *fakeIssueService) GetByCodeForOwner(ctx context.Context, code string, ownerID uuid.UUID) (*models.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Issue{IssueCode: code, UserID: ownerID}, nil
}

func (f *fakeIssueService) ListAll(ctx context.Context, filter models.IssueFilter) ([]models.IssueDetails, error) {
	f.gotFilter = filter
	return []models.IssueDetails{}, f.err
}

func (f *fakeIssueService) GetDetails(ctx context.Context, issueID uuid.UUID) (*models.IssueDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.IssueDetails{Issue: models.Issue{ID: issueID}}, nil
}

func (f *fakeIssueService) Stats(ctx context.Context) (*models.IssueStats, error) {
	return &models.IssueStats{Total: 3, ByStatus: map[models.IssueStatus]int{models.IssueStatusOpen: 3}}, nil
}

// fakeMedia хранит файлы в памяти.
type fakeMedia struct {
	saved   []string
	deleted []string
	failAt  int
}

func (f *fakeMedia) Save(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	if f.failAt > 0 && len(f.saved)+1 == f.failAt {
		return "", 0, apperror.Validation("Unsupported media type. Allowed: jpg, jpeg, png, webp, mp4")
	}
	n, _ := io.Copy(io.Discard, r)
	ref := fmt.Sprintf("/uploads/%d-%s", len(f.saved)+1, name)
	f.saved = append(f.saved, ref)
	return ref, n, nil
}

func (f *fakeMedia) Delete(ctx context.Context, ref string) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

var validIssueForm = map[string]string{
	"title":            "Broken streetlight",
	"description":      "Dark for a week",
	"location":         "Sector 5",
	"dateOfOccurrence": "2024-01-10",
	"latitude":         "28.61",
	"longitude":        "77.20",
}

func TestIssueHandler_Create(t *testing.T) {
	svc, media := &fakeIssueService{}, &fakeMedia{}
	h := NewIssueHandler(svc, media, 2, 1)
	r := newTestRouter(&citizen)
	r.POST("/api/issues", h.Create)

	rec := doMultipart(t, r, http.MethodPost, "/api/issues", validIssueForm, []upload{
		{field: "media", name: "a.png", content: []byte("png-bytes")},
		{field: "media", name: "b.mp4", content: []byte("mp4-bytes")},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Issue reported successfully", body["message"])
	assert.Equal(t, "JDR-20240115-AB12", body["issueId"])
	assert.Equal(t, []string{"/uploads/1-a.png", "/uploads/2-b.mp4"}, svc.gotUploaded)
	require.NotNil(t, svc.gotInput.Latitude)
	assert.InDelta(t, 28.61, *svc.gotInput.Latitude, 1e-9)
	assert.Empty(t, media.deleted)
}

func TestIssueHandler_Create_MissingFieldsDiscardsUploads(t *testing.T) {
	svc, media := &fakeIssueService{}, &fakeMedia{}
	h := NewIssueHandler(svc, media, 2, 1)
	r := newTestRouter(&citizen)
	r.POST("/api/issues", h.Create)

	rec := doMultipart(t, r, http.MethodPost, "/api/issues", map[string]string{"title": "Only title"}, []upload{
		{field: "media", name: "a.png", content: []byte("png-bytes")},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "All issue fields are required", decodeBody(t, rec)["message"])
	assert.Equal(t, media.saved, media.deleted)
}

func TestIssueHandler_Create_TooManyFiles(t *testing.T) {
	svc, media := &fakeIssueService{}, &fakeMedia{}
	h := NewIssueHandler(svc, media, 2, 1)
	r := newTestRouter(&citizen)
	r.POST("/api/issues", h.Create)

	files := make([]upload, 3)
	for i := range files {
		files[i] = upload{field: "media", name: fmt.Sprintf("%d.png", i), content: []byte("x")}
	}
	rec := doMultipart(t, r, http.MethodPost, "/api/issues", validIssueForm, files)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, media.saved)
}

func TestIssueHandler_Create_RejectedFileRollsBack(t *testing.T) {
	svc, media := &fakeIssueService{}, &fakeMedia{failAt: 2}
	h := NewIssueHandler(svc, media, 2, 1)
	r := newTestRouter(&citizen)
	r.POST("/api/issues", h.Create)

	rec := doMultipart(t, r, http.MethodPost, "/api/issues", validIssueForm, []upload{
		{field: "media", name: "a.png", content: []byte("ok")},
		{field: "media", name: "b.exe", content: []byte("bad")},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"/uploads/1-a.png"}, media.deleted)
}

func TestIssueHandler_Create_InvalidLatitude(t *testing.T) {
	h := NewIssueHandler(&fakeIssueService{}, &fakeMedia{}, 2, 1)
	r := newTestRouter(&citizen)
	r.POST("/api/issues", h.Create)

	form := map[string]string{}
	for k, v := range validIssueForm {
		form[k] = v
	}
	form["latitude"] = "north"

	rec := doMultipart(t, r, http.MethodPost, "/api/issues", form, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssueHandler_Create_Unauthorized(t *testing.T) {
	h := NewIssueHandler(&fakeIssueService{}, &fakeMedia{}, 2, 1)
	r := newTestRouter(nil)
	r.POST("/api/issues", h.Create)

	rec := doMultipart(t, r, http.MethodPost, "/api/issues", validIssueForm, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueHandler_CitizenRoutesRejectAdmins(t *testing.T) {
	svc, media := &fakeIssueService{}, &fakeMedia{}
	h := NewIssueHandler(svc, media, 2, 1)
	r := newTestRouter(&officer)
	r.POST("/api/issues", h.Create)
	r.PUT("/api/issues/:id", h.Update)
	r.DELETE("/api/issues/:id", h.Delete)
	path := "/api/issues/" + uuid.NewString()
	files := []upload{{field: "media", name: "a.png", content: []byte("png-bytes")}}

	rec := doMultipart(t, r, http.MethodPost, "/api/issues", validIssueForm, files)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied: Citizens only", decodeBody(t, rec)["message"])

	rec = doMultipart(t, r, http.MethodPut, path, validIssueForm, []upload{{field: "newMedia", name: "b.png", content: []byte("png-bytes")}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Empty(t, media.saved)
	assert.Nil(t, svc.gotUploaded)
}

func TestIssueHandler_Create_BodyTooLarge(t *testing.T) {
	svc, media := &fakeIssueService{}, &fakeMedia{}
	// Один файл до 1 МБ плюс 1 МБ на поля формы.
	h := NewIssueHandler(svc, media, 1, 1)
	r := newTestRouter(&citizen)
	r.POST("/api/issues", h.Create)

	rec := doMultipart(t, r, http.MethodPost, "/api/issues", validIssueForm, []upload{
		{field: "media", name: "huge.mp4", content: bytes.Repeat([]byte("x"), 3<<20)},
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Upload is too large", decodeBody(t, rec)["message"])
	assert.Empty(t, media.saved)
	assert.Nil(t, svc.gotUploaded)
}

func TestIssueHandler_Update(t *testing.T) {
	svc, media := &fakeIssueService{}, &fakeMedia{}
	h := NewIssueHandler(svc, media, 2, 1)
	r := newTestRouter(&citizen)
	r.PUT("/api/issues/:id", h.Update)

	form := map[string]string{"existingMedia": `["/uploads/old.jpg"]`}
	for k, v := range validIssueForm {
		form[k] = v
	}
	rec := doMultipart(t, r, http.MethodPut, "/api/issues/"+uuid.NewString(), form, []upload{
		{field: "newMedia", name: "n.png", content: []byte("x")},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Issue updated successfully", decodeBody(t, rec)["message"])
	assert.Equal(t, []string{"/uploads/old.jpg"}, svc.gotKeep)
	assert.Equal(t, []string{"/uploads/1-n.png"}, svc.gotUploaded)
}

func TestIssueHandler_Update_InvalidExistingMedia(t *testing.T) {
	svc, media := &fakeIssueService{}, &fakeMedia{}
	h := NewIssueHandler(svc, media, 2, 1)
	r := newTestRouter(&citizen)
	r.PUT("/api/issues/:id", h.Update)

	form := map[string]string{"existingMedia": "not-json"}
	for k, v := range validIssueForm {
		form[k] = v
	}
	rec := doMultipart(t, r, http.MethodPut, "/api/issues/"+uuid.NewString(), form, []upload{
		{field: "newMedia", name: "n.png", content: []byte("x")},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid existing media data format", decodeBody(t, rec)["message"])
	assert.Empty(t, media.saved)
}

func TestIssueHandler_Update_ForbiddenDiscardsUploads(t *testing.T) {
	svc := &fakeIssueService{err: apperror.Forbidden("Unauthorized: You can only edit your own issues")}
	media := &fakeMedia{}
	h := NewIssueHandler(svc, media, 2, 1)
	r := newTestRouter(&citizen)
	r.PUT("/api/issues/:id", h.Update)

	rec := doMultipart(t, r, http.MethodPut, "/api/issues/"+uuid.NewString(), validIssueForm, []upload{
		{field: "newMedia", name: "n.png", content: []byte("x")},
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, media.saved, media.deleted)
}

func TestIssueHandler_Delete(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		path   string
		status int
		msg    string
	}{
		{"ok", nil, uuid.NewString(), http.StatusOK, "Issue deleted successfully"},
		{"not open", apperror.InvalidState(`Issue can only be deleted if status is "OPEN"`), uuid.NewString(), http.StatusBadRequest, `Issue can only be deleted if status is "OPEN"`},
		{"bad id", nil, "42", http.StatusNotFound, "Issue not found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewIssueHandler(&fakeIssueService{err: tc.err}, &fakeMedia{}, 2, 1)
			r := newTestRouter(&citizen)
			r.DELETE("/api/issues/:id", h.Delete)

			rec := doJSON(r, http.MethodDelete, "/api/issues/"+tc.path, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, decodeBody(t, rec)["message"])
		})
	}
}

func TestIssueHandler_ListForOwner(t *testing.T) {
	svc := &fakeIssueService{}
	h := NewIssueHandler(svc, &fakeMedia{}, 2, 1)
	r := newTestRouter(&citizen)
	r.GET("/api/issues/user/:userId", h.ListForOwner)

	rec := doJSON(r, http.MethodGet, "/api/issues/user/"+citizen.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = doJSON(r, http.MethodGet, "/api/issues/user/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/issues/user/not-a-uuid", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, uuid.Nil, svc.gotOwner)
}

func TestIssueHandler_Search_NotFound(t *testing.T) {
	h := NewIssueHandler(&fakeIssueService{err: apperror.NotFound("Issue not found for this user")}, &fakeMedia{}, 2, 1)
	r := newTestRouter(&citizen)
	r.GET("/api/issues/search/:issueCode", h.Search)

	rec := doJSON(r, http.MethodGet, "/api/issues/search/JDR-20240115-AB12", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Issue not found for this user", decodeBody(t, rec)["message"])
}

func TestIssueHandler_UpdateStatus(t *testing.T) {
	svc := &fakeIssueService{}
	h := NewIssueHandler(svc, &fakeMedia{}, 2, 1)
	r := newTestRouter(&officer)
	r.PUT("/api/issues/:id/status", h.UpdateStatus)
	path := "/api/issues/" + uuid.NewString() + "/status"

	rec := doJSON(r, http.MethodPut, path, map[string]string{"status": " resolved "})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Issue status updated successfully", body["message"])
	assert.Equal(t, "RESOLVED", body["issue"].(map[string]interface{})["status"])

	rec = doJSON(r, http.MethodPut, path, map[string]string{"status": "CLOSED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid status provided", decodeBody(t, rec)["message"])

	svc.unchanged = true
	rec = doJSON(r, http.MethodPut, path, map[string]string{"status": "OPEN"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Status already updated", decodeBody(t, rec)["message"])
}

func TestIssueHandler_ListAll_Filter(t *testing.T) {
	svc := &fakeIssueService{}
	h := NewIssueHandler(svc, &fakeMedia{}, 2, 1)
	r := newTestRouter(&officer)
	r.GET("/api/issues", h.ListAll)

	rec := doJSON(r, http.MethodGet, "/api/issues?status=pending&search=%20road%20&limit=10&offset=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.IssueFilter{Status: models.IssueStatusPending, Search: "road", Limit: 10, Offset: 5}, svc.gotFilter)

	rec = doJSON(r, http.MethodGet, "/api/issues?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/issues?status=unknown", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssueHandler_Export(t *testing.T) {
	svc := &fakeIssueService{}
	h := NewIssueHandler(svc, &fakeMedia{}, 2, 1)
	r := newTestRouter(&officer)
	r.GET("/api/issues/export", h.Export)

	rec := doJSON(r, http.MethodGet, "/api/issues/export?status=OPEN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "jandrishti-issues-")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.Equal(t, 500, svc.gotFilter.Limit)
}

func TestIssueHandler_GetAndStats(t *testing.T) {
	h := NewIssueHandler(&fakeIssueService{}, &fakeMedia{}, 2, 1)
	r := newTestRouter(&officer)
	r.GET("/api/issues/stats", h.Stats)
	r.GET("/api/issues/:id", h.Get)

	rec := doJSON(r, http.MethodGet, "/api/issues/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody(t, rec)["total"])

	rec = doJSON(r, http.MethodGet, "/api/issues/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/issues/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jandrishti/jandrishti-backend/internal/http/middleware"
	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	citizen = service.Identity{ID: uuid.New(), Username: "asha", Role: models.RoleUser}
	officer = service.Identity{ID: uuid.New(), Username: "root", Role: models.RoleAdmin}
)

// newTestRouter собирает gin с обработчиком ошибок и подставленной личностью.
func newTestRouter(identity *service.Identity) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if identity != nil {
		id := *identity
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextIdentityKey, id)
			c.Next()
		})
	}
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type upload struct {
	field, name string
	content     []byte
}

func doMultipart(t *testing.T, r http.Handler, method, path string, fields map[string]string, files []upload) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

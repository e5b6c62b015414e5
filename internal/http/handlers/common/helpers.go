package common

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jandrishti/jandrishti-backend/internal/http/middleware"
	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/service"
)

// ErrInvalidBody возвращается, если тело запроса не удалось разобрать.
var ErrInvalidBody = apperror.Validation("Invalid request body")

// RequireIdentity достаёт личность из контекста. Если её нет, записывает 401.
func RequireIdentity(c *gin.Context) (service.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		_ = c.Error(apperror.ErrUnauthorized)
		return service.Identity{}, false
	}
	return identity, true
}

// RequireCitizen как RequireIdentity, но пропускает только роль user.
func RequireCitizen(c *gin.Context) (service.Identity, bool) {
	identity, ok := RequireIdentity(c)
	if !ok {
		return identity, false
	}
	if identity.Role != models.RoleUser {
		_ = c.Error(apperror.ErrCitizenOnly)
		return identity, false
	}
	return identity, true
}

// ParseUUIDParam разбирает UUID из пути. Невалидный id считается отсутствующим ресурсом.
func ParseUUIDParam(c *gin.Context, name string, notFound error) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

// BindJSON разбирает тело запроса без проверки обязательности полей.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(ErrInvalidBody)
		return false
	}
	return true
}

// RespondMessage отвечает {message, ...extra}.
func RespondMessage(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// ParseIntQuery читает неотрицательное целое из query. Пустое значение даёт fallback.
func ParseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperror.Validation(key + " must be a non-negative integer")
	}
	return v, nil
}

// ParseOptionalFloat разбирает необязательное число из формы.
func ParseOptionalFloat(raw, field string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperror.Validation(field + " must be a number")
	}
	return &v, nil
}

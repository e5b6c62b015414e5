package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр пути является UUID.
// Невалидный id не может существовать, поэтому отвечаем как на отсутствующий ресурс.
func UUIDValidator(paramName string, notFound *apperror.AppError) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(paramName)); err != nil {
			abortWithError(c, notFound)
			return
		}
		c.Next()
	}
}

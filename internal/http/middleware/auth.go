package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/service"
)

// ContextIdentityKey - ключ проверенной личности в gin.Context.
const ContextIdentityKey = "identity"

// TokenParser проверяет токен и возвращает личность.
type TokenParser interface {
	Parse(token string) (*service.Identity, error)
}

// AuthMiddleware проверяет JWT из заголовка Authorization.
// Нет токена - 401, токен невалиден или истёк - 403.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortWithError(c, apperror.ErrUnauthorized)
			return
		}

		identity, err := tokens.Parse(raw)
		if err != nil {
			abortWithError(c, apperror.ErrInvalidToken)
			return
		}

		c.Set(ContextIdentityKey, *identity)
		c.Next()
	}
}

// RequireAdmin пропускает только администраторов. Ставится после AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok || !identity.IsAdmin() {
			abortWithError(c, apperror.ErrAdminOnly)
			return
		}
		c.Next()
	}
}

// CurrentIdentity возвращает личность, установленную AuthMiddleware.
func CurrentIdentity(c *gin.Context) (service.Identity, bool) {
	raw, exists := c.Get(ContextIdentityKey)
	if !exists {
		return service.Identity{}, false
	}
	identity, ok := raw.(service.Identity)
	return identity, ok
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

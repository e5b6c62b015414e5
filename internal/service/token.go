package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jandrishti/jandrishti-backend/internal/models"
)

// Identity - проверенная личность, извлечённая из токена.
type Identity struct {
	ID       uuid.UUID
	Username string
	Role     string
}

// IsAdmin сообщает, выдан ли токен администратору.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate выпускает токен для пользователя или администратора.
func (m *TokenManager) Generate(id uuid.UUID, username, role string) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub":      id.String(),
		"username": username,
		"role":     role,
		"iat":      now.Unix(),
		"exp":      now.Add(m.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token manager: не удалось подписать токен: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись и срок действия токена и возвращает личность.
func (m *TokenManager) Parse(token string) (*Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("token manager: некорректный sub: %w", err)
	}

	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleUser
	}

	return &Identity{ID: id, Username: username, Role: role}, nil
}

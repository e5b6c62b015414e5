package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jandrishti/jandrishti-backend/internal/http/handlers/common"
	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/service"
)

type authService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, fields models.ProfileFields) (*models.User, error)
}

// AuthHandler предоставляет HTTP слой для регистрации, входа и профиля.
type AuthHandler struct {
	auth authService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth authService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type profileRequest struct {
	FullName       string `json:"fullName"`
	PhoneNumber    string `json:"phoneNumber"`
	Address        string `json:"address"`
	UserType       string `json:"userType"`
	UserTypeCustom string `json:"userTypeCustom"`
}

func (r profileRequest) fields() models.ProfileFields {
	return models.ProfileFields{
		FullName:       r.FullName,
		PhoneNumber:    r.PhoneNumber,
		Address:        r.Address,
		UserType:       r.UserType,
		UserTypeCustom: r.UserTypeCustom,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register обрабатывает POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		credentialsRequest
		profileRequest
	}
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username:      req.Username,
		Password:      req.Password,
		ProfileFields: req.fields(),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondMessage(c, http.StatusCreated, "User registered successfully", gin.H{
		"token":            result.Token,
		"id":               result.ID,
		"username":         result.Username,
		"profileCompleted": result.ProfileCompleted,
	})
}

// Login обрабатывает POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetProfile обрабатывает GET /api/auth/profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	identity, ok := common.RequireIdentity(c)
	if !ok {
		return
	}

	user, err := h.auth.GetProfile(c.Request.Context(), identity.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile обрабатывает POST|PUT /api/auth/profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	identity, ok := common.RequireIdentity(c)
	if !ok {
		return
	}

	var req profileRequest
	if !common.BindJSON(c, &req) {
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), identity.ID, req.fields())
	if err != nil {
		_ = c.Error(err)
		return
	}
	common.RespondMessage(c, http.StatusOK, "Profile updated successfully", gin.H{"user": user})
}

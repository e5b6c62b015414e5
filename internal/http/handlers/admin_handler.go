package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jandrishti/jandrishti-backend/internal/http/handlers/common"
	"github.com/jandrishti/jandrishti-backend/internal/models"
	"github.com/jandrishti/jandrishti-backend/internal/service"
)

// AdminSignupKeyHeader - заголовок с ключом для создания администратора.
const AdminSignupKeyHeader = "X-Admin-Signup-Key"

type adminService interface {
	Login(ctx context.Context, username, password string) (*service.AdminLoginResult, error)
	Create(ctx context.Context, username, password, signupKey string) (*models.Admin, error)
	Overview(ctx context.Context) (*service.AdminOverview, error)
}

// AdminHandler обслуживает /api/admin.
type AdminHandler struct {
	admins adminService
}

// NewAdminHandler создаёт хэндлер.
func NewAdminHandler(admins adminService) *AdminHandler {
	return &AdminHandler{admins: admins}
}

// TestConnectivity обрабатывает GET /api/admin/test-connectivity.
func (h *AdminHandler) TestConnectivity(c *gin.Context) {
	common.RespondMessage(c, http.StatusOK, "Backend Admin API is reachable", nil)
}

// Login обрабатывает POST /api/admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.admins.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Create обрабатывает POST /api/admin/create.
func (h *AdminHandler) Create(c *gin.Context) {
	var req credentialsRequest
	if !common.BindJSON(c, &req) {
		return
	}

	admin, err := h.admins.Create(c.Request.Context(), req.Username, req.Password, c.GetHeader(AdminSignupKeyHeader))
	if err != nil {
		_ = c.Error(err)
		return
	}
	common.RespondMessage(c, http.StatusOK, "Admin account created successfully", gin.H{"username": admin.Username})
}

// Check обрабатывает GET /api/admin/check.
func (h *AdminHandler) Check(c *gin.Context) {
	overview, err := h.admins.Overview(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	common.RespondMessage(c, http.StatusOK, "Admin accounts found", gin.H{
		"count":  overview.Count,
		"admins": overview.Admins,
	})
}

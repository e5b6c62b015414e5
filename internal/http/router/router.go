package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/jandrishti/jandrishti-backend/internal/config"
	"github.com/jandrishti/jandrishti-backend/internal/http/handlers"
	"github.com/jandrishti/jandrishti-backend/internal/http/middleware"
	"github.com/jandrishti/jandrishti-backend/internal/metrics"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
	"github.com/jandrishti/jandrishti-backend/internal/storage"
)

// Deps - всё, что нужно для сборки маршрутов.
type Deps struct {
	Config  *config.Config
	Tokens  middleware.TokenParser
	Limiter limiter.Store
	Metrics *metrics.Metrics

	Auth   *handlers.AuthHandler
	Admin  *handlers.AdminHandler
	Issues *handlers.IssueHandler
	WS     *handlers.WSHandler
	Health *handlers.HealthHandler
}

func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(d.Metrics.Middleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/ws", strings.TrimSuffix(storage.URLPrefix, "/")})))
	// Recovery и ErrorHandler пишут ответ после c.Next, поэтому стоят внутри gzip.
	r.Use(middleware.Recovery(), middleware.ErrorHandler())

	r.GET("/", d.Health.Banner)
	r.GET("/health", d.Health.Health)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	r.Static(strings.TrimSuffix(storage.URLPrefix, "/"), cfg.MediaStoragePath)

	auth := middleware.AuthMiddleware(d.Tokens)
	adminOnly := middleware.RequireAdmin()
	issueID := middleware.UUIDValidator("id", apperror.ErrIssueNotFound)

	api := r.Group("/api")
	api.GET("/health", d.Health.Health)
	api.GET("/ws", d.WS.Handle)

	authGroup := api.Group("/auth")
	{
		limited := middleware.RateLimitMiddleware(d.Limiter, cfg.RateLimitLimit, cfg.RateLimitPeriod)
		authGroup.POST("/register", limited, d.Auth.Register)
		authGroup.POST("/login", limited, d.Auth.Login)
		authGroup.GET("/profile", auth, d.Auth.GetProfile)
		authGroup.POST("/profile", auth, d.Auth.UpdateProfile)
		authGroup.PUT("/profile", auth, d.Auth.UpdateProfile)
	}

	adminGroup := api.Group("/admin")
	{
		adminGroup.GET("/test-connectivity", d.Admin.TestConnectivity)
		adminGroup.POST("/login", middleware.RateLimitMiddleware(d.Limiter, cfg.RateLimitLimit, cfg.RateLimitPeriod), d.Admin.Login)
		adminGroup.POST("/create", d.Admin.Create)
		adminGroup.GET("/check", d.Admin.Check)
		adminGroup.GET("/get-single-issue/:id", auth, adminOnly, issueID, d.Issues.Get)
	}

	issues := api.Group("/issues", auth)
	{
		issues.POST("", middleware.IssueQuotaMiddleware(d.Limiter, cfg.IssueDailyLimit), d.Issues.Create)
		issues.GET("/user/:userId", d.Issues.ListForOwner)
		issues.GET("/search/:issueCode", d.Issues.Search)
		issues.PUT("/:id", issueID, d.Issues.Update)
		issues.DELETE("/:id", issueID, d.Issues.Delete)

		issues.GET("", adminOnly, d.Issues.ListAll)
		issues.GET("/stats", adminOnly, d.Issues.Stats)
		issues.GET("/export", adminOnly, d.Issues.Export)
		issues.GET("/:id", adminOnly, issueID, d.Issues.Get)
		issues.PUT("/:id/status", adminOnly, issueID, d.Issues.UpdateStatus)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})

	return r
}

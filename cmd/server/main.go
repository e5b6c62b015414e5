package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/jandrishti/jandrishti-backend/internal/config"
	"github.com/jandrishti/jandrishti-backend/internal/db"
	"github.com/jandrishti/jandrishti-backend/internal/goroutine"
	httpHandlers "github.com/jandrishti/jandrishti-backend/internal/http/handlers"
	"github.com/jandrishti/jandrishti-backend/internal/http/middleware"
	httpRouter "github.com/jandrishti/jandrishti-backend/internal/http/router"
	"github.com/jandrishti/jandrishti-backend/internal/job"
	"github.com/jandrishti/jandrishti-backend/internal/logger"
	"github.com/jandrishti/jandrishti-backend/internal/metrics"
	"github.com/jandrishti/jandrishti-backend/internal/repository"
	"github.com/jandrishti/jandrishti-backend/internal/service"
	"github.com/jandrishti/jandrishti-backend/internal/storage"
	"github.com/jandrishti/jandrishti-backend/internal/ws"
)

const statsCacheTTL = 30 * time.Second

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.IsProduction())
	lg := logger.L()

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		lg.WithError(err).Fatal("main: ошибка подключения к базе")
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		lg.WithError(err).Fatal("main: ошибка миграций")
	}

	mediaStorage, err := storage.NewMediaStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		lg.WithError(err).Fatal("main: не удалось подготовить файловое хранилище")
	}

	redisClient := connectRedis(ctx, cfg.RedisURL)
	if redisClient != nil {
		defer redisClient.Close()
	}
	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		lg.WithError(err).Fatal("main: не удалось создать хранилище лимитов")
	}

	m := metrics.New()

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGo(func() { hub.Run(ctx) })
	m.RegisterGauge("jandrishti_ws_clients", "Connected websocket clients", func() float64 { return float64(hub.ClientCount()) })
	m.RegisterGauge("jandrishti_ws_dropped_events", "Events dropped because the broadcast queue was full", func() float64 { return float64(hub.DroppedEvents()) })

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	adminRepo := repository.NewAdminRepository(dbConn)
	issueRepo := repository.NewIssueRepository(dbConn)

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	cache := service.NewCacheService(time.Minute)
	defer cache.Close()

	authService := service.NewAuthService(userRepo, tokenManager)
	adminService := service.NewAdminService(adminRepo, tokenManager, cfg.AdminSignupKey)
	issueService := service.NewIssueService(issueRepo, mediaStorage, metrics.InstrumentPublisher(hub, m)).
		WithStatsCache(cache, statsCacheTTL)

	// Фоновые задачи.
	scheduler := cron.New()
	janitor := job.NewMediaJanitorJob(mediaStorage, issueRepo, m, cfg.JanitorGrace)
	if err := job.Schedule(scheduler, cfg.JanitorSchedule, janitor); err != nil {
		lg.WithError(err).Fatal("main: ошибка расписания")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Роутер.
	engine := httpRouter.SetupRouter(httpRouter.Deps{
		Config:  cfg,
		Tokens:  tokenManager,
		Limiter: limiterStore,
		Metrics: m,
		Auth:    httpHandlers.NewAuthHandler(authService),
		Admin:   httpHandlers.NewAdminHandler(adminService),
		Issues:  httpHandlers.NewIssueHandler(issueService, mediaStorage, cfg.MaxMediaFiles, cfg.MaxUploadSizeMB),
		WS:      httpHandlers.NewWSHandler(hub, tokenManager, middleware.OriginChecker(cfg.AllowedOrigins)),
		Health:  httpHandlers.NewHealthHandler(dbConn, hub.ClientCount),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	lg.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
}

// connectRedis подключается к Redis, если он настроен. При недоступности лимиты считаются в памяти.
func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.L().WithError(err).Warn("main: некорректный REDIS_URL, лимиты в памяти")
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.L().WithError(err).Warn("main: redis недоступен, лимиты в памяти")
		_ = client.Close()
		return nil
	}
	return client
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.L().WithError(err).Error("main: ошибка закрытия базы")
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/jandrishti/jandrishti-backend/internal/logger"
	"github.com/jandrishti/jandrishti-backend/internal/pkg/apperror"
)

const storePrefix = "jandrishti:limiter"

var errTooManyRequests = apperror.New(apperror.ErrCodeRateLimited, "Too many requests, please try again later")

// NewLimiterStore возвращает хранилище счётчиков: Redis, если клиент передан, иначе память процесса.
func NewLimiterStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          storePrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: storePrefix})
	if err != nil {
		return nil, fmt.Errorf("rate limit: redis store %w", err)
	}
	return store, nil
}

// RateLimitMiddleware ограничивает число запросов с одного IP к маршруту.
// У каждого маршрута свой счётчик. По умолчанию: 10 запросов в минуту.
func RateLimitMiddleware(store limiter.Store, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	instance := limiter.New(store, limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		lctx, err := instance.Get(c.Request.Context(), "ip:"+c.FullPath()+":"+c.ClientIP())
		if err != nil {
			logger.L().WithError(err).Error("rate limit: счётчик недоступен")
			c.Next()
			return
		}

		setRateHeaders(c, lctx)
		if lctx.Reached {
			abortWithError(c, errTooManyRequests)
			return
		}
		c.Next()
	}
}

// IssueQuotaMiddleware ограничивает число обращений одного пользователя за сутки.
// Засчитываются только успешно созданные обращения. Ставится после AuthMiddleware.
func IssueQuotaMiddleware(store limiter.Store, perDay int64) gin.HandlerFunc {
	if perDay <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	instance := limiter.New(store, limiter.Rate{Period: 24 * time.Hour, Limit: perDay})

	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			abortWithError(c, apperror.ErrUnauthorized)
			return
		}
		key := "issues:" + identity.ID.String()

		lctx, err := instance.Peek(c.Request.Context(), key)
		if err != nil {
			logger.L().WithError(err).Error("issue quota: счётчик недоступен")
			c.Next()
			return
		}
		if lctx.Remaining <= 0 {
			setRateHeaders(c, lctx)
			abortWithError(c, apperror.ErrTooManyIssues)
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusCreated {
			if _, err := instance.Increment(c.Request.Context(), key, 1); err != nil {
				logger.L().WithError(err).Error("issue quota: не удалось учесть обращение")
			}
		}
	}
}

func setRateHeaders(c *gin.Context, lctx limiter.Context) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
}

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mirai-api/gateway/internal/cache"
	"github.com/mirai-api/gateway/internal/config"
	"github.com/mirai-api/gateway/internal/logging"
	"github.com/mirai-api/gateway/internal/middleware"
	"github.com/mirai-api/gateway/internal/quota"
	"github.com/mirai-api/gateway/pkg/models"
)

// accountStore is the store surface the HTTP handlers need. The production
// implementation is database.Repository; handler tests use an in-memory fake.
type accountStore interface {
	quota.Store
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByTelegramID(ctx context.Context, telegramID string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	CountAccounts(ctx context.Context) (int, error)
	UpdateAccountProfile(ctx context.Context, id string, update models.ProfileUpdate) error
	ExtendAccountExpiry(ctx context.Context, id string, days int) (time.Time, error)
	UpdateAccountDailyLimit(ctx context.Context, id string, limit int) error
	ResetDailyCount(ctx context.Context, id string) error
	AccountStats(ctx context.Context, now time.Time, warnDays int) (*models.AccountStats, error)
	Health(ctx context.Context) error
}

// Server holds the HTTP handler dependencies
type Server struct {
	store accountStore
	guard *quota.Guard
	cache *cache.Cache
	log   *logging.Logger
	cfg   *config.Config
	now   func() time.Time
}

func newServer(store accountStore, guard *quota.Guard, c *cache.Cache, log *logging.Logger, cfg *config.Config) *Server {
	return &Server{
		store: store,
		guard: guard,
		cache: c,
		log:   log,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(s.log))
	if s.cfg.Tracing.Enabled {
		router.Use(middleware.Tracing())
	}

	limiter := middleware.NewRateLimiter(s.cfg.RateLimit.RPS, s.cfg.RateLimit.Burst)
	router.Use(middleware.RateLimit(limiter))

	router.GET("/health", s.handleHealth)

	member := router.Group("/member")
	{
		member.POST("/register",
			middleware.RegisterThrottle(s.cache, s.cfg.RateLimit.RegisterPerHour),
			s.handleRegister)

		authed := member.Group("", middleware.APIKeyAuth(s.guard))
		authed.GET("/status", s.handleStatus)
		authed.PUT("/update", s.handleUpdateProfile)
		authed.POST("/extend", s.handleExtend)
		authed.POST("/update-limit", s.handleUpdateLimit)
	}

	admin := router.Group("/admin", middleware.AdminAuth(s.cfg.Auth.JWTSecret))
	{
		admin.GET("/users", s.handleListUsers)
		admin.GET("/users/telegram/:telegramId", s.handleGetUser)
		admin.GET("/stats/users/count", s.handleUserCount)
		admin.GET("/stats/api", s.handleAPIStats)
		admin.PUT("/users/telegram/:telegramId", s.handleAdminUpdate)
		admin.POST("/users/reset-daily/:telegramId", s.handleResetDaily)
	}

	tools := router.Group("/tools", middleware.APIKeyAuth(s.guard))
	{
		tools.GET("/qr", s.handleQR)
		tools.GET("/id", s.handleID)
	}

	return router
}

// Envelope helpers. Success carries result, client errors carry message,
// server errors carry a fixed message plus the error detail.

func respondOK(c *gin.Context, status int, result interface{}) {
	c.JSON(status, gin.H{
		"status": status,
		"result": result,
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
	})
}

func (s *Server) respondServerError(c *gin.Context, err error) {
	s.log.ErrorWithErr("Request failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"status":  http.StatusInternalServerError,
		"message": "Server error",
		"error":   err.Error(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := gin.H{"database": "ok"}

	if err := s.store.Health(ctx); err != nil {
		components["database"] = "down"
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  http.StatusServiceUnavailable,
			"message": "Database unavailable",
			"result":  components,
		})
		return
	}

	if s.cache != nil {
		components["cache"] = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			// Degraded but serviceable: the throttle fails open.
			components["cache"] = "down"
		}
	}

	respondOK(c, http.StatusOK, components)
}

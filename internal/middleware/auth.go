package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mirai-api/gateway/internal/metrics"
	"github.com/mirai-api/gateway/internal/quota"
	"github.com/mirai-api/gateway/pkg/models"
)

const (
	// AccountContextKey is where the authenticated account lives in the gin context
	AccountContextKey = "account"

	// APIKeyHeader carries the caller's credential
	APIKeyHeader = "X-API-Key"
)

// APIKeyAuth authenticates the request through the quota guard and aborts
// with the uniform envelope on failure. On success the authenticated account
// (with its incremented counter) is stored in the context.
func APIKeyAuth(guard *quota.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := guard.Authenticate(c.Request.Context(), c.GetHeader(APIKeyHeader))
		if err != nil {
			switch {
			case errors.Is(err, quota.ErrMissingKey),
				errors.Is(err, quota.ErrInvalidKey),
				errors.Is(err, quota.ErrExpired):
				metrics.QuotaDecisionsTotal.WithLabelValues("unauthorized").Inc()
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"status":  http.StatusUnauthorized,
					"message": err.Error(),
				})
			case errors.Is(err, quota.ErrLimitExceeded):
				metrics.QuotaDecisionsTotal.WithLabelValues("limit_exceeded").Inc()
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"status":  http.StatusTooManyRequests,
					"message": err.Error(),
				})
			default:
				metrics.QuotaDecisionsTotal.WithLabelValues("error").Inc()
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":  http.StatusInternalServerError,
					"message": "Server error",
					"error":   err.Error(),
				})
			}
			return
		}

		metrics.QuotaDecisionsTotal.WithLabelValues("accepted").Inc()
		c.Set(AccountContextKey, account)
		c.Next()
	}
}

// GetAccount retrieves the authenticated account from the context
func GetAccount(c *gin.Context) (*models.Account, bool) {
	value, exists := c.Get(AccountContextKey)
	if !exists {
		return nil, false
	}

	account, ok := value.(*models.Account)
	return account, ok
}

// AdminClaims represents operator JWT claims
type AdminClaims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// AdminAuth validates operator bearer tokens for the admin surface
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  http.StatusUnauthorized,
				"message": "Authorization header required",
			})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  http.StatusUnauthorized,
				"message": "Invalid authorization format",
			})
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  http.StatusUnauthorized,
				"message": "Invalid or expired token",
			})
			return
		}

		c.Next()
	}
}

// GenerateAdminToken issues an operator token for the admin surface
func GenerateAdminToken(secret, subject string, expiresIn time.Duration) (string, error) {
	claims := AdminClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

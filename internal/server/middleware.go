package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-Role"

	contextUserIDKey = "user_id"
	contextRoleKey   = "role"
)

// UserRequired resolves the caller's identity from the gateway headers.
// The bot frontends authenticate users upstream and forward the Discord
// snowflake plus the resolved role.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderRole)))
		if role == "" {
			role = "user"
		}

		c.Set(contextUserIDKey, userID)
		c.Set(contextRoleKey, role)
		c.Next()
	}
}

func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(contextRoleKey)
		if err := s.authzSvc.Authorize(c.Request.Context(), role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// CheckoutRateLimit throttles order creation per buyer. Redis being down
// never blocks a sale; the limiter degrades to allow-all.
func (s *Server) CheckoutRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.checkoutLimiter.Enabled() {
			c.Next()
			return
		}

		userID := c.GetInt64(contextUserIDKey)
		allowed, err := s.checkoutLimiter.Allow(c.Request.Context(), userID)
		if err != nil {
			s.log.Warn("checkout rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) userID(c *gin.Context) int64 {
	return c.GetInt64(contextUserIDKey)
}

package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
)

const (
	// ContextKeyOwnerID is the context key for the verified identity owner id.
	ContextKeyOwnerID = "owner_id"
)

// IdentityMiddleware requires a valid identity cookie and stores its owner id
// in the context.
func IdentityMiddleware(issuer *auth.Issuer, cookieName string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "No identity cookie found"})
			return
		}

		owner, err := issuer.Verify(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid identity cookie")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid identity cookie"})
			return
		}

		c.Set(ContextKeyOwnerID, owner)
		c.Next()
	}
}

// CORSMiddleware allows credentialed cross-origin requests from origins the
// policy accepts. Requests without an Origin header pass through.
func CORSMiddleware(origins *OriginPolicy) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  origins.Allowed,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

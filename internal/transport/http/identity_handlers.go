package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
)

// IdentityHandlers issues anonymous identity cookies.
type IdentityHandlers struct {
	issuer *auth.Issuer
	cfg    config.IdentityConfig
	log    *zerolog.Logger
}

// NewIdentityHandlers creates identity handlers.
func NewIdentityHandlers(issuer *auth.Issuer, cfg config.IdentityConfig, logger *zerolog.Logger) *IdentityHandlers {
	return &IdentityHandlers{issuer: issuer, cfg: cfg, log: logger}
}

// IdentityResponse carries the owner id bound to the cookie.
type IdentityResponse struct {
	UserID string `json:"userId"`
}

// Ensure reuses a valid identity cookie or issues a fresh one.
// POST /identity
func (h *IdentityHandlers) Ensure(c *gin.Context) {
	if token, err := c.Cookie(h.cfg.CookieName); err == nil && token != "" {
		if owner, err := h.issuer.Verify(token); err == nil {
			c.JSON(http.StatusOK, IdentityResponse{UserID: owner})
			return
		}
	}

	token, owner, err := h.issuer.Issue()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to issue identity")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		h.cfg.CookieName,
		token,
		int(h.issuer.TTL().Seconds()),
		"/",
		"",
		h.cfg.SecureCookie,
		true, // httpOnly
	)

	h.log.Info().Str("owner_id", owner).Msg("identity issued")
	c.JSON(http.StatusOK, IdentityResponse{UserID: owner})
}

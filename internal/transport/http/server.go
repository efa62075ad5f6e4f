package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
)

// NewServer builds the HTTP server with chat, identity, socket and health routes.
// /ws is served by the stdlib mux, everything else by gin.
func NewServer(hub *core.Hub, issuer *auth.Issuer, origins *OriginPolicy, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	if err := registerValidators(); err != nil {
		logger.Error().Err(err).Msg("custom validators unavailable, message posts will be rejected")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(origins))

	chat := NewChatHandlers(hub, cfg.Chat, logger)
	identity := NewIdentityHandlers(issuer, cfg.Identity, logger)
	ws := NewWSHandler(hub, origins, cfg.WS, logger)

	router.GET("/health", healthHandler)
	router.POST("/identity", identity.Ensure)
	router.GET("/chat", chat.GetMessages)
	router.POST("/chat", IdentityMiddleware(issuer, cfg.Identity.CookieName, logger), chat.PostMessage)

	// the upgrade hijacks the connection, which gin's writer does not allow
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/auth"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/config"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/core"
	"github.com/ouatt10/Troc-Scolaire-Backend/internal/service/messages"
)

// PresenceResponse lists the users holding a live identified connection.
type PresenceResponse struct {
	Online []string `json:"online"`
}

// NewServer builds the HTTP server: health, WebSocket gateway and the message API.
// /ws is served by a plain mux in front of gin so the upgrade can hijack the connection.
func NewServer(
	hub *core.Hub,
	svc *messages.Service,
	authService *auth.Service,
	cfg *config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	api := router.Group("/api")
	api.Use(AuthMiddleware(authService, logger))

	api.GET("/presence", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, PresenceResponse{Online: hub.Online()})
	})

	msgHandlers := NewMessageHandlers(svc, cfg.DefaultPageSize, logger)
	msgs := api.Group("/messages")
	msgs.GET("/conversations", msgHandlers.ListConversations)
	msgs.GET("/unread/count", msgHandlers.UnreadCount)
	msgs.GET("/:conversationKey", msgHandlers.GetHistory)
	msgs.PUT("/:conversationKey/mark-read", msgHandlers.MarkRead)
	msgs.POST("", msgHandlers.SendMessage)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg, logger))
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

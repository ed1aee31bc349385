package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/service"
	"github.com/tenantry/message-service/internal/subscription"
)

type ServerConfig struct {
	Address   string
	MediaPath string
}

type Server struct {
	cfg    ServerConfig
	engine *gin.Engine
	srv    *http.Server
	log    zerolog.Logger
}

func NewServer(
	cfg ServerConfig,
	conversations *service.ConversationService,
	messages *service.MessageService,
	typing *service.TypingService,
	attachments *service.AttachmentService,
	hub *subscription.Hub,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	log := logger.Module("rest")
	engine.Use(requestLogger(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsCfg))

	h := &handler{
		conversations: conversations,
		messages:      messages,
		typing:        typing,
		attachments:   attachments,
		log:           log,
	}
	ws := &wsHandler{hub: hub, log: logger.Module("ws")}

	api := engine.Group("/api")
	{
		api.POST("/conversations", h.createConversation)
		api.GET("/conversations", h.listConversations)
		api.GET("/conversations/:id", h.getConversation)
		api.PATCH("/conversations/:id", h.updateConversation)
		api.DELETE("/conversations/:id", h.deleteConversation)
		api.POST("/conversations/:id/flags", h.setFlags)
		api.POST("/conversations/:id/read", h.markConversationRead)
		api.POST("/conversations/:id/typing", h.setTyping)
		api.GET("/conversations/:id/messages", h.listMessages)
		api.POST("/conversations/:id/messages", h.sendMessage)

		api.PATCH("/messages/:id", h.editMessage)
		api.DELETE("/messages/:id", h.deleteMessage)
		api.POST("/messages/:id/read", h.markMessageRead)
		api.POST("/messages/:id/reactions", h.addReaction)
		api.DELETE("/messages/:id/reactions/:reactionId", h.removeReaction)

		api.POST("/attachments", h.uploadAttachment)
	}

	engine.GET("/ws", ws.serve)
	engine.Static("/media", cfg.MediaPath)

	return &Server{
		cfg:    cfg,
		engine: engine,
		log:    log,
	}
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.engine,
	}
	s.log.Info().Str("address", s.cfg.Address).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

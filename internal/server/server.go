package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaychat/config"
	"relaychat/internal/handler"
	"relaychat/internal/middleware"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
	"relaychat/pkg/database"
	"relaychat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	User         *handler.UserHandler
	WebSocket    *WebSocketHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// The websocket endpoint authenticates in the handler itself so a
	// bad credential is rejected before the upgrade.
	s.engine.GET("/ws", handlers.WebSocket.Handle)

	auth := s.engine.Group("/v1/auth")
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}

	authed := s.engine.Group("/v1", middleware.AuthMiddleware(authService))
	{
		authed.POST("/conversations", handlers.Conversation.Create)
		authed.GET("/conversations", handlers.Conversation.List)
		authed.GET("/conversations/:id", handlers.Conversation.Get)
		authed.PATCH("/conversations/:id", handlers.Conversation.Rename)
		authed.POST("/conversations/:id/participants", handlers.Conversation.AddParticipant)
		authed.DELETE("/conversations/:id/participants/:userId", handlers.Conversation.RemoveParticipant)
		authed.GET("/conversations/:id/messages", handlers.Message.History)
		authed.GET("/conversations/:id/typing", handlers.User.TypingUsers)

		authed.GET("/messages/:id/edits", handlers.Message.Edits)
		authed.GET("/messages/:id/reactions", handlers.Message.Reactions)
		authed.POST("/attachments", handlers.Message.RegisterAttachment)

		authed.GET("/users/:id", handlers.User.Get)
		authed.GET("/users/:id/presence", handlers.User.Presence)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}

package main

import (
	"context"
	"errors"
	"time"

	"relaychat/config"
	"relaychat/internal/handler"
	redispkg "relaychat/internal/redis"
	"relaychat/internal/repository"
	"relaychat/internal/server"
	"relaychat/internal/services"
	"relaychat/internal/storage"
	"relaychat/pkg/database"
	"relaychat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)

	database.Connect(cfg)

	redisClient := redispkg.NewClient(redispkg.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	presence := redispkg.NewPresenceStore(redisClient, 5*time.Minute)
	limiter := redispkg.NewRateLimiter(redisClient, redispkg.DefaultRateLimitConfig())
	publisher := redispkg.NewPublisher(redisClient)
	subscriber := redispkg.NewSubscriber(redisClient)

	var media *storage.Client
	if cfg.S3Bucket != "" {
		var err error
		media, err = storage.NewClient(context.Background(), storage.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			l.Errorf("media storage disabled: %s", err)
		}
	}

	userRepo := repository.NewUserRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)

	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(userRepo, presence, l)
	conversationService := services.NewConversationService(conversationRepo, userRepo, publisher, l)
	messageService := services.NewMessageService(messageRepo, conversationRepo, media, l)

	hub := server.NewHub(userRepo, conversationRepo, messageRepo, presence, limiter, media)
	go hub.Run()

	bridge := server.NewBridge(subscriber, hub)
	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	go func() {
		if err := bridge.Run(bridgeCtx); err != nil && !errors.Is(err, context.Canceled) {
			l.Errorf("hub bridge stopped: %s", err)
		}
	}()

	handlers := &server.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Conversation: handler.NewConversationHandler(conversationService),
		Message:      handler.NewMessageHandler(messageService),
		User:         handler.NewUserHandler(userService),
		WebSocket:    server.NewWebSocketHandler(hub, authService),
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, authService)

	if err := srv.Start(); err != nil {
		l.Errorf("server exited with error: %s", err)
	}

	cancelBridge()
	hub.Stop()
}

package bootstrap

import (
	"context"
	"fmt"

	"school-portal-be/internal/academic"
	"school-portal-be/internal/broker"
	"school-portal-be/internal/config"
	"school-portal-be/internal/controller"
	"school-portal-be/internal/handler"
	"school-portal-be/internal/pkg/logger"
	"school-portal-be/internal/repository/memory"
	"school-portal-be/internal/repository/unitofwork"
	"school-portal-be/internal/service"
	"school-portal-be/internal/websocket"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	MessageController controller.IMessageController

	// Live delivery (exposed for main.go to run)
	SubscriptionHandler *handler.SubscriptionHandler
	WebSocketHub        *websocket.Hub
	Broker              *broker.Broker
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	directory := academic.NewGormDirectory(db)

	// 2. Event Broker
	relay, err := newRelay(cfg.Broker, sysLogger)
	if err != nil {
		return nil, err
	}
	brokerCfg := broker.DefaultConfig()
	brokerCfg.Shards = cfg.Broker.Shards
	eventBroker := broker.New(brokerCfg, relay, sysLogger)

	// 3. Services
	idempotencyRepo := memory.NewIdempotencyRepository(cfg.Chat.IdempotencyTTL)
	registry := service.NewChatRegistry(directory)

	chatService := service.NewChatService(uowFactory, registry, directory, eventBroker, sysLogger)
	messageService := service.NewMessageService(
		uowFactory,
		directory,
		idempotencyRepo,
		eventBroker,
		sysLogger,
		service.MessageServiceConfig{DefaultPageLimit: cfg.Chat.MessagePageLimit},
	)

	// 4. Subscription Gateway
	wsLogger := logger.NewIsolatedLogger(cfg.App.GatewayLogFilePath)
	wsHub := websocket.NewHub(wsLogger)
	gateway := websocket.NewGateway(wsHub, eventBroker, chatService, messageService, wsLogger, cfg.Chat.SendBuffer)

	return &Container{
		ChatController:      controller.NewChatController(chatService, cfg.Auth.JwtSecret),
		MessageController:   controller.NewMessageController(messageService, cfg.Auth.JwtSecret),
		SubscriptionHandler: handler.NewSubscriptionHandler(gateway, wsHub, cfg.Auth.JwtSecret, wsLogger),
		WebSocketHub:        wsHub,
		Broker:              eventBroker,
	}, nil
}

// newRelay returns nil for a single-instance deployment.
func newRelay(cfg config.BrokerConfig, log logger.ILogger) (broker.Relay, error) {
	switch cfg.Relay {
	case "", "none":
		return nil, nil
	case "nats":
		relay, err := broker.NewNatsRelay(cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			return nil, err
		}
		log.Info("Container", "Using NATS relay", map[string]interface{}{"subject": cfg.NatsSubject})
		return relay, nil
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Warn("Container", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Warn("Container", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Container", "Using Redis relay", map[string]interface{}{"channel": cfg.RedisChannel})
		return broker.NewRedisRelay(rdb, cfg.RedisChannel), nil
	default:
		return nil, fmt.Errorf("unknown BROKER_RELAY %q", cfg.Relay)
	}
}

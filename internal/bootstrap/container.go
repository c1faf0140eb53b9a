package bootstrap

import (
	"context"
	"log"

	"reqgather-bff/internal/agent"
	"reqgather-bff/internal/agentapi"
	"reqgather-bff/internal/config"
	"reqgather-bff/internal/controller"
	"reqgather-bff/internal/pkg/logger"
	"reqgather-bff/internal/repository/implementation"
	"reqgather-bff/internal/repository/memory"
	"reqgather-bff/internal/service"
	"reqgather-bff/internal/websocket"

	pktNats "reqgather-bff/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	SessionController   controller.ISessionController
	InterviewController controller.IInterviewController

	// Background services (exposed for main.go to run)
	AuditService service.IAuditService

	ChannelManager *agent.ChannelManager
	WebSocketHub   *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Channel domain gets its own file so connection churn does not drown
	// the main log.
	channelLogger := logger.NewIsolatedLogger(cfg.App.ChannelLogFilePath)

	// Internal event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Browser-facing hub
	wsHub := websocket.NewHub(rdb, channelLogger)
	go wsHub.Run()

	// Upstream agent backend
	apiClient := agentapi.NewClient(cfg.Agent.HTTPBaseURL)
	dialer := &agent.WebsocketDialer{}
	channelManager := agent.NewChannelManager()
	timings := agent.Timings{
		InitialProbeDelay: cfg.Channel.InitialProbeDelay,
		ProbeInterval:     cfg.Channel.ProbeInterval,
		NudgeDelay:        cfg.Channel.NudgeDelay,
		ReconnectDelay:    cfg.Channel.ReconnectDelay,
	}

	statusCache := memory.NewStatusCache()

	// NATS may be down; services tolerate a nil publisher.
	var eventPublisher service.EventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}

	sessionService := service.NewSessionService(
		apiClient,
		channelManager,
		wsHub,
		pubSub,
		eventPublisher,
		channelLogger,
		dialer,
		cfg.Agent.WSBaseURL,
		timings,
	)
	interviewService := service.NewInterviewService(
		channelManager,
		statusCache,
		wsHub,
		pubSub,
		eventPublisher,
		channelLogger,
		dialer,
		cfg.Agent.WSBaseURL,
		timings,
	)

	eventRepo := implementation.NewChannelEventRepository(db)
	auditService := service.NewAuditService(pubSub, eventRepo, sysLogger)

	return &Container{
		SessionController:   controller.NewSessionController(sessionService, wsHub, channelLogger),
		InterviewController: controller.NewInterviewController(interviewService, wsHub, channelLogger),
		AuditService:        auditService,
		ChannelManager:      channelManager,
		WebSocketHub:        wsHub,
	}
}

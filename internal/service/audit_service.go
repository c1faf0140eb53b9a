package service

import (
	"context"
	"encoding/json"

	"reqgather-bff/internal/model"
	"reqgather-bff/internal/pkg/logger"
	"reqgather-bff/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill/message"
)

// IAuditService drains the internal audit topic and persists channel
// transitions. Runs as a background worker started from main.
type IAuditService interface {
	Consume(ctx context.Context) error
}

type auditService struct {
	subscriber message.Subscriber
	repo       contract.IChannelEventRepository
	log        logger.ILogger
}

func NewAuditService(subscriber message.Subscriber, repo contract.IChannelEventRepository, log logger.ILogger) IAuditService {
	return &auditService{
		subscriber: subscriber,
		repo:       repo,
		log:        log,
	}
}

func (s *auditService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, AuditTopic)
	if err != nil {
		return err
	}

	for msg := range messages {
		var payload AuditMessage
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			s.log.Warn("AuditService", "Dropping unreadable audit message", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}

		event := model.ChannelEvent{
			TargetKind: payload.TargetKind,
			TargetID:   payload.TargetID,
			Event:      payload.Event,
			Status:     payload.Status,
			Detail:     payload.Detail,
		}
		if err := s.repo.Create(ctx, &event); err != nil {
			s.log.Error("AuditService", "Failed to persist channel event", map[string]interface{}{"error": err.Error()})
			// Ack anyway: the audit log is best effort, a redelivery loop
			// would starve the bus.
		}
		msg.Ack()
	}
	return nil
}

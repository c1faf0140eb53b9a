package service

import (
	"context"
	"encoding/json"
	"fmt"

	"reqgather-bff/internal/agent"
	"reqgather-bff/internal/dto"
	"reqgather-bff/internal/model"
	"reqgather-bff/internal/pkg/logger"
	"reqgather-bff/internal/repository/memory"
	"reqgather-bff/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IInterviewService interface {
	// Watch opens (or reuses) the status channel for an interview.
	Watch(interviewID int64)

	// Unwatch evicts the interview's channel.
	Unwatch(interviewID int64)

	GetStatus(interviewID int64) (*dto.InterviewStatusResponse, error)
}

type interviewService struct {
	manager *agent.ChannelManager
	cache   *memory.StatusCache
	hub     StatePublisher
	bus     message.Publisher
	nats    EventPublisher
	log     logger.ILogger
	dialer  agent.Dialer
	wsBase  string
	timings agent.Timings
}

func NewInterviewService(
	manager *agent.ChannelManager,
	cache *memory.StatusCache,
	hub StatePublisher,
	bus message.Publisher,
	natsPub EventPublisher,
	log logger.ILogger,
	dialer agent.Dialer,
	wsBase string,
	timings agent.Timings,
) IInterviewService {
	return &interviewService{
		manager: manager,
		cache:   cache,
		hub:     hub,
		bus:     bus,
		nats:    natsPub,
		log:     log,
		dialer:  dialer,
		wsBase:  wsBase,
		timings: timings,
	}
}

func (s *interviewService) Watch(interviewID int64) {
	s.manager.AcquireInterview(interviewID, func() *agent.StatusChannel {
		topic := fmt.Sprintf("interview:%d", interviewID)
		return agent.NewStatusChannel(agent.StatusChannelConfig{
			InterviewID: interviewID,
			URL:         fmt.Sprintf("%s/interviews/%d", s.wsBase, interviewID),
			Dialer:      s.dialer,
			Logger:      s.log,
			Timings:     s.timings,
			Observers: agent.StatusObservers{
				OnStatus: func(status agent.InterviewStatus) {
					s.cache.Save(status)
					if s.hub != nil {
						s.hub.Publish(topic, status)
					}
					s.publishExternal(events.NewInterviewEvent(events.TypeInterviewStatusChanged, interviewID,
						map[string]interface{}{"status": string(status.Status), "progress": status.Progress}))
					s.audit(AuditMessage{
						TargetKind: model.TargetInterview, TargetID: interviewID,
						Event: "status_change", Status: string(status.Status),
					})
				},
				OnStale: func(id int64) {
					// Whatever any consumer cached about this interview is
					// now suspect.
					s.cache.Invalidate(id)
				},
				OnError: func(msg string) {
					s.cache.Save(agent.InterviewStatus{
						ID:       interviewID,
						Status:   agent.InterviewErrored,
						Progress: agent.ProgressUnknown,
						Error:    msg,
					})
					if s.hub != nil {
						s.hub.Publish(topic, map[string]interface{}{"error": msg})
					}
					s.publishExternal(events.NewInterviewEvent(events.TypeInterviewFailed, interviewID,
						map[string]interface{}{"error": msg}))
					s.audit(AuditMessage{
						TargetKind: model.TargetInterview, TargetID: interviewID,
						Event: "error", Status: string(agent.InterviewErrored), Detail: msg,
					})
				},
				OnComplete: func(result []byte) {
					s.cache.Save(agent.InterviewStatus{
						ID:       interviewID,
						Status:   agent.InterviewCompleted,
						Progress: 100,
					})
					if s.hub != nil {
						s.hub.Publish(topic, map[string]interface{}{
							"status": agent.InterviewCompleted,
							"result": json.RawMessage(result),
						})
					}
					s.publishExternal(events.NewInterviewEvent(events.TypeInterviewCompleted, interviewID, nil))
					s.audit(AuditMessage{
						TargetKind: model.TargetInterview, TargetID: interviewID,
						Event: "completed", Status: string(agent.InterviewCompleted),
					})
				},
			},
			OnState: func(state agent.ChannelState) {
				if s.hub != nil {
					s.hub.Publish(topic, map[string]interface{}{"connection": state})
				}
			},
		})
	})
}

func (s *interviewService) Unwatch(interviewID int64) {
	s.manager.EvictInterview(interviewID)
}

func (s *interviewService) GetStatus(interviewID int64) (*dto.InterviewStatusResponse, error) {
	if ch, ok := s.manager.Interview(interviewID); ok {
		return &dto.InterviewStatusResponse{
			Status:     ch.Snapshot(),
			Connection: ch.State(),
		}, nil
	}

	if status, ok := s.cache.Get(interviewID); ok {
		return &dto.InterviewStatusResponse{
			Status:     status,
			Connection: agent.ChannelState{Status: agent.ConnClosed},
		}, nil
	}

	return nil, fmt.Errorf("no status known for interview %d", interviewID)
}

func (s *interviewService) publishExternal(evt events.BaseEvent) {
	if s.nats == nil {
		return
	}
	if err := s.nats.Publish(context.Background(), evt); err != nil {
		s.log.Warn("InterviewService", "NATS publish failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *interviewService) audit(msg AuditMessage) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.bus.Publish(AuditTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		s.log.Warn("InterviewService", "Audit publish failed", map[string]interface{}{"error": err.Error()})
	}
}

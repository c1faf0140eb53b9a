package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"reqgather-bff/internal/agent"
	"reqgather-bff/internal/agentapi"
	"reqgather-bff/internal/dto"
	"reqgather-bff/internal/model"
	"reqgather-bff/internal/pkg/logger"
	"reqgather-bff/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// EventPublisher pushes events onto the external NATS bus. Satisfied by
// *nats.Publisher; nil disables external publishing.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// IAgentAPI is the slice of the agent backend's request/response API the
// services consume. Satisfied by *agentapi.Client.
type IAgentAPI interface {
	CreateSessionFromProject(ctx context.Context, projectID int64) (int64, error)
	CreateSessionFromContext(ctx context.Context, manual agentapi.ManualContext) (int64, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID int64, answer agentapi.AnswerPayload) error
	CancelSession(ctx context.Context, sessionID int64) error
	GetDocument(ctx context.Context, documentID int64) (*agentapi.Document, error)
	ExportURL(documentID int64, format agentapi.DocumentFormat) (string, error)
}

// StatePublisher pushes payloads to browser subscribers of a topic.
// Satisfied by *websocket.Hub.
type StatePublisher interface {
	Publish(topic string, payload interface{})
}

// AuditTopic is the internal watermill topic carrying channel transitions to
// the audit worker.
const AuditTopic = "channel-audit"

// AuditMessage is the payload persisted by the audit worker.
type AuditMessage struct {
	TargetKind string `json:"target_kind"`
	TargetID   int64  `json:"target_id"`
	Event      string `json:"event"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
}

type ISessionService interface {
	CreateFromProject(ctx context.Context, req *dto.CreateSessionFromProjectRequest) (*dto.CreateSessionResponse, error)
	CreateFromContext(ctx context.Context, req *dto.CreateSessionFromContextRequest) (*dto.CreateSessionResponse, error)
	SubmitAnswer(ctx context.Context, sessionID int64, req *dto.SubmitAnswerRequest) error
	Cancel(ctx context.Context, sessionID int64) error
	Reconnect(sessionID int64) error
	GetState(sessionID int64) (*dto.SessionStateResponse, error)
	Release(sessionID int64)
	GetDocument(ctx context.Context, documentID int64) (*dto.DocumentResponse, error)
	ExportURL(documentID int64, format string) (*dto.ExportDocumentResponse, error)
}

type sessionService struct {
	api     IAgentAPI
	manager *agent.ChannelManager
	hub     StatePublisher
	bus     message.Publisher
	nats    EventPublisher
	log     logger.ILogger
	dialer  agent.Dialer
	wsBase  string
	timings agent.Timings

	// One outstanding submission per dialogue. UI concern surfaced here so
	// every front end gets the same guarantee.
	submitMu sync.Mutex
	inFlight map[int64]bool
}

func NewSessionService(
	api IAgentAPI,
	manager *agent.ChannelManager,
	hub StatePublisher,
	bus message.Publisher,
	natsPub EventPublisher,
	log logger.ILogger,
	dialer agent.Dialer,
	wsBase string,
	timings agent.Timings,
) ISessionService {
	return &sessionService{
		api:      api,
		manager:  manager,
		hub:      hub,
		bus:      bus,
		nats:     natsPub,
		log:      log,
		dialer:   dialer,
		wsBase:   wsBase,
		timings:  timings,
		inFlight: make(map[int64]bool),
	}
}

func (s *sessionService) CreateFromProject(ctx context.Context, req *dto.CreateSessionFromProjectRequest) (*dto.CreateSessionResponse, error) {
	sessionID, err := s.api.CreateSessionFromProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	s.openChannel(sessionID)
	return &dto.CreateSessionResponse{SessionID: sessionID}, nil
}

func (s *sessionService) CreateFromContext(ctx context.Context, req *dto.CreateSessionFromContextRequest) (*dto.CreateSessionResponse, error) {
	sessionID, err := s.api.CreateSessionFromContext(ctx, agentapi.ManualContext{
		Goal:        req.Goal,
		TaskAnswer:  req.TaskAnswer,
		GoalAnswer:  req.GoalAnswer,
		ValueAnswer: req.ValueAnswer,
	})
	if err != nil {
		return nil, err
	}
	s.openChannel(sessionID)
	return &dto.CreateSessionResponse{SessionID: sessionID}, nil
}

// openChannel ensures a live channel exists for the session and wires its
// observers into the hub, the audit bus and the event log.
func (s *sessionService) openChannel(sessionID int64) *agent.SessionChannel {
	return s.manager.AcquireSession(sessionID, func() *agent.SessionChannel {
		topic := fmt.Sprintf("session:%d", sessionID)
		return agent.NewSessionChannel(agent.SessionChannelConfig{
			SessionID: sessionID,
			URL:       fmt.Sprintf("%s/sessions/%d", s.wsBase, sessionID),
			Dialer:    s.dialer,
			Logger:    s.log,
			Timings:   s.timings,
			Observers: agent.SessionObservers{
				OnStatus: func(status agent.SessionStatus) {
					s.audit(AuditMessage{
						TargetKind: model.TargetSession, TargetID: sessionID,
						Event: "status_change", Status: string(status),
					})
					s.publishExternal(events.NewSessionEvent(events.TypeSessionStatusChanged, sessionID,
						map[string]interface{}{"status": string(status)}))
				},
				OnResult: func(result agent.SessionResult) {
					s.audit(AuditMessage{
						TargetKind: model.TargetSession, TargetID: sessionID,
						Event:  "result_ready",
						Status: string(agent.SessionDone),
						Detail: fmt.Sprintf("document_id=%d", result.DocumentID),
					})
					s.publishExternal(events.NewSessionEvent(events.TypeSessionResultReady, sessionID,
						map[string]interface{}{"document_id": result.DocumentID}))
				},
			},
			OnFrame: func(session agent.Session) {
				if s.hub != nil {
					ch, ok := s.manager.Session(sessionID)
					state := agent.ChannelState{Status: agent.ConnOpen}
					if ok {
						state = ch.State()
					}
					s.hub.Publish(topic, dto.SessionStateResponse{
						Session:       session,
						Connection:    state,
						MaxIterations: agent.MaxIterations,
					})
				}
			},
			OnState: func(state agent.ChannelState) {
				if s.hub != nil {
					s.hub.Publish(topic, map[string]interface{}{"connection": state})
				}
			},
		})
	})
}

// SubmitAnswer relays one answer (or skip) to the backend and, on success,
// nudges the channel so the confirming snapshot arrives promptly. The
// dialogue itself is never mutated locally: the server is the sole source of
// truth, and the next push carries the authoritative update.
func (s *sessionService) SubmitAnswer(ctx context.Context, sessionID int64, req *dto.SubmitAnswerRequest) error {
	s.submitMu.Lock()
	if s.inFlight[sessionID] {
		s.submitMu.Unlock()
		return fmt.Errorf("an answer submission is already in flight for session %d", sessionID)
	}
	s.inFlight[sessionID] = true
	s.submitMu.Unlock()

	defer func() {
		s.submitMu.Lock()
		delete(s.inFlight, sessionID)
		s.submitMu.Unlock()
	}()

	content := req.Content
	if req.IsSkipped {
		content = ""
	}
	err := s.api.SubmitAnswer(ctx, sessionID, req.QuestionID, agentapi.AnswerPayload{
		Content:   content,
		IsSkipped: req.IsSkipped,
	})
	if err != nil {
		return err
	}

	if ch, ok := s.manager.Session(sessionID); ok {
		ch.Nudge()
	}
	return nil
}

func (s *sessionService) Cancel(ctx context.Context, sessionID int64) error {
	if err := s.api.CancelSession(ctx, sessionID); err != nil {
		return err
	}
	// The backend pushes the "cancelled" status on the channel; the channel
	// then stops reconnecting on its own.
	if ch, ok := s.manager.Session(sessionID); ok {
		ch.Nudge()
	}
	return nil
}

func (s *sessionService) Reconnect(sessionID int64) error {
	ch, ok := s.manager.Session(sessionID)
	if !ok {
		s.openChannel(sessionID)
		return nil
	}
	ch.Reconnect()
	return nil
}

func (s *sessionService) GetState(sessionID int64) (*dto.SessionStateResponse, error) {
	ch, ok := s.manager.Session(sessionID)
	if !ok {
		ch = s.openChannel(sessionID)
	}
	return &dto.SessionStateResponse{
		Session:       ch.Snapshot(),
		Connection:    ch.State(),
		MaxIterations: agent.MaxIterations,
	}, nil
}

// Release evicts the session's channel once no consumer needs it.
func (s *sessionService) Release(sessionID int64) {
	s.manager.EvictSession(sessionID)
}

func (s *sessionService) GetDocument(ctx context.Context, documentID int64) (*dto.DocumentResponse, error) {
	doc, err := s.api.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &dto.DocumentResponse{ID: doc.ID, Title: doc.Title, Content: doc.Content}, nil
}

func (s *sessionService) ExportURL(documentID int64, format string) (*dto.ExportDocumentResponse, error) {
	url, err := s.api.ExportURL(documentID, agentapi.DocumentFormat(format))
	if err != nil {
		return nil, err
	}
	return &dto.ExportDocumentResponse{URL: url}, nil
}

func (s *sessionService) publishExternal(evt events.BaseEvent) {
	if s.nats == nil {
		return
	}
	if err := s.nats.Publish(context.Background(), evt); err != nil {
		s.log.Warn("SessionService", "NATS publish failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *sessionService) audit(msg AuditMessage) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.bus.Publish(AuditTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		s.log.Warn("SessionService", "Audit publish failed", map[string]interface{}{"error": err.Error()})
	}
}

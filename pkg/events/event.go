package events

import "time"

// Event is the contract for everything published on the internal bus and to
// NATS.
type Event interface {
	// EventType returns the unique code for this event (e.g. "SESSION_DONE").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Event type codes emitted by the channel layer.
const (
	TypeSessionStatusChanged   = "SESSION_STATUS_CHANGED"
	TypeSessionResultReady     = "SESSION_RESULT_READY"
	TypeInterviewStatusChanged = "INTERVIEW_STATUS_CHANGED"
	TypeInterviewCompleted     = "INTERVIEW_COMPLETED"
	TypeInterviewFailed        = "INTERVIEW_FAILED"
)

// NewSessionEvent builds a session-scoped event.
func NewSessionEvent(eventType string, sessionID int64, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["session_id"] = sessionID
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

// NewInterviewEvent builds an interview-scoped event.
func NewInterviewEvent(eventType string, interviewID int64, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["interview_id"] = interviewID
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

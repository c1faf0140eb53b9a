package agent

import (
	"encoding/json"
	"fmt"
)

// KeepaliveToken is the bare (non-JSON) client->server probe. It carries no
// payload; it only asks the backend to push its current snapshot.
const KeepaliveToken = "ping"

// SessionFrame is one server->client push on a session channel. Every field
// is optional on the wire; pointer fields distinguish "absent" from a zero
// value (current_iteration: 0 is legitimate and must be applied).
type SessionFrame struct {
	Dialogue         *[]DialogueItem `json:"dialogue,omitempty"`
	SessionStatus    *SessionStatus  `json:"session_status,omitempty"`
	CurrentIteration *int            `json:"current_iteration,omitempty"`
	Result           *SessionResult  `json:"result,omitempty"`
}

// ParseSessionFrame decodes and shape-checks one inbound session frame.
// Callers drop (and log) frames that fail here; a bad frame never tears the
// channel down or clears accumulated state.
func ParseSessionFrame(data []byte) (*SessionFrame, error) {
	var frame SessionFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed session frame: %w", err)
	}
	if frame.Dialogue != nil {
		for i, item := range *frame.Dialogue {
			if item.Question.ID == 0 {
				return nil, fmt.Errorf("session frame dialogue[%d]: question id missing", i)
			}
		}
	}
	if frame.CurrentIteration != nil && *frame.CurrentIteration < 0 {
		return nil, fmt.Errorf("session frame: negative current_iteration %d", *frame.CurrentIteration)
	}
	return &frame, nil
}

// Status-channel event discriminators.
const (
	EventInterviewStatus   = "interview:status"
	EventInterviewError    = "interview:error"
	EventInterviewComplete = "interview:complete"
)

// StatusFrame is one typed server->client event on a status channel.
type StatusFrame struct {
	Type string          `json:"type"`
	Data StatusFrameData `json:"data"`
}

type StatusFrameData struct {
	ID       int64           `json:"id"`
	Status   *InterviewState `json:"status,omitempty"`
	Progress *int            `json:"progress,omitempty"`
	Error    *string         `json:"error,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}

func ParseStatusFrame(data []byte) (*StatusFrame, error) {
	var frame StatusFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed status frame: %w", err)
	}
	switch frame.Type {
	case EventInterviewStatus, EventInterviewError, EventInterviewComplete:
	default:
		return nil, fmt.Errorf("status frame: unknown type %q", frame.Type)
	}
	if frame.Data.Progress != nil && (*frame.Data.Progress < 0 || *frame.Data.Progress > 100) {
		return nil, fmt.Errorf("status frame: progress %d out of range", *frame.Data.Progress)
	}
	return &frame, nil
}

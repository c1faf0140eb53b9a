package dto

import "reqgather-bff/internal/agent"

type CreateSessionFromProjectRequest struct {
	ProjectID int64 `json:"project_id" validate:"required,gt=0"`
}

// CreateSessionFromContextRequest bootstraps a session from freeform input
// instead of a project's interviews.
type CreateSessionFromContextRequest struct {
	Goal        string `json:"goal" validate:"required,max=2000"`
	TaskAnswer  string `json:"task_answer" validate:"required,max=2000"`
	GoalAnswer  string `json:"goal_answer" validate:"required,max=2000"`
	ValueAnswer string `json:"value_answer" validate:"required,max=2000"`
}

type CreateSessionResponse struct {
	SessionID int64 `json:"session_id"`
}

type SubmitAnswerRequest struct {
	QuestionID int64  `json:"question_id" validate:"required,gt=0"`
	Content    string `json:"content" validate:"max=10000"`
	IsSkipped  bool   `json:"is_skipped"`
}

// SessionStateResponse is the channel's observable state as served to the UI:
// the projected session plus the connection status the "connecting" indicator
// renders from.
type SessionStateResponse struct {
	Session       agent.Session      `json:"session"`
	Connection    agent.ChannelState `json:"connection"`
	MaxIterations int                `json:"max_iterations"`
}

package dto

import "reqgather-bff/internal/agent"

type InterviewStatusResponse struct {
	Status     agent.InterviewStatus `json:"status"`
	Connection agent.ChannelState    `json:"connection"`
}

package model

import "time"

// Target kinds for channel audit rows.
const (
	TargetSession   = "session"
	TargetInterview = "interview"
)

// ChannelEvent is one audited transition observed by the channel layer:
// connection state changes and domain status changes, kept for support
// debugging of "why did my session stop updating" tickets.
type ChannelEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TargetKind string    `gorm:"size:16;index:idx_channel_events_target" json:"target_kind"`
	TargetID   int64     `gorm:"index:idx_channel_events_target" json:"target_id"`
	Event      string    `gorm:"size:32" json:"event"`
	Status     string    `gorm:"size:32" json:"status"`
	Detail     string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ChannelEvent) TableName() string {
	return "channel_events"
}

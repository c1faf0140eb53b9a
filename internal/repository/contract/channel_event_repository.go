package contract

import (
	"context"

	"reqgather-bff/internal/model"
)

type IChannelEventRepository interface {
	Create(ctx context.Context, event *model.ChannelEvent) error
	FindByTarget(ctx context.Context, kind string, targetID int64, limit int) ([]model.ChannelEvent, error)
}

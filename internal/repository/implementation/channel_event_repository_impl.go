package implementation

import (
	"context"

	"reqgather-bff/internal/model"
	"reqgather-bff/internal/repository/contract"

	"gorm.io/gorm"
)

type channelEventRepository struct {
	db *gorm.DB
}

func NewChannelEventRepository(db *gorm.DB) contract.IChannelEventRepository {
	return &channelEventRepository{db: db}
}

func (r *channelEventRepository) Create(ctx context.Context, event *model.ChannelEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *channelEventRepository) FindByTarget(ctx context.Context, kind string, targetID int64, limit int) ([]model.ChannelEvent, error) {
	var events []model.ChannelEvent
	err := r.db.WithContext(ctx).
		Where("target_kind = ? AND target_id = ?", kind, targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

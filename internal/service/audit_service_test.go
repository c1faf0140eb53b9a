package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"reqgather-bff/internal/model"
	"reqgather-bff/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventRepo struct {
	mu     sync.Mutex
	events []model.ChannelEvent
}

func (r *fakeEventRepo) Create(ctx context.Context, event *model.ChannelEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *fakeEventRepo) FindByTarget(ctx context.Context, kind string, id int64, limit int) ([]model.ChannelEvent, error) {
	return nil, nil
}

func (r *fakeEventRepo) stored() []model.ChannelEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ChannelEvent, len(r.events))
	copy(out, r.events)
	return out
}

func TestAuditServicePersistsChannelTransitions(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	repo := &fakeEventRepo{}
	svc := NewAuditService(pubSub, repo, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Consume(ctx)

	// Give the subscriber a moment to attach before publishing.
	time.Sleep(20 * time.Millisecond)

	payload, err := json.Marshal(AuditMessage{
		TargetKind: "session",
		TargetID:   42,
		Event:      "status_change",
		Status:     "done",
	})
	require.NoError(t, err)
	require.NoError(t, pubSub.Publish(AuditTopic, message.NewMessage(watermill.NewUUID(), payload)))

	// Unreadable message is dropped, not retried.
	require.NoError(t, pubSub.Publish(AuditTopic, message.NewMessage(watermill.NewUUID(), []byte("not json"))))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(repo.stored()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	events := repo.stored()
	require.Len(t, events, 1)
	assert.Equal(t, "session", events[0].TargetKind)
	assert.Equal(t, int64(42), events[0].TargetID)
	assert.Equal(t, "status_change", events[0].Event)
	assert.Equal(t, "done", events[0].Status)
}

package event

import (
	"context"
	"errors"
	"testing"

	"pricing-service/internal/models"
	"pricing-service/internal/utils"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func TestPublish_SendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := &SubmissionEventPublisher{channel: ch, queue: "submission_events"}

	err := p.Publish(context.Background(), SubmissionEvent{
		Type:         models.EventSubmissionCreated,
		SubmissionID: 7,
	})
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "submission_events", ch.keys[0])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "submission.created", msg.Type)
	assert.NotEmpty(t, msg.MessageId)

	var decoded SubmissionEvent
	require.NoError(t, utils.DeserializeModel(msg.Body, &decoded))
	assert.Equal(t, int64(7), decoded.SubmissionID)
	assert.Equal(t, msg.MessageId, decoded.EventID)
	assert.False(t, decoded.OccurredAt.IsZero())

	health := p.HealthCheck()
	assert.True(t, health.IsHealthy)
	assert.Equal(t, int64(1), health.MessagesPublished)
	assert.Zero(t, health.MessagesFailed)
}

func TestPublish_CountsFailures(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &SubmissionEventPublisher{channel: ch, queue: "submission_events"}

	err := p.Publish(context.Background(), SubmissionEvent{Type: models.EventSubmissionDeleted, SubmissionID: 1})
	assert.Error(t, err)
	assert.Equal(t, int64(1), p.HealthCheck().MessagesFailed)
}

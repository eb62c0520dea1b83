package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pricing-service/internal/utils"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channelPublisher is the part of *amqp.Channel the publisher needs.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// SubmissionEventPublisher publishes submission lifecycle events to the
// submission queue.
type SubmissionEventPublisher struct {
	channel channelPublisher
	queue   string
	healthy func() bool

	mu                sync.Mutex
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

func NewSubmissionEventPublisher(conn *RabbitMQConnection) *SubmissionEventPublisher {
	return &SubmissionEventPublisher{
		channel: conn.Channel,
		queue:   conn.Queue,
		healthy: func() bool {
			return conn.Connection != nil && !conn.Connection.IsClosed()
		},
	}
}

// Publish sends one event. EventID and OccurredAt are filled in when empty.
func (p *SubmissionEventPublisher) Publish(ctx context.Context, event SubmissionEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := utils.SerializeModel(event)
	if err != nil {
		p.record(false)
		return fmt.Errorf("failed to marshal submission event: %w", err)
	}

	p.mu.Lock()
	err = p.channel.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Type:         string(event.Type),
			Body:         body,
			Timestamp:    event.OccurredAt,
		},
	)
	p.mu.Unlock()
	if err != nil {
		p.record(false)
		return fmt.Errorf("failed to publish submission event: %w", err)
	}

	p.record(true)
	slog.Info("Submission event published",
		"queue", p.queue,
		"type", event.Type,
		"submission_id", event.SubmissionID)
	return nil
}

func (p *SubmissionEventPublisher) record(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ok {
		p.messagesPublished++
		p.lastPublishTime = time.Now()
	} else {
		p.messagesFailed++
	}
}

// HealthCheck returns the health status of the publisher
func (p *SubmissionEventPublisher) HealthCheck() PublisherHealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PublisherHealthStatus{
		IsHealthy:         p.healthy == nil || p.healthy(),
		MessagesPublished: p.messagesPublished,
		MessagesFailed:    p.messagesFailed,
		LastPublishTime:   p.lastPublishTime,
		Queue:             p.queue,
	}
}

// PublisherHealthStatus represents the health status of the publisher
type PublisherHealthStatus struct {
	IsHealthy         bool      `json:"is_healthy"`
	MessagesPublished int64     `json:"messages_published"`
	MessagesFailed    int64     `json:"messages_failed"`
	LastPublishTime   time.Time `json:"last_publish_time"`
	Queue             string    `json:"queue"`
}

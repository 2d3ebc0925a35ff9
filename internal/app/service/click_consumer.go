package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pulseurl/pulseurl/internal/app/metrics"
	"github.com/pulseurl/pulseurl/internal/app/model"
	apprepository "github.com/pulseurl/pulseurl/internal/app/repository"
	"go.uber.org/zap"
)

// ClickConsumer drains the click stream and persists each event as a raw
// record, independently of and at a different rate than production.
type ClickConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.ClickEventRepository
}

// NewClickConsumer creates a new click event consumer.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.ClickEventRepository) *ClickConsumer {
	return &ClickConsumer{js: js, logger: logger, repo: repo}
}

// Start ensures the stream and durable consumer exist, then begins
// consuming in the background.
func (c *ClickConsumer) Start() error {
	_, err := c.js.StreamInfo(model.ClickStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickSubjectAll},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:       model.ClickConsumerName,
			AckPolicy:     nats.AckExplicitPolicy,
			FilterSubject: model.ClickSubjectAll,
			MaxDeliver:    model.ClickMaxDeliveries,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickSubjectAll, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *ClickConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

// handle persists one event. A failing event is redelivered up to the
// consumer's delivery bound, then dead-lettered (logged and acked) so it
// cannot stall the rest of the pipeline.
func (c *ClickConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event model.ClickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Malformed payloads never become parseable; drop immediately.
		metrics.DeadLetters.Inc()
		c.logger.Error("dropping unparseable click event", zap.Error(err))
		msg.Ack()
		return
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		if c.deliveries(msg) >= model.ClickMaxDeliveries {
			metrics.DeadLetters.Inc()
			c.logger.Error("dead-lettering click event after max deliveries",
				zap.String("id", event.ID),
				zap.String("link_code", event.LinkCode),
				zap.Error(err))
			msg.Ack()
			return
		}
		c.logger.Error("failed to store click event, will retry",
			zap.String("id", event.ID),
			zap.String("link_code", event.LinkCode),
			zap.Error(err))
		msg.Nak()
		return
	}

	c.logger.Debug("click event stored",
		zap.String("id", event.ID),
		zap.String("link_code", event.LinkCode),
		zap.String("ip", event.IP),
		zap.Time("occurred_at", event.OccurredAt),
	)

	msg.Ack()
}

func (c *ClickConsumer) deliveries(msg *nats.Msg) uint64 {
	meta, err := msg.Metadata()
	if err != nil {
		return 1
	}
	return meta.NumDelivered
}

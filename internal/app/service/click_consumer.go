package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/sifan077/DealLink/internal/app/repository"
	infraPrometheus "github.com/sifan077/DealLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// EnsureClickStream creates the click stream and its durable consumer when
// they do not exist yet.
func EnsureClickStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickStreamSubject},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}
	return nil
}

// ClickConsumer drains click events from NATS JetStream into Postgres.
type ClickConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	store  repository.Store
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, store repository.Store) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{js: js, logger: logger, store: store}
}

// Start begins consuming click events until Stop is called.
func (c *ClickConsumer) Start() error {
	if err := EnsureClickStream(c.js); err != nil {
		return err
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName,
		nats.Bind(model.ClickStreamName, model.ClickConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(ctx, sub)
	return nil
}

// Stop ends the fetch loop and waits for the in-flight batch.
func (c *ClickConsumer) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(c.done)
	defer func() { _ = sub.Unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("click consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

func (c *ClickConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event model.ClickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Error("dropping malformed click event", zap.Error(err))
		_ = msg.Term()
		return
	}

	if err := PersistClick(ctx, c.store, &event); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.logger.Warn("dropping click for unknown link",
				zap.String("id", event.ID),
				zap.String("link_id", event.LinkID))
			_ = msg.Term()
			return
		}
		infraPrometheus.ClickRecordFailures.Inc()
		c.logger.Error("failed to store click event",
			zap.String("id", event.ID),
			zap.String("link_id", event.LinkID),
			zap.Error(err))
		_ = msg.Nak()
		return
	}

	c.logger.Debug("click event stored",
		zap.String("id", event.ID),
		zap.String("link_id", event.LinkID),
		zap.Time("timestamp", event.Timestamp),
	)
	_ = msg.Ack()
}

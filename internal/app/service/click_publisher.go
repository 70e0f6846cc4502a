package service

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/DealLink/internal/app/model"
)

// ClickPublisher publishes click events to NATS JetStream
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click event publisher
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish publishes an already anonymized click event to the stream. The event
// id doubles as the JetStream message id so the server drops duplicates within
// its dedupe window.
func (p *ClickPublisher) Publish(event *model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data, nats.MsgId(event.ID))
	return err
}

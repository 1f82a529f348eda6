// Package events publishes work item lifecycle events to Kafka.
//
// Every status change the orchestrator commits (created, processed,
// completed, failed) becomes one JSON message keyed by item id, so a
// partition sees an item's events in order. Without configured brokers the
// package hands out a no-op publisher.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"futures/internal/config"
	"futures/internal/logging"
	"futures/internal/workitem"
)

// Event is one work item lifecycle transition.
type Event struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"itemId"`
	ItemType  workitem.Type   `json:"itemType"`
	Operation string          `json:"operation,omitempty"`
	Subject   string          `json:"subject,omitempty"`
	Status    workitem.Status `json:"status"`
	Error     string          `json:"error,omitempty"`
	Retriable bool            `json:"retriable,omitempty"`
	At        time.Time       `json:"at"`
}

// ForItem builds the event for item's current status.
func ForItem(item *workitem.Item) Event {
	ev := Event{
		ID:        uuid.NewString(),
		ItemID:    item.ID,
		ItemType:  item.Type,
		Subject:   item.Subject,
		Status:    item.Status,
		Error:     item.ErrorMessage,
		Retriable: item.Retriable,
		At:        time.Now().UTC(),
	}
	if meta, err := item.Metadata(); err == nil {
		if op, ok := workitem.SubOperation(meta); ok {
			ev.Operation = string(op)
		}
	}
	return ev
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured and a no-op
// publisher otherwise.
func New(cfg *config.Config, logger *slog.Logger) Publisher {
	brokers := make([]string, 0, len(cfg.Events.Brokers))
	for _, b := range cfg.Events.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return Noop{}
	}
	timeout := time.Duration(cfg.Events.WriteTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Events.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: timeout,
	}
	return NewKafka(writer, logger)
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events through a kafka-go writer.
type Kafka struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewKafka wraps writer.
func NewKafka(writer MessageWriter, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Kafka{writer: writer, logger: logging.NewComponentLogger(logger, "events")}
}

// Publish writes events as one batch.
func (k *Kafka) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("events - publish - marshal %s: %w", ev.ItemID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.ItemID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(ev.ID)},
				{Key: "status", Value: []byte(ev.Status)},
			},
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("events - publish - write messages: %w", err)
	}
	k.logger.Debug("lifecycle events published", logging.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("events - close: %w", err)
	}
	return nil
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, ...Event) error { return nil }
func (Noop) Close() error                            { return nil }

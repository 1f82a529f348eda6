package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"futures/internal/config"
	"futures/internal/events"
	"futures/internal/workitem"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewWithoutBrokersIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Events.Brokers = []string{" "}
	pub := events.New(&cfg, nil)
	if _, ok := pub.(events.Noop); !ok {
		t.Fatalf("expected Noop publisher, got %T", pub)
	}
}

func TestKafkaPublishKeysByItem(t *testing.T) {
	w := &recordingWriter{}
	pub := events.NewKafka(w, nil)

	item := &workitem.Item{
		ID:           "item-1",
		Type:         workitem.TypeMicrosite,
		Subject:      "order:7",
		Status:       workitem.StatusProcessed,
		MetadataJSON: json.RawMessage(`{"type":"create_site","memberId":"1","payload":{}}`),
	}
	if err := pub.Publish(context.Background(), events.ForItem(item)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "item-1" {
		t.Fatalf("key = %q", msg.Key)
	}
	var ev events.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Operation != "create_site" || ev.Status != workitem.StatusProcessed || ev.Subject != "order:7" {
		t.Fatalf("unexpected event %#v", ev)
	}

	if err := pub.Close(); err != nil || !w.closed {
		t.Fatalf("close: %v closed=%v", err, w.closed)
	}
}

func TestKafkaPublishWrapsWriterErrors(t *testing.T) {
	boom := errors.New("broker down")
	pub := events.NewKafka(&recordingWriter{err: boom}, nil)
	err := pub.Publish(context.Background(), events.Event{ItemID: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacked++
	return nil
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{channel: ch, exchange: "events", logger: zap.NewNop()}

	event := map[string]int{"new_connections": 2}
	if err := p.Publish(context.Background(), "pds.sync.completed", event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("Expected 1 publishing, got %d", len(ch.published))
	}
	msg := ch.published[0]
	if ch.keys[0] != "pds.sync.completed" {
		t.Errorf("Unexpected routing key %s", ch.keys[0])
	}
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" || msg.MessageId == "" {
		t.Errorf("Unexpected publishing properties: %+v", msg)
	}
	var decoded map[string]int
	if err := json.Unmarshal(msg.Body, &decoded); err != nil || decoded["new_connections"] != 2 {
		t.Errorf("Unexpected body %s", msg.Body)
	}
}

func TestPublishErrors(t *testing.T) {
	p := &Publisher{channel: &fakeChannel{err: errors.New("channel closed")}, exchange: "events", logger: zap.NewNop()}
	if err := p.Publish(context.Background(), "k", struct{}{}); err == nil {
		t.Error("Expected broker failure to be returned")
	}
	if err := p.Publish(context.Background(), "k", func() {}); err == nil {
		t.Error("Expected unmarshalable event to fail")
	}
}

func TestNilPublisherDropsEvents(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), "k", "event"); err != nil {
		t.Errorf("Expected nil publisher to drop events, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Expected nil publisher close to succeed, got %v", err)
	}
}

func TestNewPublisherWithoutConnection(t *testing.T) {
	p, err := NewPublisher(nil, "events", zap.NewNop())
	if err != nil || p != nil {
		t.Errorf("Expected nil publisher without connection, got %v, %v", p, err)
	}
}

func TestProcessMessage(t *testing.T) {
	tests := []struct {
		name     string
		handler  MessageHandler
		wantAck  int
		wantNack int
	}{
		{
			name:    "success is acked",
			handler: func(ctx context.Context, body []byte) error { return nil },
			wantAck: 1,
		},
		{
			name:     "failure is dead-lettered",
			handler:  func(ctx context.Context, body []byte) error { return errors.New("boom") },
			wantNack: 1,
		},
		{
			name:     "panic is dead-lettered",
			handler:  func(ctx context.Context, body []byte) error { panic("bad message") },
			wantNack: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			c := &Consumer{topology: Topology{Queue: "q"}, logger: zap.NewNop(), handler: tt.handler}

			c.processMessage(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)})

			if ack.acked != tt.wantAck || ack.nacked != tt.wantNack {
				t.Errorf("Expected %d ack / %d nack, got %d / %d", tt.wantAck, tt.wantNack, ack.acked, ack.nacked)
			}
			if ack.requeue {
				t.Error("Expected failures not to be requeued")
			}
		})
	}
}

func TestWatchCloseReturnsOnGracefulClose(t *testing.T) {
	closed := make(chan *amqp.Error)
	done := make(chan struct{})
	go func() {
		watchClose(closed, zap.NewNop())
		close(done)
	}()

	close(closed)
	<-done
}

package queue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	confirms  chan amqp.Confirmation
	ack       bool
	err       error
	// hold delays confirmations until the next publish with hold unset.
	hold    bool
	delayed []amqp.Confirmation
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	f.keys = append(f.keys, key)
	c := amqp.Confirmation{DeliveryTag: uint64(len(f.published)), Ack: f.ack}
	if f.hold {
		f.delayed = append(f.delayed, c)
		return nil
	}
	for _, d := range f.delayed {
		f.confirms <- d
	}
	f.delayed = nil
	f.confirms <- c
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func newTestPublisher(ack bool) (*Publisher, *fakeChannel) {
	fc := &fakeChannel{confirms: make(chan amqp.Confirmation, 1), ack: ack}
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return &Publisher{ch: fc, queue: "review", confirms: fc.confirms, now: func() time.Time { return fixed }}, fc
}

func TestPublish_Confirmed(t *testing.T) {
	p, fc := newTestPublisher(true)

	err := p.Publish(context.Background(), "enrichment_failure", map[string]string{"step": "audit_note"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc.published) != 1 || fc.keys[0] != "review" {
		t.Fatalf("expected one message on review, got %d %v", len(fc.published), fc.keys)
	}
	msg := fc.published[0]
	if msg.DeliveryMode != amqp.Persistent {
		t.Error("expected persistent delivery")
	}
	if msg.ContentType != "application/json" || msg.Type != "enrichment_failure" {
		t.Errorf("unexpected headers: %q %q", msg.ContentType, msg.Type)
	}

	var env struct {
		ID         string            `json:"id"`
		Kind       string            `json:"kind"`
		OccurredAt time.Time         `json:"occurred_at"`
		Payload    map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if env.ID == "" || env.ID != msg.MessageId {
		t.Errorf("expected message id %q in body, got %q", msg.MessageId, env.ID)
	}
	if env.Payload["step"] != "audit_note" {
		t.Errorf("unexpected payload %v", env.Payload)
	}
	if !env.OccurredAt.Equal(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected occurred_at %v", env.OccurredAt)
	}
}

func TestPublish_Nacked(t *testing.T) {
	p, _ := newTestPublisher(false)
	err := p.Publish(context.Background(), "enrichment_failure", nil)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
}

func TestPublish_ChannelError(t *testing.T) {
	p, fc := newTestPublisher(true)
	fc.err = errors.New("channel closed")
	err := p.Publish(context.Background(), "enrichment_failure", nil)
	if err == nil || !strings.Contains(err.Error(), "channel closed") {
		t.Fatalf("expected channel error, got %v", err)
	}
}

func TestPublish_ContextCancelledWhileWaiting(t *testing.T) {
	fc := &fakeChannel{confirms: make(chan amqp.Confirmation, 1), ack: true}
	p := &Publisher{ch: fc, queue: "review", confirms: make(chan amqp.Confirmation), now: time.Now}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, "enrichment_failure", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPublish_LateConfirmDoesNotLeakIntoNextPublish(t *testing.T) {
	fc := &fakeChannel{confirms: make(chan amqp.Confirmation, 2), hold: true}
	p := &Publisher{ch: fc, queue: "review", confirms: fc.confirms, now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Publish(ctx, "enrichment_failure", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// The abandoned publish is nacked late. The next one is acked and must
	// not read the stale nack as its own result.
	fc.hold = false
	fc.delayed[0].Ack = false
	fc.ack = true
	if err := p.Publish(context.Background(), "enrichment_failure", nil); err != nil {
		t.Fatalf("expected second publish confirmed, got %v", err)
	}
	if len(fc.confirms) != 0 {
		t.Errorf("expected every confirmation consumed, %d left", len(fc.confirms))
	}
}

func TestPublish_ConfirmsClosed(t *testing.T) {
	confirms := make(chan amqp.Confirmation)
	close(confirms)
	fc := &fakeChannel{confirms: make(chan amqp.Confirmation, 1), ack: true}
	p := &Publisher{ch: fc, queue: "review", confirms: confirms, now: time.Now}

	if err := p.Publish(context.Background(), "enrichment_failure", nil); !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("expected amqp.ErrClosed, got %v", err)
	}
}

func TestEncode_Unencodable(t *testing.T) {
	_, err := encode(Envelope{Kind: "bad", Payload: make(chan int)})
	if err == nil {
		t.Fatal("expected encode error for channel payload")
	}
}

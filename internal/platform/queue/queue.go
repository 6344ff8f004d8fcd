// Package queue publishes JSON messages to a durable RabbitMQ queue with
// publisher confirms.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("message not confirmed by broker")

// Envelope wraps every published payload.
type Envelope struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends messages to a single queue. Publishes are serialized and
// each confirmation is matched to its message by delivery tag.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	queue    string
	confirms <-chan amqp.Confirmation
	mu       sync.Mutex
	// lastTag is the delivery tag of the most recent publish. Tags start at
	// 1 on a channel in confirm mode.
	lastTag uint64
	now     func() time.Time
}

// Dial connects to url, declares the durable queue and enables confirms.
func Dial(url, queueName string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	p, err := NewPublisher(conn, queueName)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func NewPublisher(conn *amqp.Connection, queueName string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	return &Publisher{
		conn:     conn,
		ch:       ch,
		queue:    queueName,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		now:      time.Now,
	}, nil
}

// Publish encodes payload in an Envelope of the given kind and waits for the
// broker to confirm it.
func (p *Publisher) Publish(ctx context.Context, kind string, payload any) error {
	msg, err := encode(Envelope{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	p.lastTag++
	tag := p.lastTag

	for {
		select {
		case c, ok := <-p.confirms:
			if !ok {
				return fmt.Errorf("publish to %s: %w", p.queue, amqp.ErrClosed)
			}
			// Confirmations for earlier tags belong to publishes whose caller
			// stopped waiting.
			if c.DeliveryTag < tag {
				continue
			}
			if !c.Ack {
				return fmt.Errorf("publish to %s: %w", p.queue, ErrNotConfirmed)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("publish to %s: %w", p.queue, ctx.Err())
		}
	}
}

func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func encode(env Envelope) (amqp.Publishing, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode %s message: %w", env.Kind, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Type:         env.Kind,
		Timestamp:    env.OccurredAt,
		Body:         body,
	}, nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const Exchange = "ridebook.bookings"

// AMQP publishes events to a durable topic exchange, routing key = event kind.
type AMQP struct {
	log  *zap.Logger
	url  string
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects with a few retries; the broker may still be starting.
func DialAMQP(ctx context.Context, url string, log *zap.Logger) (*AMQP, error) {
	a := &AMQP{log: log, url: url}
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if err = a.connect(); err == nil {
			log.Info("connected to RabbitMQ")
			return a, nil
		}
		log.Info("RabbitMQ not yet ready", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("amqp dial: %w", err)
}

func (a *AMQP) connect() error {
	conn, err := amqp.Dial(a.url)
	if err != nil {
		return err
	}
	a.conn = conn
	if err := a.openChannel(); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// openChannel replaces the channel on the current connection. A broker
// error closes the channel but may leave the connection up.
func (a *AMQP) openChannel() error {
	ch, err := a.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	a.ch = ch
	return nil
}

func (a *AMQP) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil || a.conn.IsClosed() {
		if err := a.connect(); err != nil {
			return fmt.Errorf("amqp reconnect: %w", err)
		}
	} else if a.ch == nil || a.ch.IsClosed() {
		if err := a.openChannel(); err != nil {
			return fmt.Errorf("amqp reopen channel: %w", err)
		}
	}
	return a.ch.PublishWithContext(ctx, Exchange, string(e.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.DraftID.String(),
		Timestamp:    e.At,
		Body:         body,
	})
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ch != nil {
		a.ch.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

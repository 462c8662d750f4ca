package queue

import (
	"context"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ wraps one AMQP connection used for both publishing transfer
// requests and consuming transfer results. Channels are re-opened lazily
// after broker hiccups.
type RabbitMQ struct {
	url string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Connect dials the broker. The returned client keeps the URL and will
// redial if the connection drops between operations.
func Connect(url string) (*RabbitMQ, error) {
	r := &RabbitMQ{url: url}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureChannel(); err != nil {
		return nil, err
	}

	log.Println("✅ Connected to RabbitMQ")
	return r, nil
}

// ensureChannel must be called with mu held.
func (r *RabbitMQ) ensureChannel() error {
	if r.conn != nil && !r.conn.IsClosed() && r.channel != nil && !r.channel.IsClosed() {
		return nil
	}

	if r.conn == nil || r.conn.IsClosed() {
		conn, err := amqp.Dial(r.url)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		r.conn = conn
	}

	channel, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	r.channel = channel
	return nil
}

// Publish sends one persistent JSON message to a durable queue, declaring
// the queue if the broker does not have it yet.
func (r *RabbitMQ) Publish(ctx context.Context, queue string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureChannel(); err != nil {
		return err
	}

	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume delivers messages from a durable queue to handler until ctx is
// cancelled. Messages are acked after the handler returns; handler errors
// are logged and the message is acked anyway so a poison message cannot
// wedge the queue.
func (r *RabbitMQ) Consume(ctx context.Context, queue string, handler func(body []byte) error) error {
	r.mu.Lock()
	if err := r.ensureChannel(); err != nil {
		r.mu.Unlock()
		return err
	}
	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	deliveries, err := r.channel.Consume(queue, "", false, false, false, false, nil)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to consume from queue %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for queue %s closed", queue)
			}
			if err := handler(delivery.Body); err != nil {
				log.Printf("⚠️ Handler error on queue %s: %v", queue, err)
			}
			if err := delivery.Ack(false); err != nil {
				log.Printf("⚠️ Failed to ack message on queue %s: %v", queue, err)
			}
		}
	}
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil && !r.channel.IsClosed() {
		_ = r.channel.Close()
	}
	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn.Close()
	}
	return nil
}

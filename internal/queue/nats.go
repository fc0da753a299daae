package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/plotfit/plotfit/internal/logging"
)

// NATSConfig represents NATS connection settings
type NATSConfig struct {
	URL      string
	Username string
	Password string
	Name     string // Client name shown in server monitoring (default: plotfit)
}

// NATSQueue implements Queue using NATS core pub/sub, which fans every
// message out to all subscribers
type NATSQueue struct {
	conn          *nats.Conn
	subscriptions map[string]*nats.Subscription
	mu            sync.RWMutex
	logger        *logging.Logger
}

// newNATSQueue connects to NATS
func newNATSQueue(cfg NATSConfig) (*NATSQueue, error) {
	if cfg.Name == "" {
		cfg.Name = "plotfit"
	}

	logger := logging.Global().With("component", "queue", "queue_type", "nats")

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", c.ConnectedUrl())
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newNATSQueueWithConn(conn, logger), nil
}

// newNATSQueueWithConn wraps an existing connection
func newNATSQueueWithConn(conn *nats.Conn, logger *logging.Logger) *NATSQueue {
	return &NATSQueue{
		conn:          conn,
		subscriptions: make(map[string]*nats.Subscription),
		logger:        logger,
	}
}

// Publish publishes a message to a subject
func (q *NATSQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := q.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// PublishBatch queues all messages, then flushes once so the server has
// received them before returning
func (q *NATSQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	successCount := 0
	for _, msg := range messages {
		if err := q.conn.Publish(msg.Subject, msg.Data); err != nil {
			q.logger.Warn("Failed to queue message", "subject", msg.Subject, "error", err)
			continue
		}
		successCount++
	}

	if err := q.conn.FlushWithContext(ctx); err != nil {
		return successCount, fmt.Errorf("failed to flush batch publish: %w", err)
	}
	return successCount, nil
}

// Subscribe subscribes to a subject with a message handler
func (q *NATSQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	sub, err := q.conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			q.logger.Warn("Message handler failed", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	// Make sure the server has registered interest before returning
	if err := q.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	q.subscriptions[subject] = sub
	return nil
}

// Unsubscribe unsubscribes from a subject
func (q *NATSQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, exists := q.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from subject %s: %w", subject, err)
	}

	delete(q.subscriptions, subject)
	return nil
}

// Close drains subscriptions and closes the connection
func (q *NATSQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, sub := range q.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			q.logger.Debug("Unsubscribe on close failed", "subject", subject, "error", err)
		}
		delete(q.subscriptions, subject)
	}

	q.conn.Close()
	return nil
}

// Conn returns the underlying NATS connection
func (q *NATSQueue) Conn() *nats.Conn {
	return q.conn
}

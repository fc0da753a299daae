package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plotfit/plotfit/internal/logging"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig represents Apache Kafka configuration
type KafkaConfig struct {
	Brokers      []string      // Kafka broker addresses
	GroupID      string        // Consumer group prefix; the instance name is appended
	Instance     string        // Instance name (default: hostname-pid)
	BatchSize    int           // Batch size for producer (default: 100)
	BatchTimeout time.Duration // Batch timeout for producer (default: 10ms)
	RequiredAcks int           // Required acks: 0=none, 1=leader, -1=all (default: 1)
	MaxRetries   int           // Max retries on failure (default: 3)
}

// KafkaQueue implements Queue using Apache Kafka. Every instance consumes
// through its own consumer group so that all instances see every message.
type KafkaQueue struct {
	config        KafkaConfig
	writer        *kafka.Writer
	readers       map[string]*kafka.Reader
	subscriptions map[string]*kafkaSubscription
	mu            sync.RWMutex
	logger        *logging.Logger
}

type kafkaSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// newKafkaQueue creates a new Kafka queue instance
func newKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	// Apply defaults
	if cfg.GroupID == "" {
		cfg.GroupID = "plotfit-api"
	}
	if cfg.Instance == "" {
		cfg.Instance = defaultConsumerName()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	// One writer serves every topic; the topic is set per message
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:            cfg.MaxRetries,
		AllowAutoTopicCreation: true,
	}

	return &KafkaQueue{
		config:        cfg,
		writer:        writer,
		readers:       make(map[string]*kafka.Reader),
		subscriptions: make(map[string]*kafkaSubscription),
		logger:        logging.Global().With("component", "queue", "queue_type", "kafka"),
	}, nil
}

// groupID is the per-instance consumer group
func (q *KafkaQueue) groupID() string {
	return q.config.GroupID + "-" + q.config.Instance
}

// Publish publishes a message to a Kafka topic
func (q *KafkaQueue) Publish(ctx context.Context, subject string, data []byte) error {
	err := q.writer.WriteMessages(ctx, kafka.Message{
		Topic: subject,
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", subject, err)
	}
	return nil
}

// PublishBatch publishes multiple messages in one write
func (q *KafkaQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	now := time.Now()
	msgs := make([]kafka.Message, len(messages))
	for i, msg := range messages {
		msgs[i] = kafka.Message{Topic: msg.Subject, Value: msg.Data, Time: now}
	}

	err := q.writer.WriteMessages(ctx, msgs...)
	if err == nil {
		return len(msgs), nil
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		successCount := len(msgs) - writeErrs.Count()
		if successCount > 0 {
			return successCount, nil
		}
	}
	return 0, fmt.Errorf("failed to publish batch: %w", err)
}

// Subscribe consumes a topic, starting from messages produced after the
// instance's group first joined
func (q *KafkaQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        q.config.Brokers,
		GroupID:        q.groupID(),
		Topic:          subject,
		StartOffset:    kafka.LastOffset,
		MinBytes:       1,
		MaxBytes:       1e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sub := &kafkaSubscription{cancel: cancel, done: make(chan struct{})}
	q.readers[subject] = reader
	q.subscriptions[subject] = sub

	go func() {
		defer close(sub.done)
		q.consumeMessages(ctx, reader, handler)
	}()

	return nil
}

// consumeMessages reads messages from Kafka in a loop
func (q *KafkaQueue) consumeMessages(ctx context.Context, reader *kafka.Reader, handler MessageHandler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Warn("Failed to read Kafka message", "topic", reader.Config().Topic, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handler(msg.Value); err != nil {
			q.logger.Warn("Message handler failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// Unsubscribe unsubscribes from a Kafka topic
func (q *KafkaQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	sub, exists := q.subscriptions[subject]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("not subscribed to topic: %s", subject)
	}
	reader := q.readers[subject]
	delete(q.subscriptions, subject)
	delete(q.readers, subject)
	q.mu.Unlock()

	sub.cancel()
	<-sub.done
	return reader.Close()
}

// Close closes all Kafka connections
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	subs := q.subscriptions
	readers := q.readers
	q.subscriptions = make(map[string]*kafkaSubscription)
	q.readers = make(map[string]*kafka.Reader)
	q.mu.Unlock()

	var lastErr error
	for subject, sub := range subs {
		sub.cancel()
		<-sub.done
		if err := readers[subject].Close(); err != nil {
			lastErr = err
		}
	}

	if err := q.writer.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}

// Stats returns writer stats (for monitoring)
func (q *KafkaQueue) Stats() kafka.WriterStats {
	return q.writer.Stats()
}

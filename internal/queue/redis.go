package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/plotfit/plotfit/internal/logging"
	"github.com/redis/go-redis/v9"
)

// RedisConfig represents Redis Streams configuration
type RedisConfig struct {
	URL      string // Redis URL (e.g., redis://localhost:6379)
	Password string // Optional password
	DB       int    // Database number (default: 0)
	Stream   string // Stream prefix (default: "plotfit")
	Group    string // Consumer group prefix (default: "plotfit-group")
	Consumer string // Consumer name (default: hostname-pid)
	MaxLen   int64  // Approximate stream length cap (default: 10000)
}

// RedisQueue implements Queue using Redis Streams. Each instance reads
// through its own consumer group, so every instance sees every message.
type RedisQueue struct {
	client        *redis.Client
	config        RedisConfig
	subscriptions map[string]*redisSubscription
	mu            sync.RWMutex
	logger        *logging.Logger
}

type redisSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// newRedisQueue creates a new Redis Streams queue instance
func newRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	// Parse URL or use defaults
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		// Fallback to simple options
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// Apply defaults
	if cfg.Stream == "" {
		cfg.Stream = "plotfit"
	}
	if cfg.Group == "" {
		cfg.Group = "plotfit-group"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = defaultConsumerName()
	}
	if cfg.MaxLen == 0 {
		cfg.MaxLen = 10000
	}

	return &RedisQueue{
		client:        client,
		config:        cfg,
		subscriptions: make(map[string]*redisSubscription),
		logger:        logging.Global().With("component", "queue", "queue_type", "redis"),
	}, nil
}

// defaultConsumerName identifies this process among instances
func defaultConsumerName() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "consumer"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// streamName converts a subject to a Redis stream name
func (q *RedisQueue) streamName(subject string) string {
	return fmt.Sprintf("%s:%s", q.config.Stream, subject)
}

// groupName is the per-instance consumer group
func (q *RedisQueue) groupName() string {
	return q.config.Group + ":" + q.config.Consumer
}

func (q *RedisQueue) xaddArgs(subject string, data []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.streamName(subject),
		MaxLen: q.config.MaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"data": data,
		},
	}
}

// Publish publishes a message to a Redis stream
func (q *RedisQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := q.client.XAdd(ctx, q.xaddArgs(subject, data)).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", q.streamName(subject), err)
	}
	return nil
}

// PublishBatch publishes multiple messages using Redis pipeline
func (q *RedisQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	pipe := q.client.Pipeline()
	for _, msg := range messages {
		pipe.XAdd(ctx, q.xaddArgs(msg.Subject, msg.Data))
	}

	cmds, err := pipe.Exec(ctx)
	successCount := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			successCount++
		}
	}
	if err != nil && successCount == 0 {
		return 0, fmt.Errorf("failed to execute batch publish: %w", err)
	}
	return successCount, nil
}

// Subscribe reads the subject's stream through this instance's consumer
// group, starting with messages published after the call
func (q *RedisQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	stream := q.streamName(subject)
	ctx, cancel := context.WithCancel(context.Background())

	err := q.client.XGroupCreateMkStream(ctx, stream, q.groupName(), "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		cancel()
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	sub := &redisSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		q.readStream(ctx, stream, handler)
	}()

	q.subscriptions[subject] = sub
	return nil
}

// readStream continuously reads messages from a Redis stream
func (q *RedisQueue) readStream(ctx context.Context, stream string, handler MessageHandler) {
	group := q.groupName()
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: q.config.Consumer,
			Streams:  []string{stream, ">"},
			Count:    100,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.logger.Warn("Failed to read Redis stream", "stream", stream, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				if data, ok := msg.Values["data"].(string); ok {
					if err := handler([]byte(data)); err != nil {
						q.logger.Warn("Message handler failed", "stream", stream, "id", msg.ID, "error", err)
					}
				}
				// Failed messages are acknowledged too; they are not redelivered
				q.client.XAck(ctx, stream, group, msg.ID)
			}
		}
	}
}

// Unsubscribe stops reading and removes this instance's consumer group
func (q *RedisQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	sub, exists := q.subscriptions[subject]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	delete(q.subscriptions, subject)
	q.mu.Unlock()

	sub.cancel()
	<-sub.done
	q.destroyGroup(subject)
	return nil
}

func (q *RedisQueue) destroyGroup(subject string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.client.XGroupDestroy(ctx, q.streamName(subject), q.groupName()).Err(); err != nil {
		q.logger.Debug("Failed to remove consumer group", "subject", subject, "error", err)
	}
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	subs := q.subscriptions
	q.subscriptions = make(map[string]*redisSubscription)
	q.mu.Unlock()

	for subject, sub := range subs {
		sub.cancel()
		<-sub.done
		q.destroyGroup(subject)
	}

	return q.client.Close()
}

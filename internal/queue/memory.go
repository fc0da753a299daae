package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/utils"
)

// MemoryQueue implements Queue with in-process channels.
// Each subscription owns a buffered channel drained by one goroutine, so a
// slow handler only delays its own subject.
type MemoryQueue struct {
	subscriptions map[string]*memorySubscription
	closed        bool
	mu            sync.RWMutex
	logger        *logging.Logger
}

type memorySubscription struct {
	ch     chan []byte
	cancel context.CancelFunc
	done   chan struct{}
}

// newMemoryQueue creates a new in-memory queue instance
func newMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		subscriptions: make(map[string]*memorySubscription),
		logger:        logging.Global().With("component", "queue", "queue_type", "memory"),
	}
}

// Publish hands a copy of data to the subject's subscriber. Messages for a
// subject without a subscriber are dropped.
func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	sub, ok := q.subscriptions[subject]
	if !ok {
		return nil
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	select {
	case sub.ch <- dataCopy:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("channel full for subject: %s", subject)
	}
}

// PublishBatch publishes multiple messages
func (q *MemoryQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	successCount := 0
	var lastErr error

	for _, msg := range messages {
		if err := q.Publish(ctx, msg.Subject, msg.Data); err != nil {
			lastErr = err
			continue
		}
		successCount++
	}

	if lastErr != nil && successCount == 0 && len(messages) > 0 {
		return 0, lastErr
	}
	return successCount, nil
}

// Subscribe starts delivering the subject's messages to handler
func (q *MemoryQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &memorySubscription{
		ch:     make(chan []byte, utils.DefaultBufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	q.subscriptions[subject] = sub

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-sub.ch:
				if err := handler(data); err != nil {
					q.logger.Warn("Message handler failed", "subject", subject, "error", err)
				}
			}
		}
	}()

	return nil
}

// Unsubscribe stops delivery and waits for the consumer goroutine to exit
func (q *MemoryQueue) Unsubscribe(subject string) error {
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
	return nil
}

// Close cancels all subscriptions
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	subs := q.subscriptions
	q.subscriptions = make(map[string]*memorySubscription)
	q.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
	return nil
}

// GetPendingCount returns the number of undelivered messages for a subject
func (q *MemoryQueue) GetPendingCount(subject string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if sub, exists := q.subscriptions[subject]; exists {
		return len(sub.ch)
	}
	return 0
}

package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/plotfit/plotfit/internal/logging"
)

// Test-only helpers exposing the unexported constructors.

func NewNATSQueue(url string) (*NATSQueue, error) {
	return newNATSQueue(NATSConfig{URL: url})
}

func NewNATSQueueWithConn(conn *nats.Conn) *NATSQueue {
	return newNATSQueueWithConn(conn, logging.Global())
}

func NewRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	return newRedisQueue(cfg)
}

func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	return newKafkaQueue(cfg)
}

func NewMemoryQueue() *MemoryQueue {
	return newMemoryQueue()
}

// collector records delivered messages for assertions
type collector struct {
	mu   sync.Mutex
	msgs []string
	ch   chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 1024)}
}

func (c *collector) handle(data []byte) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, string(data))
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

func (c *collector) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

// wait blocks until n messages arrived or the timeout expires
func (c *collector) wait(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-deadline:
			t.Fatalf("Timeout waiting for messages: got %d, want %d", i, n)
		}
	}
}

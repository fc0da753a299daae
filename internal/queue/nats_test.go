package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// setupTestNATS creates an embedded NATS server for testing
func setupTestNATS(t *testing.T) string {
	t.Helper()

	opts := &server.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create NATS server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns.ClientURL()
}

func TestNewNATSQueue(t *testing.T) {
	url := setupTestNATS(t)

	q, err := NewNATSQueue(url)
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	if !q.Conn().IsConnected() {
		t.Error("Expected connection to be established")
	}
	if q.Conn().Opts.Name != "plotfit" {
		t.Errorf("Expected client name plotfit, got %q", q.Conn().Opts.Name)
	}
}

func TestNewNATSQueue_InvalidURL(t *testing.T) {
	q, err := NewNATSQueue("nats://127.0.0.1:1")
	if err == nil {
		_ = q.Close()
		t.Fatal("Expected error with unreachable server")
	}
}

func TestNATSQueue_BroadcastToAllInstances(t *testing.T) {
	url := setupTestNATS(t)

	publisher, err := NewNATSQueue(url)
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}
	defer func() { _ = publisher.Close() }()

	collectors := make([]*collector, 3)
	for i := range collectors {
		q, err := NewNATSQueue(url)
		if err != nil {
			t.Fatalf("Failed to create subscriber %d: %v", i, err)
		}
		defer func() { _ = q.Close() }()

		collectors[i] = newCollector()
		if err := q.Subscribe("plotfit.test", collectors[i].handle); err != nil {
			t.Fatalf("Subscribe %d failed: %v", i, err)
		}
	}

	if err := publisher.Publish(context.Background(), "plotfit.test", []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for i, c := range collectors {
		c.wait(t, 1, 2*time.Second)
		if got := c.messages(); got[0] != "hello" {
			t.Errorf("subscriber %d got %v", i, got)
		}
	}
}

func TestNATSQueue_PublishBatch(t *testing.T) {
	url := setupTestNATS(t)

	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	q := NewNATSQueueWithConn(conn)
	defer func() { _ = q.Close() }()

	c := newCollector()
	if err := q.Subscribe("batch.>", c.handle); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	messages := make([]BatchMessage, 20)
	for i := range messages {
		messages[i] = BatchMessage{Subject: fmt.Sprintf("batch.%d", i), Data: []byte(fmt.Sprint(i))}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := q.PublishBatch(ctx, messages)
	if err != nil {
		t.Fatalf("PublishBatch failed: %v", err)
	}
	if n != len(messages) {
		t.Errorf("Expected %d published, got %d", len(messages), n)
	}

	c.wait(t, len(messages), 5*time.Second)

	n, err = q.PublishBatch(ctx, nil)
	if err != nil || n != 0 {
		t.Errorf("Empty batch = %d, %v", n, err)
	}
}

func TestNATSQueue_Unsubscribe(t *testing.T) {
	url := setupTestNATS(t)

	q, err := NewNATSQueue(url)
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	if err := q.Subscribe("unsub", func([]byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := q.Subscribe("unsub", func([]byte) error { return nil }); err == nil {
		t.Fatal("Expected error for double subscribe")
	}
	if err := q.Unsubscribe("unsub"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := q.Unsubscribe("unsub"); err == nil {
		t.Fatal("Expected error for double unsubscribe")
	}
}

package queue

import "context"

// NoopQueue discards published messages and never delivers any.
// It backs the "none" queue type used by single-instance deployments.
type NoopQueue struct{}

func newNoopQueue() *NoopQueue {
	return &NoopQueue{}
}

func (NoopQueue) Publish(ctx context.Context, subject string, data []byte) error {
	return nil
}

func (NoopQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	return len(messages), nil
}

func (NoopQueue) Subscribe(subject string, handler MessageHandler) error {
	return nil
}

func (NoopQueue) Unsubscribe(subject string) error {
	return nil
}

func (NoopQueue) Close() error {
	return nil
}

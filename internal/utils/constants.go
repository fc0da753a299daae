package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

// HTTP Handler Timeouts
const (
	// DefaultRequestTimeout is the default timeout for HTTP requests
	DefaultRequestTimeout = 30 * time.Second

	// FitTimeout bounds a single regression request, store read included
	FitTimeout = 15 * time.Second

	// EventPublishTimeout is the timeout for publishing a change event
	EventPublishTimeout = 2 * time.Second

	// ShutdownTimeout is how long the API waits for in-flight requests on exit
	ShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Retry and Backoff Constants
// =============================================================================

const (
	// DefaultMaxRetries bounds optimistic-concurrency attempts against a store
	DefaultMaxRetries = 8

	// DefaultRetryBackoff is the ceiling of the first retry wait; it doubles per attempt
	DefaultRetryBackoff = 5 * time.Millisecond

	// MaxRetryBackoff caps a single retry wait
	MaxRetryBackoff = 250 * time.Millisecond
)

// =============================================================================
// Buffer and Batch Size Constants
// =============================================================================

const (
	// DefaultBatchSize is the number of rows an import writes per store call
	DefaultBatchSize = 1000

	// DefaultBufferSize is the default buffer size for channels
	DefaultBufferSize = 1024

	// MaxImportRows is the largest CSV accepted by a single import
	MaxImportRows = 1_000_000
)

// =============================================================================
// Queue Type Constants
// =============================================================================
// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNone disables change events (default)
	QueueTypeNone QueueType = "none"

	// QueueTypeNATS represents NATS core pub/sub
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (single process)
	QueueTypeMemory QueueType = "memory"
)

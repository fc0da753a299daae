// Package events publishes and consumes dataset change notifications.
//
// Every API instance publishes an event after a successful write and listens
// for events from its peers to evict cached regression results.
package events

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/metrics"
	"github.com/plotfit/plotfit/internal/queue"
	"github.com/plotfit/plotfit/internal/utils"
)

// Subject is the queue subject all dataset events are published on
const Subject = "plotfit.datasets.events"

// Type names a change
type Type string

const (
	DatasetCreated Type = "dataset.created"
	DatasetUpdated Type = "dataset.updated"
	DatasetRenamed Type = "dataset.renamed"
	DatasetDeleted Type = "dataset.deleted"
	PointAdded     Type = "point.added"
	PointUpdated   Type = "point.updated"
	PointDeleted   Type = "point.deleted"
	PointsImported Type = "points.imported"
)

// Event describes one committed change
type Event struct {
	Type         Type      `json:"type"`
	Dataset      string    `json:"dataset"`
	PreviousName string    `json:"previous_name,omitempty"` // set for renames
	PointID      int64     `json:"point_id,omitempty"`
	Count        int       `json:"count,omitempty"` // rows written by an import
	Source       string    `json:"source"`          // publishing instance
	Time         time.Time `json:"time"`
}

// Datasets returns the dataset names whose cached state the event invalidates
func (e Event) Datasets() []string {
	if e.PreviousName != "" && e.PreviousName != e.Dataset {
		return []string{e.Dataset, e.PreviousName}
	}
	return []string{e.Dataset}
}

// Handler processes an event received from a peer
type Handler func(Event)

// Bus publishes events for this instance and delivers peer events
type Bus struct {
	q        queue.Queue
	source   string
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time

	mu       sync.Mutex // guards listened across Listen and Close
	listened bool
}

// NewBus wraps q. m may be nil.
func NewBus(q queue.Queue, m *metrics.Metrics, logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Global()
	}
	return &Bus{
		q:       q,
		source:  newSourceID(),
		metrics: m,
		logger:  logger.With("component", "events"),
		now:     time.Now,
	}
}

func newSourceID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "plotfit"
	}
	return hostname + "-" + uuid.NewString()[:8]
}

// Source identifies this instance in published events
func (b *Bus) Source() string {
	return b.source
}

// Publish stamps and sends e. Failures are logged and returned; callers
// treat them as non-fatal because the write has already committed.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b == nil {
		return nil
	}

	e.Source = b.source
	if e.Time.IsZero() {
		e.Time = b.now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		b.metrics.ObserveEvent(string(e.Type), err)
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, utils.EventPublishTimeout)
	defer cancel()

	err = b.q.Publish(ctx, Subject, data)
	b.metrics.ObserveEvent(string(e.Type), err)
	if err != nil {
		b.logger.Warn("Failed to publish dataset event",
			"type", string(e.Type),
			"dataset", e.Dataset,
			"error", err)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Listen delivers events published by other instances to handler.
// Events this bus published itself are skipped.
func (b *Bus) Listen(handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listened {
		return fmt.Errorf("already listening on %s", Subject)
	}

	err := b.q.Subscribe(Subject, func(data []byte) error {
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if e.Source == b.source {
			return nil
		}
		b.logger.Debug("Received dataset event",
			"type", string(e.Type),
			"dataset", e.Dataset,
			"source", e.Source)
		handler(e)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Subject, err)
	}

	b.listened = true
	return nil
}

// Close stops listening and closes the underlying queue
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listened {
		if err := b.q.Unsubscribe(Subject); err != nil {
			b.logger.Debug("Unsubscribe failed", "error", err)
		}
		b.listened = false
	}
	return b.q.Close()
}

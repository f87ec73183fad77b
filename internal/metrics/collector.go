package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCallSucceeded EventType = "call_succeeded"
	EventCallFailed    EventType = "call_failed"
	EventCallRejected  EventType = "call_rejected"
	EventStateChanged  EventType = "state_changed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Dependency string
	Duration   time.Duration
	State      string
}

type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

// Emit sends an event without blocking. Events are dropped when the buffer
// is full so the call path never stalls on metrics.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventCallSucceeded:
		c.metrics.RecordSuccess(event.Dependency, event.Duration)

	case EventCallFailed:
		c.metrics.RecordFailure(event.Dependency)

	case EventCallRejected:
		c.metrics.RecordRejection(event.Dependency)

	case EventStateChanged:
		c.metrics.RecordTransition(event.Dependency, event.State)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}

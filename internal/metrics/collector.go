package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/LJAM96/lmsilo-core/internal/circuitbreaker"
)

type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventCallSuccess  EventType = "call_success"
	EventCallFailure  EventType = "call_failure"
	EventCallRejected EventType = "call_rejected"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Circuit   string
	From      string
	To        string
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

// Emit sends an event without blocking; events are dropped when the
// buffer is full.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

// Observers returns breaker options that report the named circuit's hook
// events to this collector. The breaker itself emits nothing; attaching
// these is the caller's choice.
func (c *Collector) Observers(circuit string) []circuitbreaker.Option {
	return []circuitbreaker.Option{
		circuitbreaker.WithOnStateChange(func(from, to circuitbreaker.State) {
			c.Emit(Event{
				Type:      EventStateChanged,
				Timestamp: time.Now(),
				Circuit:   circuit,
				From:      from.String(),
				To:        to.String(),
			})
		}),
		circuitbreaker.WithOnSuccess(func() {
			c.Emit(Event{Type: EventCallSuccess, Timestamp: time.Now(), Circuit: circuit})
		}),
		circuitbreaker.WithOnFailure(func(err error) {
			c.Emit(Event{Type: EventCallFailure, Timestamp: time.Now(), Circuit: circuit})
		}),
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
	case EventStateChanged:
		c.metrics.RecordTransition(event.Circuit, event.From, event.To)

	case EventCallSuccess:
		c.metrics.RecordSuccess(event.Circuit)

	case EventCallFailure:
		c.metrics.RecordFailure(event.Circuit)

	case EventCallRejected:
		c.metrics.RecordRejection(event.Circuit)
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

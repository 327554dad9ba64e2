// Package events provides an in-process dispatcher for post-publish side
// effects. Handlers run asynchronously; a failed handler is logged and never
// propagates back to the publisher.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topic identifies a class of event.
type Topic string

const (
	// TopicHottestRefresh asks the scorer to recompute the hottest unit.
	TopicHottestRefresh Topic = "hottest.refresh"
	// TopicValidateUnits asks the validator to re-scan for anomalies.
	TopicValidateUnits Topic = "anomaly.validate"
)

// Event carries a topic and the development it concerns. Snapshot holds the
// pre-publish unit prices when the producer has them; validators fall back to
// an empty snapshot otherwise.
type Event struct {
	Topic    Topic
	DevID    string
	Snapshot map[string]float64
}

// Handler processes a single event.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher fans events out to registered handlers on a background worker.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler

	closeMu sync.RWMutex
	closed  bool
	ch      chan Event
	done    chan struct{}

	timeout time.Duration
}

// NewDispatcher creates a dispatcher with the given queue depth and starts its
// worker. A depth of 0 falls back to 64.
func NewDispatcher(depth int) *Dispatcher {
	if depth <= 0 {
		depth = 64
	}
	d := &Dispatcher{
		handlers: make(map[Topic][]Handler),
		ch:       make(chan Event, depth),
		done:     make(chan struct{}),
		timeout:  30 * time.Second,
	}
	go d.run()
	return d
}

// Subscribe registers a handler for a topic.
func (d *Dispatcher) Subscribe(topic Topic, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = append(d.handlers[topic], h)
}

// Publish enqueues an event. It never blocks: when the queue is full the
// event is dropped with a warning, since every subscriber can rebuild its
// state from the store on the next explicit request.
func (d *Dispatcher) Publish(ev Event) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		zap.L().Warn("events: dispatcher closed, event dropped",
			zap.String("topic", string(ev.Topic)),
			zap.String("dev_id", ev.DevID),
		)
		return
	}
	select {
	case d.ch <- ev:
	default:
		zap.L().Warn("events: queue full, event dropped",
			zap.String("topic", string(ev.Topic)),
			zap.String("dev_id", ev.DevID),
		)
	}
}

// Close stops accepting events, drains the queue, and waits for the worker.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.closeMu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.ch {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.mu.RLock()
	handlers := d.handlers[ev.Topic]
	d.mu.RUnlock()

	for _, h := range handlers {
		err := d.invoke(h, ev)
		if err != nil {
			// One retry covers transient store contention. It gets its own
			// deadline: when the first attempt died of the timeout, reusing
			// that context would fail the retry before the handler runs.
			err = d.invoke(h, ev)
		}
		if err != nil {
			zap.L().Error("events: handler failed",
				zap.String("topic", string(ev.Topic)),
				zap.String("dev_id", ev.DevID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) invoke(h Handler, ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return h(ctx, ev)
}

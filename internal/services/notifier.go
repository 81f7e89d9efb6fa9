package services

import (
	"context"
	"sync"
	"time"

	"shuttle-ticket/internal/broadcast"
	"shuttle-ticket/internal/logger"
	"shuttle-ticket/monitoring"
)

const (
	defaultBroadcastTimeout = 3 * time.Second
	notifyQueueSize         = 1024
)

type outgoing struct {
	topic   string
	event   string
	payload any
}

// Notifier publishes trip events from one background worker, so events
// reach the sink in the order they were raised. Delivery failures are logged
// and never affect the operation that produced the event.
type Notifier struct {
	publisher broadcast.Publisher
	timeout   time.Duration
	log       logger.Logger
	monitor   *monitoring.Monitor

	mu      sync.Mutex
	closed  bool
	queue   chan outgoing
	pending sync.WaitGroup
	done    chan struct{}
}

func NewNotifier(publisher broadcast.Publisher, timeout time.Duration, log logger.Logger, monitor *monitoring.Monitor) *Notifier {
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	if timeout <= 0 {
		timeout = defaultBroadcastTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}

	n := &Notifier{
		publisher: publisher,
		timeout:   timeout,
		log:       log,
		monitor:   monitor,
		queue:     make(chan outgoing, notifyQueueSize),
		done:      make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues an event without blocking. When the queue is full or the
// notifier is closed the event is dropped.
func (n *Notifier) Notify(topic, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		n.log.Warn("broadcast dropped, notifier closed", "topic", topic, "event", event)
		return
	}

	n.pending.Add(1)
	select {
	case n.queue <- outgoing{topic: topic, event: event, payload: payload}:
	default:
		n.pending.Done()
		n.log.Warn("broadcast queue full, dropping event", "topic", topic, "event", event)
		n.monitor.TrackBroadcastFailure(event)
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		n.publish(msg)
		n.pending.Done()
	}
}

func (n *Notifier) publish(msg outgoing) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.publisher.Publish(ctx, msg.topic, msg.event, msg.payload); err != nil {
		n.log.Warn("broadcast failed",
			"topic", msg.topic,
			"event", msg.event,
			"breaker_open", broadcast.IsBreakerOpen(err),
			"error", err,
		)
		n.monitor.TrackBroadcastFailure(msg.event)
	}
}

// Wait blocks until every queued event has been published or has failed.
func (n *Notifier) Wait() {
	n.pending.Wait()
}

// Close stops accepting events and returns once the queue is drained.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

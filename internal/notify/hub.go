// README: In-process publish/subscribe hub keyed by topic.
package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"mechanico/internal/observability"
)

const (
	defaultBuffer    = 32
	defaultSinkQueue = 256
)

// Sink receives every published event, e.g. to forward it to a broker.
type Sink interface {
	Name() string
	Write(ctx context.Context, e Event) error
}

// Subscription delivers events for a single topic. C is closed by Unsubscribe
// or Hub.Close.
type Subscription struct {
	Topic string
	C     <-chan Event

	ch     chan Event
	closed bool
}

// sinkWorker drains a bounded queue into one sink on its own goroutine.
type sinkWorker struct {
	sink  Sink
	queue chan Event
}

// Hub fans events out to topic subscribers and sinks without blocking the
// publisher. When a subscriber buffer or a sink queue is full the event is
// dropped for that receiver, so delivery is at most once.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	workers []*sinkWorker
	wg      sync.WaitGroup
	buffer  int
	log     logrus.FieldLogger
	closed  bool
}

func NewHub(log logrus.FieldLogger, sinks ...Sink) *Hub {
	return newHubWithQueue(log, defaultSinkQueue, sinks...)
}

func newHubWithQueue(log logrus.FieldLogger, queue int, sinks ...Sink) *Hub {
	h := &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: defaultBuffer,
		log:    log,
	}
	for _, s := range sinks {
		w := &sinkWorker{sink: s, queue: make(chan Event, queue)}
		h.workers = append(h.workers, w)
		h.wg.Add(1)
		go h.drain(w)
	}
	return h
}

func (h *Hub) drain(w *sinkWorker) {
	defer h.wg.Done()
	for e := range w.queue {
		if err := w.sink.Write(context.Background(), e); err != nil {
			observability.SinkErrors.WithLabelValues(w.sink.Name()).Inc()
			h.log.WithError(err).WithFields(logrus.Fields{
				"sink":  w.sink.Name(),
				"topic": e.Topic,
			}).Warn("event sink write failed")
		}
	}
}

func (h *Hub) Subscribe(topic string) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{Topic: topic, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		sub.closed = true
		return sub
	}
	set, ok := h.subs[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[topic] = set
	}
	set[sub] = struct{}{}
	observability.Subscribers.Inc()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	if set, ok := h.subs[sub.Topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.Topic)
		}
	}
	sub.closed = true
	close(sub.ch)
	observability.Subscribers.Dec()
}

// Publish never blocks on subscribers or sinks. Sink writes happen on the
// sink's own goroutine; failures are logged and counted, never returned.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil
	}
	for sub := range h.subs[e.Topic] {
		select {
		case sub.ch <- e:
		default:
			observability.EventsDropped.Inc()
		}
	}
	observability.EventsPublished.WithLabelValues(string(e.Type)).Inc()

	for _, w := range h.workers {
		select {
		case w.queue <- e:
		default:
			observability.SinkErrors.WithLabelValues(w.sink.Name()).Inc()
			h.log.WithFields(logrus.Fields{
				"sink":  w.sink.Name(),
				"topic": e.Topic,
			}).Warn("event sink queue full, event dropped")
		}
	}
	return nil
}

// Close ends every subscription, then waits for sink queues to drain.
// It is safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if !h.closed {
		for _, set := range h.subs {
			for sub := range set {
				h.removeLocked(sub)
			}
		}
		for _, w := range h.workers {
			close(w.queue)
		}
		h.closed = true
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// SubscriberCount reports the live subscriptions on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/service"
)

// Subscriber receives events for the topics it is subscribed to. The channel
// is buffered; a subscriber that cannot keep up loses events rather than
// blocking the publisher.
type Subscriber struct {
	events chan models.Event
	once   sync.Once
}

// Events exposes the subscriber's receive channel.
func (s *Subscriber) Events() <-chan models.Event {
	return s.events
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub is the in-process topic registry bridging the enrollment core to
// connected clients. It implements service.EventPublisher.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Subscriber]struct{}
	buffer  int
	metrics *service.MetricsService
	logger  *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(buffer int, metrics *service.MetricsService, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics:  make(map[string]map[*Subscriber]struct{}),
		buffer:  buffer,
		metrics: metrics,
		logger:  logger,
	}
}

// NewSubscriber allocates a subscriber not yet attached to any topic.
func (h *Hub) NewSubscriber() *Subscriber {
	return &Subscriber{events: make(chan models.Event, h.buffer)}
}

// Subscribe attaches the subscriber to the given topics.
func (h *Hub) Subscribe(sub *Subscriber, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		set, ok := h.topics[topic]
		if !ok {
			set = make(map[*Subscriber]struct{})
			h.topics[topic] = set
		}
		set[sub] = struct{}{}
	}
}

// Unsubscribe detaches the subscriber from the given topics.
func (h *Hub) Unsubscribe(sub *Subscriber, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		h.detach(sub, topic)
	}
}

// Remove detaches the subscriber from every topic and closes its channel.
// Called on connection loss; it is the whole cleanup.
func (h *Hub) Remove(sub *Subscriber) {
	h.mu.Lock()
	for topic := range h.topics {
		h.detach(sub, topic)
	}
	h.mu.Unlock()
	sub.close()
}

// Publish fans the event out to every subscriber of its topic. Slow
// subscribers drop the event.
func (h *Hub) Publish(event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[event.Topic] {
		select {
		case sub.events <- event:
		default:
			h.metrics.RecordDroppedEvent()
			h.logger.Debug("event dropped for slow subscriber",
				zap.String("topic", event.Topic),
				zap.String("type", string(event.Type)))
		}
	}
}

// SubscriberCount reports how many subscribers a topic currently has.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) detach(sub *Subscriber, topic string) {
	set, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.topics, topic)
	}
}

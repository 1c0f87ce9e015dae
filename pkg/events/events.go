package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
	"github.com/cuemby/docstream/pkg/types"
)

// Filter selects which events a subscription receives. Zero values match
// everything; a DocumentID filter subscribes to that document's room.
type Filter struct {
	Topic      types.EventType
	DocumentID string
}

// Subscription is a handle to an event stream
type Subscription struct {
	ID     string
	C      <-chan *types.LifecycleEvent
	filter Filter
	ch     chan *types.LifecycleEvent
}

// Bus fans lifecycle events out to subscribers. Delivery is
// at-least-once; per-document ordering is preserved via a monotonic
// sequence assigned at publish time. Subscribers that fall behind their
// buffer are dropped rather than stalling publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription

	seqMu     sync.Mutex
	sequences map[string]uint64

	eventCh chan *types.LifecycleEvent
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  zerolog.Logger
}

const (
	busBuffer        = 256
	subscriberBuffer = 64
)

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscription),
		sequences:   make(map[string]uint64),
		eventCh:     make(chan *types.LifecycleEvent, busBuffer),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      log.WithComponent("events"),
	}
}

// Start begins the bus's distribution loop
func (b *Bus) Start() {
	go b.run()
}

// Stop stops the bus
func (b *Bus) Stop() {
	close(b.stopCh)
	<-b.doneCh
}

// Subscribe creates a new subscription matching the filter
func (b *Bus) Subscribe(filter Filter) *Subscription {
	ch := make(chan *types.LifecycleEvent, subscriberBuffer)
	sub := &Subscription{
		ID:     uuid.New().String(),
		C:      ch,
		filter: filter,
		ch:     ch,
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription and closes its channel
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

func (b *Bus) removeLocked(id string) {
	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Publish emits an event for a document. The per-document sequence is
// assigned before the event enters the dispatch channel, so two events
// for the same document can never be observed out of order.
func (b *Bus) Publish(topic types.EventType, documentID string, payload map[string]any) {
	b.seqMu.Lock()
	b.sequences[documentID]++
	event := &types.LifecycleEvent{
		Type:       topic,
		DocumentID: documentID,
		Sequence:   b.sequences[documentID],
		EmittedAt:  time.Now(),
		Payload:    payload,
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
	b.seqMu.Unlock()

	metrics.EventsPublished.WithLabelValues(string(topic)).Inc()
}

// Broadcast emits an event with no document room, delivered to every
// matching topic subscriber
func (b *Bus) Broadcast(topic types.EventType, payload map[string]any) {
	b.Publish(topic, "", payload)
}

// SubscriberCount returns the number of active subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) run() {
	defer close(b.doneCh)
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			// Drain events already accepted before stopping
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event *types.LifecycleEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		if !matches(sub.filter, event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber buffer full: drop the subscriber, not the event
			b.logger.Warn().Str("subscription_id", id).Msg("dropping slow subscriber")
			metrics.EventsDropped.Inc()
			b.removeLocked(id)
		}
	}
}

// matches reports whether an event satisfies a subscription filter.
// Document events fan out to both the global topic channel and the
// matching document room.
func matches(filter Filter, event *types.LifecycleEvent) bool {
	if filter.Topic != "" && filter.Topic != event.Type {
		return false
	}
	if filter.DocumentID != "" && filter.DocumentID != event.DocumentID {
		return false
	}
	return true
}

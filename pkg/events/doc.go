/*
Package events provides the in-process lifecycle event bus for docstream.

Every document mutation and processing milestone publishes a LifecycleEvent.
Subscribers attach with a filter (a topic, a document room, or both) and
receive matching events on a buffered channel. Delivery order follows a
per-document monotonic sequence number.

# Architecture

	┌─────────────────── EVENT BUS ───────────────────┐
	│                                                  │
	│  Publish(type, docID, payload)                   │
	│      │  assigns per-document sequence            │
	│      ▼                                           │
	│  ┌───────────┐      ┌──────────────────┐        │
	│  │  bus chan  │─────▶│ dispatcher        │        │
	│  │  (256)     │      │ (one goroutine)   │        │
	│  └───────────┘      └────────┬─────────┘        │
	│                               │ match filters    │
	│              ┌────────────────┼───────────────┐  │
	│              ▼                ▼               ▼  │
	│        ┌──────────┐    ┌──────────┐   ┌─────────┐│
	│        │ room sub  │    │ topic sub │   │ all sub ││
	│        │ (64 buf)  │    │ (64 buf)  │   │ (64 buf)││
	│        └──────────┘    └──────────┘   └─────────┘│
	└─────────────────────────────────────────────────┘

# Ordering

Sequence numbers are assigned per document under a lock that also performs
the send into the bus channel, so two events for the same document can never
arrive reordered. Events for different documents have no ordering relation.

# Slow Subscribers

A subscriber whose buffer is full when the dispatcher tries to deliver is
dropped: its channel is closed and it must resubscribe. This keeps one stuck
consumer from stalling the pipeline. Subscribers that need every event
should drain promptly or buffer on their side.

# Topics

	document:created       new document persisted
	document:updated       state or content changed
	document:deleted       soft or hard delete
	processing:progress    percentage milestones during processing
	system:notification    broadcast, no document room

# Usage

	bus := events.NewBus()
	bus.Start()
	defer bus.Stop()

	sub := bus.Subscribe(events.Filter{DocumentID: docID})
	defer bus.Unsubscribe(sub.ID)

	for event := range sub.C {
		fmt.Println(event.Type, event.Sequence, event.Payload)
	}

# See Also

  - pkg/types - LifecycleEvent and topic constants
  - pkg/processor - the main publisher
*/
package events

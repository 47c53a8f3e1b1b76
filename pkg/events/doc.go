/*
Package events provides an in-memory event broker for Switchboard's pub/sub messaging.

The events package implements a lightweight event bus for broadcasting
routing and lifecycle events to interested subscribers. It supports
asynchronous delivery over buffered channels, keeping components loosely
coupled: the router, correlator, registry and reaper publish without
knowing who, if anyone, listens.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                  │          │
	│  │  - In-memory message bus                   │          │
	│  │  - Topic-agnostic (all events broadcast)   │          │
	│  │  - Non-blocking publish                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                │          │
	│  │                                            │          │
	│  │  Publisher → Event Channel (buffer: 100)   │          │
	│  │       ↓                                    │          │
	│  │  Broadcast Loop                            │          │
	│  │       ↓                                    │          │
	│  │  Subscriber Channels (buffer: 50 each)     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                      │          │
	│  │                                            │          │
	│  │  Routing:   route.completed/rejected,      │          │
	│  │             claim.announced                │          │
	│  │  Commands:  command.completed/failed/      │          │
	│  │             timeout/interrupted            │          │
	│  │  Registry:  registry.triplet_created       │          │
	│  │  Reaper:    reaper.queue_deleted,          │          │
	│  │             reaper.owner_flipped           │          │
	│  └────────────────────────────────────────────┘          │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

Delivery is best-effort: a subscriber whose buffer is full misses events
rather than stalling the broadcast loop. The daemon attaches a
LoggingSubscriber so every event is at least logged.
*/
package events

// Package broadcast fans credential lifecycle events out to subscribers.
//
// The orchestrator publishes an Event whenever a credential's status changes,
// when initial setup completes, and when a credential is regenerated. The
// HTTP server relays subscriptions over SSE and WebSocket, and natsbridge
// forwards them to a NATS subject.
//
// Delivery is best effort: each subscriber has a buffer of
// SubscriberBufferSize events and a full buffer drops the event for that
// subscriber. Dropped reports the running total.
package broadcast

// Package natsbridge relays credential lifecycle events to NATS.
//
// A Forwarder subscribes to the broadcaster like any other listener and
// publishes each event as JSON on one subject. Messages carry x-event-id,
// x-event-type, x-host and x-timestamp headers.
package natsbridge

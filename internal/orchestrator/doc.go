// Package orchestrator drives printer credentials through their pairing
// lifecycle.
//
// Setup runs once: it pings the store, probes every configured host, loads
// a stored credential or pairs a new one for each reachable host, and checks
// them all. Run then repeats the same probe, reconcile and check steps every
// Interval. Each step fans out one worker per host and joins them before the
// next step begins, so a pass takes as long as its slowest device rather than
// the sum of all of them.
//
// A failure on one host is logged and retried next cycle; it never stops
// the others. During Setup a store failure is fatal.
//
// Status changes are recorded in the registry, persisted, and published as
// broadcast events. A check result is discarded if the host's credential was
// replaced while the check was in flight.
package orchestrator

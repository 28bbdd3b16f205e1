// Package server exposes the orchestrator over HTTP.
//
// Routes:
//
//	GET  /health                              liveness
//	GET  /health/ready                        503 until setup completes
//	GET  /api/credentials                     all credentials and unpaired hosts
//	GET  /api/credentials/{host}              one credential
//	POST /api/credentials/{host}/regenerate   request a replacement credential
//	GET  /api/events                          Server-Sent Events stream
//	GET  /ws                                  WebSocket event stream
//	GET  /metrics                             Prometheus metrics, when enabled
//
// /api/ and /ws require a Bearer JWT when a verifier is configured.
// Credential secrets are never returned.
package server

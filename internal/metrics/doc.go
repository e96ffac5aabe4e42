// Package metrics exposes Prometheus collectors for frames received, events
// applied, outputs published, socket connections and REST calls.
//
// Collectors are registered on a private registry and served by Handler, so
// tests and multiple sessions never collide on the global registry.
package metrics

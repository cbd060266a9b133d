// Package internal documents the Event Hive client internals.
//
// The internal tree is organized by responsibility:
// - session: per-domain bearer tokens, claims decoding, storage backends
// - gateway: the single HTTP chokepoint to the API
// - catalog, submission, signin: the flows pages drive
// - problem: the closed error taxonomy pages render
// - config, metrics, telemetry, sanitize: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal

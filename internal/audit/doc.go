// Package audit implements async event dispatching for session changes.
//
// # Components
//
//   - [Sink] is the event consumer interface (channel, JSON writer, slog, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is the structured record: timestamp, type, user, request ID, resulting state, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the Controller and the flow functions do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import donorAuth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit

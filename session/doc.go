// Package session holds the client-side session model and the reactive
// in-process store that the controller writes and the application reads.
//
// # Architecture boundaries
//
// This package owns [Store] and the value types ([Profile], [IdentityUser],
// [Snapshot]). It does NOT talk to the backend or the identity provider and
// does not decide when the session changes; the controller in the root
// package is its only writer.
//
// # What this package must NOT do
//
//   - Import donorAuth, backend, or identity (no upward imports).
//   - Persist anything beyond the process lifetime.
//   - Hand out pointers into its internal state.
package session

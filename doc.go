// Package donorAuth keeps the blood-donation platform's client session: who
// is signed in, with which role and status, and whether that is still being
// worked out.
//
// A [Controller] is built once through [Builder.Build] and is the only writer
// of the session. It talks to two remotes: an [IdentityProvider] that stores
// and verifies credentials and carries display metadata, and a [Backend] that
// owns the durable profile. The backend profile decides authorization; the
// identity handle is secondary.
//
// # Architecture boundaries
//
// donorAuth is the public surface. It exposes [Controller], [Builder],
// [Config], the session value types, typed errors and audit/metrics plumbing.
// Operation ordering lives in internal/flows and input checks in
// internal/forms; neither is exported.
//
// # What this package must NOT do
//
//   - Retry a remote call. Each operation attempts each remote exactly once.
//   - Let the identity provider authenticate a session on its own.
//   - Import backend or identity (both import this package for its errors).
//
// # Session lifecycle
//
// A new Controller is Unknown and loading. [Controller.Start] asks the backend
// who is signed in and ends Authenticated or Anonymous; Loading then stays
// false. Register and Login move to Authenticated, Logout and a failed
// reconciliation move to Anonymous. Observers registered with
// [Controller.Subscribe] are called synchronously after every change.
package donorAuth

// Package flows contains the orchestrators behind every Controller operation.
//
// Each flow function (RunRegister, RunLogin, RunLogout, RunUpdateProfile,
// RunRefreshProfile, RunReconcile) takes a typed dependency struct and
// reaches the identity provider, the backend and the session store only
// through it. The ordering rules live here: within one operation the
// identity-provider call completes before the backend call starts, and a
// failed remote call is never retried.
//
// # Architecture boundaries
//
// Flows decide what to call and in which order. They do not own the store,
// the providers, the audit dispatcher or the metrics; the Controller does.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import donorAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency funcs.
package flows

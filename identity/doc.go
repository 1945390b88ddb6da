// Package identity provides identity-provider implementations for the session
// controller.
//
// An identity provider stores and verifies credentials and carries optional
// display metadata. It is secondary to the backend: the backend profile decides
// role and status, the identity handle only proves the credential.
//
// Three implementations are provided:
//
//   - [MemoryProvider] keeps accounts in process. Useful for tests and demos.
//   - [RedisProvider] keeps accounts as Redis hashes and fans auth-state changes
//     out over Redis pub/sub, so an administrative disable reaches every
//     process holding that user.
//   - [NoopProvider] accepts everything and is meant for backend-only
//     deployments.
//
// Passwords are stored as argon2id PHC strings and every successful sign-in
// returns a signed ID token that [MemoryProvider.VerifyIDToken] and
// [RedisProvider.VerifyIDToken] can check.
package identity

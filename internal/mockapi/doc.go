// Package mockapi serves an in-memory copy of the platform REST API: the
// auth and profile endpoints the session controller talks to. Tests run it
// through httptest and cmd/donorauth-mockapi serves it for local work.
package mockapi

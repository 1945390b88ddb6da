// Package backend is the REST client for the blood-donation platform API.
//
// [Client] implements donorAuth.Backend. It keeps the backend's session
// cookie in its own cookie jar, sends an X-Request-ID with every call and
// turns non-2xx answers into *APIError values that match donorAuth.ErrBackend
// (and ErrUnauthenticated or ErrForbidden for 401 and 403).
package backend

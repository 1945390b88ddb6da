// Package jwt issues and verifies the ID tokens that identity providers hand
// to the session controller.
package jwt

// Package forms performs local, pre-network validation of registration,
// login, and profile-update input.
//
// Problems are reported as a field → message map; callers wrap them in the
// public validation error. Nothing here talks to the network.
package forms

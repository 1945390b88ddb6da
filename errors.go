package donorAuth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation is returned when local, pre-network checks reject the input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned for a wrong password or unknown account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityConflict is returned when the identity provider already holds the email.
	ErrIdentityConflict = errors.New("email already registered")
	// ErrAccountDisabled is returned when the identity provider or backend reports the account disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrBackend covers any non-2xx response or transport failure from the backend.
	ErrBackend = errors.New("backend request failed")
	// ErrPartialRegistration is returned when the identity account was created
	// but the backend registration failed. It also matches [ErrBackend].
	ErrPartialRegistration = errors.New("registration incomplete: identity created, backend record missing")
	// ErrIdentityProvider covers identity-provider failures that are not credential errors.
	ErrIdentityProvider = errors.New("identity provider unavailable")
	// ErrUnauthenticated is returned when an operation needs a session and there is none,
	// and by backends for a 401.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when the current profile lacks the required role,
	// and by backends for a 403.
	ErrForbidden = errors.New("forbidden")
	// ErrAccountBlocked is returned by [Controller.Authorize] for blocked profiles.
	ErrAccountBlocked = errors.New("account blocked")
	// ErrControllerNotReady is returned when a Controller was not produced by [Builder.Build].
	ErrControllerNotReady = errors.New("controller not initialized")
)

// ValidationError lists the fields rejected by local validation. It matches
// [ErrValidation] through errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// partialRegistrationError keeps the backend cause reachable while matching
// both ErrPartialRegistration and ErrBackend.
type partialRegistrationError struct {
	cause error
}

func (e *partialRegistrationError) Error() string {
	if e.cause == nil {
		return ErrPartialRegistration.Error()
	}
	return fmt.Sprintf("%s: %v", ErrPartialRegistration.Error(), e.cause)
}

func (e *partialRegistrationError) Unwrap() []error {
	errs := []error{ErrPartialRegistration, ErrBackend}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// OperationError names the controller operation that failed.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

const (
	msgValidation          = "please check the highlighted fields and try again"
	msgInvalidCredentials  = "incorrect email or password"
	msgIdentityConflict    = "email already registered, try logging in instead"
	msgAccountDisabled     = "this account has been disabled"
	msgPartialRegistration = "your account was created but setup did not finish, please log in to complete it"
	msgBackend             = "server unreachable, try again"
	msgIdentityProvider    = "sign-in service unavailable, try again"
	msgUnauthenticated     = "please log in to continue"
	msgForbidden           = "you do not have access to this section"
	msgAccountBlocked      = "your account has been blocked"
	msgGeneric             = "operation failed"
)

// UserMessage maps err to a short, user-facing message. Raw transport and
// backend error text is never returned.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return msgValidation
	case errors.Is(err, ErrPartialRegistration):
		return msgPartialRegistration
	case errors.Is(err, ErrIdentityConflict):
		return msgIdentityConflict
	case errors.Is(err, ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return msgAccountDisabled
	case errors.Is(err, ErrAccountBlocked):
		return msgAccountBlocked
	case errors.Is(err, ErrForbidden):
		return msgForbidden
	case errors.Is(err, ErrUnauthenticated):
		return msgUnauthenticated
	case errors.Is(err, ErrBackend):
		return msgBackend
	case errors.Is(err, ErrIdentityProvider):
		return msgIdentityProvider
	default:
		return msgGeneric
	}
}

package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bloodlink/donorauth/internal/forms"
	"github.com/bloodlink/donorauth/session"
)

// Deps groups flow dependency sets. The root controller builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Register  RegisterDeps
	Login     LoginDeps
	Logout    LogoutDeps
	Profile   ProfileDeps
	Reconcile ReconcileDeps
}

// SessionStore is the write surface of session.Store used by flows.
type SessionStore interface {
	Snapshot() session.Snapshot
	SetAuthenticated(profile session.Profile, identity *session.IdentityUser) session.Snapshot
	MarkStale() session.Snapshot
	Clear() session.Snapshot
	Resolve(profile *session.Profile) session.Snapshot
}

// Metrics carries metric IDs used by flows.
type Metrics struct {
	RegisterSuccess         int
	RegisterFailure         int
	RegisterPartial         int
	LoginSuccess            int
	LoginFailure            int
	Logout                  int
	LogoutRemoteFailure     int
	ProfileUpdateSuccess    int
	ProfileUpdateFailure    int
	ProfileRefreshFailure   int
	ReconcileAuthenticated  int
	ReconcileAnonymous      int
	ReconcileFailure        int
	IdentityMetadataFailure int
	IdentitySubscribeFailed int
}

// Events carries audit event names used by flows.
type Events struct {
	RegisterSuccess        string
	RegisterFailure        string
	RegisterPartial        string
	LoginSuccess           string
	LoginFailure           string
	Logout                 string
	ProfileUpdateSuccess   string
	ProfileUpdateFailure   string
	ProfileRefreshFailure  string
	ReconcileAuthenticated string
	ReconcileAnonymous     string
	ReconcileFailure       string
}

// Errors carries host-level sentinel errors and constructors.
type Errors struct {
	NotReady            error
	Validation          error
	InvalidCredentials  error
	IdentityConflict    error
	AccountDisabled     error
	IdentityProvider    error
	Backend             error
	Unauthenticated     error
	Forbidden           error
	Invalid             func(problems map[string]string) error
	PartialRegistration func(cause error) error
}

// Hooks are the observability callbacks shared by every flow.
type Hooks struct {
	Now            func() time.Time
	MetricInc      func(int)
	ObserveBackend func(time.Duration)
	EmitAudit      func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)
	Warn           func(ctx context.Context, msg string, args ...any)
}

func (h *Hooks) fill() {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.ObserveBackend == nil {
		h.ObserveBackend = func(time.Duration) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(context.Context, string, ...any) {}
	}
}

func (h Hooks) since(start time.Time) {
	h.ObserveBackend(h.Now().Sub(start))
}

func (e Errors) invalid(problems forms.Problems) error {
	if e.Invalid != nil {
		return e.Invalid(problems)
	}
	return e.Validation
}

// identity maps a provider error onto the host taxonomy. Errors that already
// carry a host sentinel pass through.
func (e Errors) identity(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{e.Validation, e.InvalidCredentials, e.IdentityConflict, e.AccountDisabled, e.IdentityProvider, e.Unauthenticated} {
		if known != nil && errors.Is(err, known) {
			return err
		}
	}
	if e.IdentityProvider == nil {
		return err
	}
	return fmt.Errorf("%w: %w", e.IdentityProvider, err)
}

func (e Errors) backend(err error) error {
	if err == nil || e.Backend == nil || errors.Is(err, e.Backend) {
		return err
	}
	return fmt.Errorf("%w: %w", e.Backend, err)
}

func (e Errors) is(err, target error) bool {
	return target != nil && errors.Is(err, target)
}

func profileID(snap session.Snapshot) string {
	if snap.Profile == nil {
		return ""
	}
	return snap.Profile.ID
}

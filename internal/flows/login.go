package flows

import (
	"context"
	"fmt"

	"github.com/bloodlink/donorauth/internal/forms"
	"github.com/bloodlink/donorauth/session"
)

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Hooks
	Store SessionStore

	// SignOutOnBackendFailure signs the identity provider out again when the
	// backend rejects a login the provider accepted.
	SignOutOnBackendFailure bool

	SignIn       func(ctx context.Context, email, password string) (session.IdentityUser, error)
	SignOut      func(ctx context.Context) error
	BackendLogin func(ctx context.Context, email, password string) (session.Profile, error)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// RunLogin signs in with the identity provider and, only once that succeeded,
// logs in to the backend. The email is normalized before both calls.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (session.Snapshot, error) {
	deps.fill()
	if deps.Store == nil || deps.SignIn == nil || deps.BackendLogin == nil {
		return session.Snapshot{}, deps.Errors.NotReady
	}

	email, problems := forms.ValidateLogin(email, password)
	if len(problems) > 0 {
		err := deps.Errors.invalid(problems)
		deps.fail(ctx, email, "validation", err)
		return deps.Store.Snapshot(), err
	}

	handle, err := deps.SignIn(ctx, email, password)
	if err != nil {
		mapped := deps.Errors.identity(err)
		deps.fail(ctx, email, "identity", mapped)
		return deps.Store.Snapshot(), mapped
	}

	start := deps.Now()
	profile, err := deps.BackendLogin(ctx, email, password)
	deps.since(start)
	if err != nil {
		mapped := deps.backendLoginError(err)
		if deps.SignOutOnBackendFailure && deps.SignOut != nil {
			if serr := deps.SignOut(ctx); serr != nil {
				deps.Warn(ctx, "identity sign-out after failed backend login failed", "op", "login", "email", email, "error", serr)
			}
		}
		deps.fail(ctx, email, "backend", mapped)
		return deps.Store.Snapshot(), mapped
	}

	snap := deps.Store.SetAuthenticated(profile, &handle)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, profile.ID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
			"role":  string(profile.Role),
		}
	})
	return snap, nil
}

func (deps LoginDeps) fail(ctx context.Context, email, reason string, err error) {
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", err, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
}

// backendLoginError maps 401 to invalid credentials and 403 to a disabled
// account. Anything else is a backend failure.
func (deps LoginDeps) backendLoginError(err error) error {
	switch {
	case deps.Errors.is(err, deps.Errors.Unauthenticated) && deps.Errors.InvalidCredentials != nil:
		return fmt.Errorf("%w: %v", deps.Errors.InvalidCredentials, err)
	case deps.Errors.is(err, deps.Errors.Forbidden) && deps.Errors.AccountDisabled != nil:
		return fmt.Errorf("%w: %v", deps.Errors.AccountDisabled, err)
	default:
		return deps.Errors.backend(err)
	}
}

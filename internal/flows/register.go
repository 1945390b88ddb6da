package flows

import (
	"context"

	"github.com/bloodlink/donorauth/internal/forms"
	"github.com/bloodlink/donorauth/session"
)

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Hooks
	Store        SessionStore
	Rules        forms.Rules
	SyncMetadata bool

	CreateAccount          func(ctx context.Context, email, password string) (session.IdentityUser, error)
	UpdateIdentityMetadata func(ctx context.Context, displayName, photoURL string) error
	BackendRegister        func(ctx context.Context, in forms.Registration) (session.Profile, error)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// RunRegister validates locally, creates the identity account, then creates
// the backend record. A backend failure after the identity account exists is
// reported as a partial registration and leaves the session untouched.
func RunRegister(ctx context.Context, in forms.Registration, deps RegisterDeps) (session.Snapshot, error) {
	deps.fill()
	if deps.Store == nil || deps.CreateAccount == nil || deps.BackendRegister == nil {
		return session.Snapshot{}, deps.Errors.NotReady
	}

	clean, problems := forms.ValidateRegistration(in, deps.Rules)
	if len(problems) > 0 {
		err := deps.Errors.invalid(problems)
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"email":  clean.Email,
				"reason": "validation",
			}
		})
		return deps.Store.Snapshot(), err
	}

	handle, err := deps.CreateAccount(ctx, clean.Email, clean.Password)
	if err != nil {
		mapped := deps.Errors.identity(err)
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", mapped, func() map[string]string {
			return map[string]string{
				"email":  clean.Email,
				"reason": "identity",
			}
		})
		return deps.Store.Snapshot(), mapped
	}

	if deps.SyncMetadata && deps.UpdateIdentityMetadata != nil && (clean.Name != "" || clean.Avatar != "") {
		if err := deps.UpdateIdentityMetadata(ctx, clean.Name, clean.Avatar); err != nil {
			deps.MetricInc(deps.Metrics.IdentityMetadataFailure)
			deps.Warn(ctx, "identity metadata update failed", "op", "register", "email", clean.Email, "error", err)
		} else {
			handle.DisplayName = clean.Name
			handle.PhotoURL = clean.Avatar
		}
	}

	start := deps.Now()
	profile, err := deps.BackendRegister(ctx, clean)
	deps.since(start)
	if err != nil {
		partial := deps.Errors.backend(err)
		if deps.Errors.PartialRegistration != nil {
			partial = deps.Errors.PartialRegistration(err)
		}
		deps.MetricInc(deps.Metrics.RegisterPartial)
		deps.Warn(ctx, "backend registration failed after identity account was created", "op", "register", "email", clean.Email, "error", err)
		deps.EmitAudit(ctx, deps.Events.RegisterPartial, false, "", partial, func() map[string]string {
			return map[string]string{
				"email":        clean.Email,
				"identity_uid": handle.UID,
			}
		})
		return deps.Store.Snapshot(), partial
	}

	snap := deps.Store.SetAuthenticated(profile, &handle)
	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, profile.ID, nil, func() map[string]string {
		return map[string]string{
			"email": profile.Email,
			"role":  string(profile.Role),
		}
	})
	return snap, nil
}

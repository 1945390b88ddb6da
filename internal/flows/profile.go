package flows

import (
	"context"

	"github.com/bloodlink/donorauth/internal/forms"
	"github.com/bloodlink/donorauth/session"
)

// ProfileDeps captures profile update and refresh dependencies.
type ProfileDeps struct {
	Hooks
	Store        SessionStore
	SyncMetadata bool

	UpdateIdentityMetadata func(ctx context.Context, displayName, photoURL string) error
	BackendUpdate          func(ctx context.Context, upd forms.Update) error
	BackendFetch           func(ctx context.Context) (session.Profile, error)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// RunUpdateProfile pushes a partial update to the backend and then re-reads
// the canonical profile. The PATCH response is never used as the new state.
// When the re-read fails the session keeps its profile and is marked stale.
func RunUpdateProfile(ctx context.Context, upd forms.Update, deps ProfileDeps) (session.Snapshot, error) {
	deps.fill()
	if deps.Store == nil || deps.BackendUpdate == nil || deps.BackendFetch == nil {
		return session.Snapshot{}, deps.Errors.NotReady
	}

	current := deps.Store.Snapshot()
	if !current.Authenticated() {
		return current, deps.Errors.Unauthenticated
	}
	userID := current.Profile.ID

	clean, problems := forms.ValidateUpdate(upd)
	if len(problems) == 0 && clean.Empty() {
		problems = forms.Problems{"profile": "no changes"}
	}
	if len(problems) > 0 {
		err := deps.Errors.invalid(problems)
		deps.updateFailed(ctx, userID, "validation", err)
		return current, err
	}

	var identity *session.IdentityUser
	if deps.SyncMetadata && deps.UpdateIdentityMetadata != nil && current.Identity != nil && (clean.Name != nil || clean.Avatar != nil) {
		name, avatar := deref(clean.Name), deref(clean.Avatar)
		if err := deps.UpdateIdentityMetadata(ctx, name, avatar); err != nil {
			deps.MetricInc(deps.Metrics.IdentityMetadataFailure)
			deps.Warn(ctx, "identity metadata update failed", "op", "update_profile", "user_id", userID, "error", err)
		} else {
			id := *current.Identity
			if name != "" {
				id.DisplayName = name
			}
			if avatar != "" {
				id.PhotoURL = avatar
			}
			identity = &id
		}
	}

	start := deps.Now()
	err := deps.BackendUpdate(ctx, clean)
	deps.since(start)
	if err != nil {
		mapped := deps.Errors.backend(err)
		deps.updateFailed(ctx, userID, "backend", mapped)
		return deps.Store.Snapshot(), mapped
	}

	snap, err := deps.refresh(ctx, userID, identity)
	if err != nil {
		deps.MetricInc(deps.Metrics.ProfileUpdateFailure)
		return snap, err
	}

	deps.MetricInc(deps.Metrics.ProfileUpdateSuccess)
	deps.EmitAudit(ctx, deps.Events.ProfileUpdateSuccess, true, userID, nil, func() map[string]string {
		return map[string]string{
			"fields": changedFields(clean),
		}
	})
	return snap, nil
}

// RunRefreshProfile re-reads the canonical profile into the session.
func RunRefreshProfile(ctx context.Context, deps ProfileDeps) (session.Snapshot, error) {
	deps.fill()
	if deps.Store == nil || deps.BackendFetch == nil {
		return session.Snapshot{}, deps.Errors.NotReady
	}

	current := deps.Store.Snapshot()
	if !current.Authenticated() {
		return current, deps.Errors.Unauthenticated
	}
	return deps.refresh(ctx, current.Profile.ID, nil)
}

func (deps ProfileDeps) refresh(ctx context.Context, userID string, identity *session.IdentityUser) (session.Snapshot, error) {
	start := deps.Now()
	profile, err := deps.BackendFetch(ctx)
	deps.since(start)
	if err != nil {
		mapped := deps.Errors.backend(err)
		snap := deps.Store.MarkStale()
		deps.MetricInc(deps.Metrics.ProfileRefreshFailure)
		deps.Warn(ctx, "profile refresh failed, keeping stale profile", "user_id", userID, "error", err)
		deps.EmitAudit(ctx, deps.Events.ProfileRefreshFailure, false, userID, mapped, nil)
		return snap, mapped
	}
	return deps.Store.SetAuthenticated(profile, identity), nil
}

func (deps ProfileDeps) updateFailed(ctx context.Context, userID, reason string, err error) {
	deps.MetricInc(deps.Metrics.ProfileUpdateFailure)
	deps.EmitAudit(ctx, deps.Events.ProfileUpdateFailure, false, userID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func changedFields(u forms.Update) string {
	out := ""
	add := func(name string, set bool) {
		if !set {
			return
		}
		if out != "" {
			out += ","
		}
		out += name
	}
	add("name", u.Name != nil)
	add("avatar", u.Avatar != nil)
	add("bloodGroup", u.BloodGroup != nil)
	add("district", u.District != nil)
	add("upazila", u.Upazila != nil)
	return out
}

package flows

import (
	"context"

	"github.com/bloodlink/donorauth/session"
)

// ReconcileDeps captures startup reconciliation dependencies.
type ReconcileDeps struct {
	Hooks
	Store SessionStore

	BackendMe func(ctx context.Context) (session.Profile, error)
	// EnsureSubscription attaches the identity auth-state listener. It must be
	// idempotent; reconciliation may run more than once.
	EnsureSubscription func(ctx context.Context) error

	Metrics Metrics
	Events  Events
	Errors  Errors
}

// RunReconcile asks the backend who the current user is. A 401 means
// anonymous and is not an error. Any other failure also ends anonymous but is
// returned for logging. The outcome and the cleared Loading flag land in a
// single store mutation.
func RunReconcile(ctx context.Context, deps ReconcileDeps) (session.Snapshot, error) {
	deps.fill()
	if deps.Store == nil || deps.BackendMe == nil {
		return session.Snapshot{}, deps.Errors.NotReady
	}

	start := deps.Now()
	profile, err := deps.BackendMe(ctx)
	deps.since(start)

	var (
		result error
		snap   session.Snapshot
	)
	switch {
	case err == nil:
		snap = deps.Store.Resolve(&profile)
		deps.MetricInc(deps.Metrics.ReconcileAuthenticated)
		deps.EmitAudit(ctx, deps.Events.ReconcileAuthenticated, true, profile.ID, nil, nil)
		if deps.EnsureSubscription != nil {
			if serr := deps.EnsureSubscription(ctx); serr != nil {
				deps.MetricInc(deps.Metrics.IdentitySubscribeFailed)
				deps.Warn(ctx, "identity auth-state subscription failed", "op", "reconcile", "user_id", profile.ID, "error", serr)
			}
			// the listener's first delivery may have attached a handle
			snap = deps.Store.Snapshot()
		}
	case deps.Errors.is(err, deps.Errors.Unauthenticated):
		snap = deps.Store.Resolve(nil)
		deps.MetricInc(deps.Metrics.ReconcileAnonymous)
		deps.EmitAudit(ctx, deps.Events.ReconcileAnonymous, true, "", nil, nil)
	default:
		result = deps.Errors.backend(err)
		snap = deps.Store.Resolve(nil)
		deps.MetricInc(deps.Metrics.ReconcileFailure)
		deps.Warn(ctx, "session reconciliation failed, continuing anonymous", "op", "reconcile", "error", err)
		deps.EmitAudit(ctx, deps.Events.ReconcileFailure, false, "", result, nil)
	}

	return snap, result
}

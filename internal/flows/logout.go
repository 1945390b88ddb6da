package flows

import (
	"context"
	"strconv"

	"github.com/bloodlink/donorauth/session"
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Hooks
	Store SessionStore

	BackendLogout func(ctx context.Context) error
	SignOut       func(ctx context.Context) error
	// Release drops the identity auth-state subscription, if any.
	Release func()

	Metrics Metrics
	Events  Events
}

// RunLogout is best-effort on both remotes and always clears the local
// session.
func RunLogout(ctx context.Context, deps LogoutDeps) session.Snapshot {
	deps.fill()
	if deps.Store == nil {
		return session.Snapshot{}
	}

	userID := profileID(deps.Store.Snapshot())
	if deps.Release != nil {
		deps.Release()
	}

	remoteFailures := 0
	if deps.BackendLogout != nil {
		start := deps.Now()
		err := deps.BackendLogout(ctx)
		deps.since(start)
		if err != nil {
			remoteFailures++
			deps.MetricInc(deps.Metrics.LogoutRemoteFailure)
			deps.Warn(ctx, "backend logout failed", "op", "logout", "user_id", userID, "error", err)
		}
	}
	if deps.SignOut != nil {
		if err := deps.SignOut(ctx); err != nil {
			remoteFailures++
			deps.MetricInc(deps.Metrics.LogoutRemoteFailure)
			deps.Warn(ctx, "identity sign-out failed", "op", "logout", "user_id", userID, "error", err)
		}
	}

	snap := deps.Store.Clear()
	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, userID, nil, func() map[string]string {
		return map[string]string{
			"remote_failures": strconv.Itoa(remoteFailures),
		}
	})
	return snap
}

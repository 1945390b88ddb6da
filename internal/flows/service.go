package flows

import (
	"context"

	"github.com/bloodlink/donorauth/internal/forms"
	"github.com/bloodlink/donorauth/session"
)

// Service is the flow runner built once by the root controller.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.Store != nil && s.deps.Reconcile.BackendMe != nil
}

func (s Service) Register(ctx context.Context, in forms.Registration) (session.Snapshot, error) {
	return RunRegister(ctx, in, s.deps.Register)
}

func (s Service) Login(ctx context.Context, email, password string) (session.Snapshot, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Logout(ctx context.Context) session.Snapshot {
	return RunLogout(ctx, s.deps.Logout)
}

func (s Service) UpdateProfile(ctx context.Context, upd forms.Update) (session.Snapshot, error) {
	return RunUpdateProfile(ctx, upd, s.deps.Profile)
}

func (s Service) RefreshProfile(ctx context.Context) (session.Snapshot, error) {
	return RunRefreshProfile(ctx, s.deps.Profile)
}

func (s Service) Reconcile(ctx context.Context) (session.Snapshot, error) {
	return RunReconcile(ctx, s.deps.Reconcile)
}

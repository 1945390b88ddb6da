package identity

import (
	"context"

	"github.com/bloodlink/donorauth/session"
)

// NoopProvider is a pass-through identity provider for deployments where the
// backend alone verifies credentials. It never fails and never notifies.
type NoopProvider struct{}

func (NoopProvider) CreateAccount(_ context.Context, email, _ string) (session.IdentityUser, error) {
	return session.IdentityUser{Email: normalizeEmail(email)}, nil
}

func (NoopProvider) SignIn(_ context.Context, email, _ string) (session.IdentityUser, error) {
	return session.IdentityUser{Email: normalizeEmail(email)}, nil
}

func (NoopProvider) SignOut(context.Context) error { return nil }

func (NoopProvider) UpdateProfileMetadata(context.Context, string, string) error { return nil }

func (NoopProvider) SubscribeAuthState(context.Context, func(*session.IdentityUser)) (func(), error) {
	return func() {}, nil
}

package identity

import (
	"context"
	"testing"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/bloodlink/donorauth/password"
	"github.com/bloodlink/donorauth/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return Options{Hasher: hasher}
}

func newMemory(t *testing.T) *MemoryProvider {
	t.Helper()
	p, err := NewMemoryProvider(testOptions(t))
	require.NoError(t, err)
	return p
}

func TestMemoryCreateAccountSignsIn(t *testing.T) {
	p := newMemory(t)
	ctx := context.Background()

	u, err := p.CreateAccount(ctx, "  Rahim@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "rahim@example.com", u.Email)
	assert.NotEmpty(t, u.UID)
	assert.NotEmpty(t, u.IDToken)

	cur := p.CurrentUser()
	require.NotNil(t, cur)
	assert.Equal(t, u.UID, cur.UID)

	claims, err := p.VerifyIDToken(u.IDToken)
	require.NoError(t, err)
	assert.Equal(t, u.UID, claims.UID)
	assert.Equal(t, "rahim@example.com", claims.Email)
}

func TestMemoryDuplicateEmailConflicts(t *testing.T) {
	p := newMemory(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.CreateAccount(ctx, "A@EXAMPLE.COM", "other-secret")
	assert.ErrorIs(t, err, donorAuth.ErrIdentityConflict)
}

func TestMemoryShortPasswordIsValidationError(t *testing.T) {
	p := newMemory(t)
	_, err := p.CreateAccount(context.Background(), "a@example.com", "123")
	assert.ErrorIs(t, err, donorAuth.ErrValidation)
}

func TestMemorySignInErrors(t *testing.T) {
	p := newMemory(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@example.com", "wrong-pass")
	assert.ErrorIs(t, err, donorAuth.ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, donorAuth.ErrInvalidCredentials)

	require.NoError(t, p.Disable("a@example.com"))
	_, err = p.SignIn(ctx, "a@example.com", "secret1")
	assert.ErrorIs(t, err, donorAuth.ErrAccountDisabled)
}

func TestMemorySubscribeDeliversChanges(t *testing.T) {
	p := newMemory(t)
	ctx := context.Background()

	var seen []*session.IdentityUser
	unsubscribe, err := p.SubscribeAuthState(ctx, func(u *session.IdentityUser) {
		seen = append(seen, u)
	})
	require.NoError(t, err)

	_, err = p.CreateAccount(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.UpdateProfileMetadata(ctx, "Rahim", "https://img.example.com/r.png"))
	require.NoError(t, p.SignOut(ctx))

	require.Len(t, seen, 4)
	assert.Nil(t, seen[0])
	assert.Equal(t, "a@example.com", seen[1].Email)
	assert.Equal(t, "Rahim", seen[2].DisplayName)
	assert.Nil(t, seen[3])

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, p.Listeners())

	_, err = p.SignIn(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, seen, 4)
}

func TestMemoryUpdateMetadataRequiresSignIn(t *testing.T) {
	p := newMemory(t)
	err := p.UpdateProfileMetadata(context.Background(), "Name", "")
	assert.ErrorIs(t, err, donorAuth.ErrUnauthenticated)
}

func TestMemoryDisableSignsOutCurrentUser(t *testing.T) {
	p := newMemory(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	var last *session.IdentityUser
	calls := 0
	unsubscribe, err := p.SubscribeAuthState(ctx, func(u *session.IdentityUser) {
		calls++
		last = u
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, p.Disable("a@example.com"))
	assert.Equal(t, 2, calls)
	assert.Nil(t, last)
	assert.Nil(t, p.CurrentUser())
}

func TestNoopProviderNeverFails(t *testing.T) {
	var p NoopProvider
	ctx := context.Background()

	u, err := p.SignIn(ctx, " X@Example.com", "anything")
	require.NoError(t, err)
	assert.Equal(t, "x@example.com", u.Email)

	unsubscribe, err := p.SubscribeAuthState(ctx, func(*session.IdentityUser) {
		t.Fatal("noop provider must not notify")
	})
	require.NoError(t, err)
	unsubscribe()
	assert.NoError(t, p.SignOut(ctx))
}

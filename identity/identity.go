package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/bloodlink/donorauth/jwt"
	"github.com/bloodlink/donorauth/password"
	"github.com/bloodlink/donorauth/session"
)

// DefaultTokenTTL is the lifetime of ID tokens issued by providers built
// without an explicit token manager.
const DefaultTokenTTL = time.Hour

// Options configures the credential and token handling shared by providers.
type Options struct {
	// Hasher hashes stored credentials. Nil selects password.DefaultConfig().
	Hasher *password.Hasher
	// Tokens signs ID tokens. Nil selects a manager with an ephemeral ed25519
	// key, so tokens only verify within this process.
	Tokens *jwt.Manager
}

func (o Options) resolve() (*password.Hasher, *jwt.Manager, error) {
	hasher := o.Hasher
	if hasher == nil {
		h, err := password.NewHasher(password.DefaultConfig())
		if err != nil {
			return nil, nil, err
		}
		hasher = h
	}

	tokens := o.Tokens
	if tokens == nil {
		m, err := EphemeralTokens(DefaultTokenTTL)
		if err != nil {
			return nil, nil, err
		}
		tokens = m
	}
	return hasher, tokens, nil
}

// EphemeralTokens returns a token manager signing with a freshly generated
// ed25519 key.
func EphemeralTokens(ttl time.Duration) (*jwt.Manager, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return jwt.NewManager(jwt.Config{
		TTL:           ttl,
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "donorauth-identity",
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashCredential(hasher *password.Hasher, pw string) (string, error) {
	encoded, err := hasher.Hash(pw)
	if errors.Is(err, password.ErrTooShort) {
		return "", &donorAuth.ValidationError{Fields: map[string]string{"password": err.Error()}}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", donorAuth.ErrIdentityProvider, err)
	}
	return encoded, nil
}

func checkCredential(hasher *password.Hasher, pw, encoded string) error {
	ok, err := hasher.Verify(pw, encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", donorAuth.ErrIdentityProvider, err)
	}
	if !ok {
		return donorAuth.ErrInvalidCredentials
	}
	return nil
}

func issue(tokens *jwt.Manager, u session.IdentityUser) (session.IdentityUser, error) {
	token, err := tokens.Issue(u.UID, u.Email, u.DisplayName, u.PhotoURL)
	if err != nil {
		return session.IdentityUser{}, fmt.Errorf("%w: %v", donorAuth.ErrIdentityProvider, err)
	}
	u.IDToken = token
	return u, nil
}

func cloneUser(u *session.IdentityUser) *session.IdentityUser {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

var (
	_ donorAuth.IdentityProvider = (*MemoryProvider)(nil)
	_ donorAuth.IdentityProvider = (*RedisProvider)(nil)
	_ donorAuth.IdentityProvider = NoopProvider{}
)

package identity

import (
	"context"
	"fmt"
	"sync"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/bloodlink/donorauth/jwt"
	"github.com/bloodlink/donorauth/password"
	"github.com/bloodlink/donorauth/session"
	"github.com/google/uuid"
)

type memoryAccount struct {
	uid         string
	email       string
	hash        string
	displayName string
	photoURL    string
	disabled    bool
}

func (a *memoryAccount) user() session.IdentityUser {
	return session.IdentityUser{
		UID:         a.uid,
		Email:       a.email,
		DisplayName: a.displayName,
		PhotoURL:    a.photoURL,
	}
}

// MemoryProvider is an in-process identity provider. Accounts live in a map
// and the signed-in user is a single per-provider handle, the same way a
// browser identity SDK holds one current user.
type MemoryProvider struct {
	hasher *password.Hasher
	tokens *jwt.Manager

	mu       sync.Mutex
	accounts map[string]*memoryAccount
	current  *session.IdentityUser

	lmu       sync.Mutex
	nextID    uint64
	listeners map[uint64]func(*session.IdentityUser)
}

// NewMemoryProvider returns an empty provider.
func NewMemoryProvider(opts Options) (*MemoryProvider, error) {
	hasher, tokens, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{
		hasher:    hasher,
		tokens:    tokens,
		accounts:  make(map[string]*memoryAccount),
		listeners: make(map[uint64]func(*session.IdentityUser)),
	}, nil
}

// CreateAccount registers a credential and signs it in.
func (p *MemoryProvider) CreateAccount(ctx context.Context, email, pw string) (session.IdentityUser, error) {
	if err := ctx.Err(); err != nil {
		return session.IdentityUser{}, err
	}
	email = normalizeEmail(email)

	p.mu.Lock()
	_, exists := p.accounts[email]
	p.mu.Unlock()
	if exists {
		return session.IdentityUser{}, donorAuth.ErrIdentityConflict
	}

	encoded, err := hashCredential(p.hasher, pw)
	if err != nil {
		return session.IdentityUser{}, err
	}

	acct := &memoryAccount{uid: uuid.NewString(), email: email, hash: encoded}

	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return session.IdentityUser{}, donorAuth.ErrIdentityConflict
	}
	p.accounts[email] = acct
	p.mu.Unlock()

	return p.signIn(acct)
}

// SignIn verifies the credential and makes it the current user.
func (p *MemoryProvider) SignIn(ctx context.Context, email, pw string) (session.IdentityUser, error) {
	if err := ctx.Err(); err != nil {
		return session.IdentityUser{}, err
	}
	email = normalizeEmail(email)

	p.mu.Lock()
	acct, ok := p.accounts[email]
	var snapshot memoryAccount
	if ok {
		snapshot = *acct
	}
	p.mu.Unlock()

	if !ok {
		return session.IdentityUser{}, donorAuth.ErrInvalidCredentials
	}
	if snapshot.disabled {
		return session.IdentityUser{}, donorAuth.ErrAccountDisabled
	}
	if err := checkCredential(p.hasher, pw, snapshot.hash); err != nil {
		return session.IdentityUser{}, err
	}
	return p.signIn(&snapshot)
}

func (p *MemoryProvider) signIn(acct *memoryAccount) (session.IdentityUser, error) {
	u, err := issue(p.tokens, acct.user())
	if err != nil {
		return session.IdentityUser{}, err
	}

	p.mu.Lock()
	p.current = cloneUser(&u)
	p.mu.Unlock()

	p.notify(&u)
	return u, nil
}

// SignOut drops the current user. Signing out with nobody signed in is a
// no-op.
func (p *MemoryProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if had {
		p.notify(nil)
	}
	return nil
}

// UpdateProfileMetadata sets the display name and photo of the current user.
// Empty values leave the field unchanged.
func (p *MemoryProvider) UpdateProfileMetadata(ctx context.Context, displayName, photoURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: no identity user signed in", donorAuth.ErrUnauthenticated)
	}
	acct, ok := p.accounts[p.current.Email]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: account vanished", donorAuth.ErrIdentityProvider)
	}
	if displayName != "" {
		acct.displayName = displayName
	}
	if photoURL != "" {
		acct.photoURL = photoURL
	}
	snapshot := *acct
	p.mu.Unlock()

	_, err := p.signIn(&snapshot)
	return err
}

// SubscribeAuthState registers fn for auth-state changes and immediately
// delivers the current user (nil when signed out).
func (p *MemoryProvider) SubscribeAuthState(ctx context.Context, fn func(*session.IdentityUser)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil auth-state callback", donorAuth.ErrIdentityProvider)
	}

	p.lmu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	p.lmu.Unlock()

	fn(p.CurrentUser())

	var once sync.Once
	return func() {
		once.Do(func() {
			p.lmu.Lock()
			delete(p.listeners, id)
			p.lmu.Unlock()
		})
	}, nil
}

// Disable blocks future sign-ins for email and signs it out if it is the
// current user.
func (p *MemoryProvider) Disable(email string) error {
	email = normalizeEmail(email)

	p.mu.Lock()
	acct, ok := p.accounts[email]
	if !ok {
		p.mu.Unlock()
		return donorAuth.ErrInvalidCredentials
	}
	acct.disabled = true
	signedOut := p.current != nil && p.current.UID == acct.uid
	if signedOut {
		p.current = nil
	}
	p.mu.Unlock()

	if signedOut {
		p.notify(nil)
	}
	return nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (p *MemoryProvider) CurrentUser() *session.IdentityUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneUser(p.current)
}

// VerifyIDToken checks a token issued by this provider.
func (p *MemoryProvider) VerifyIDToken(token string) (*jwt.IDClaims, error) {
	return p.tokens.Parse(token)
}

// Listeners returns the number of live auth-state subscriptions.
func (p *MemoryProvider) Listeners() int {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	return len(p.listeners)
}

func (p *MemoryProvider) notify(u *session.IdentityUser) {
	p.lmu.Lock()
	fns := make([]func(*session.IdentityUser), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.lmu.Unlock()

	for _, fn := range fns {
		fn(cloneUser(u))
	}
}

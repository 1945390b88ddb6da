package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/bloodlink/donorauth/jwt"
	"github.com/bloodlink/donorauth/password"
	"github.com/bloodlink/donorauth/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	eventSignedIn  = "signed_in"
	eventSignedOut = "signed_out"
	eventUpdated   = "updated"
	eventDisabled  = "disabled"
)

// RedisConfig configures a [RedisProvider].
type RedisConfig struct {
	Options

	// Prefix namespaces every key and the auth-state channel. Default "donor".
	Prefix string
	Logger *slog.Logger
}

// RedisProvider keeps accounts in Redis hashes at <prefix>:acct:<email> and
// publishes auth-state changes on <prefix>:auth-state.
//
// Each provider instance has its own current user, so several processes can
// share one Redis without seeing each other's sign-ins. Disable events are
// the exception: they reach every instance holding the disabled uid.
type RedisProvider struct {
	rdb      redis.UniversalClient
	prefix   string
	instance string
	hasher   *password.Hasher
	tokens   *jwt.Manager
	logger   *slog.Logger

	mu      sync.Mutex
	current *session.IdentityUser
}

type authEvent struct {
	Type     string `json:"type"`
	Instance string `json:"instance"`
	UID      string `json:"uid,omitempty"`
}

// NewRedisProvider returns a provider backed by rdb.
func NewRedisProvider(rdb redis.UniversalClient, cfg RedisConfig) (*RedisProvider, error) {
	if rdb == nil {
		return nil, errors.New("identity: redis client is required")
	}
	hasher, tokens, err := cfg.Options.resolve()
	if err != nil {
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "donor"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisProvider{
		rdb:      rdb,
		prefix:   prefix,
		instance: uuid.NewString(),
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
	}, nil
}

func (p *RedisProvider) accountKey(email string) string {
	return p.prefix + ":acct:" + email
}

func (p *RedisProvider) channel() string {
	return p.prefix + ":auth-state"
}

// CreateAccount registers a credential and signs it in. HSETNX on the uid
// field decides ownership of the email.
func (p *RedisProvider) CreateAccount(ctx context.Context, email, pw string) (session.IdentityUser, error) {
	email = normalizeEmail(email)
	key := p.accountKey(email)

	exists, err := p.rdb.Exists(ctx, key).Result()
	if err != nil {
		return session.IdentityUser{}, redisFailure(err)
	}
	if exists > 0 {
		return session.IdentityUser{}, donorAuth.ErrIdentityConflict
	}

	encoded, err := hashCredential(p.hasher, pw)
	if err != nil {
		return session.IdentityUser{}, err
	}

	uid := uuid.NewString()
	claimed, err := p.rdb.HSetNX(ctx, key, "uid", uid).Result()
	if err != nil {
		return session.IdentityUser{}, redisFailure(err)
	}
	if !claimed {
		return session.IdentityUser{}, donorAuth.ErrIdentityConflict
	}

	if err := p.rdb.HSet(ctx, key,
		"email", email,
		"hash", encoded,
		"disabled", "0",
		"created_at", strconv.FormatInt(time.Now().Unix(), 10),
	).Err(); err != nil {
		_ = p.rdb.Del(context.WithoutCancel(ctx), key).Err()
		return session.IdentityUser{}, redisFailure(err)
	}

	return p.signIn(ctx, session.IdentityUser{UID: uid, Email: email}, eventSignedIn)
}

// SignIn verifies the credential stored for email.
func (p *RedisProvider) SignIn(ctx context.Context, email, pw string) (session.IdentityUser, error) {
	email = normalizeEmail(email)

	fields, err := p.rdb.HGetAll(ctx, p.accountKey(email)).Result()
	if err != nil {
		return session.IdentityUser{}, redisFailure(err)
	}
	if len(fields) == 0 || fields["hash"] == "" {
		return session.IdentityUser{}, donorAuth.ErrInvalidCredentials
	}
	if fields["disabled"] == "1" {
		return session.IdentityUser{}, donorAuth.ErrAccountDisabled
	}
	if err := checkCredential(p.hasher, pw, fields["hash"]); err != nil {
		return session.IdentityUser{}, err
	}

	return p.signIn(ctx, userFromFields(fields), eventSignedIn)
}

func (p *RedisProvider) signIn(ctx context.Context, u session.IdentityUser, event string) (session.IdentityUser, error) {
	u, err := issue(p.tokens, u)
	if err != nil {
		return session.IdentityUser{}, err
	}

	p.mu.Lock()
	p.current = cloneUser(&u)
	p.mu.Unlock()

	p.publish(ctx, authEvent{Type: event, Instance: p.instance, UID: u.UID})
	return u, nil
}

// SignOut drops this instance's current user.
func (p *RedisProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.mu.Unlock()

	if prev != nil {
		p.publish(ctx, authEvent{Type: eventSignedOut, Instance: p.instance, UID: prev.UID})
	}
	return nil
}

// UpdateProfileMetadata stores display name and photo on the current user's
// account hash. Empty values leave the field unchanged.
func (p *RedisProvider) UpdateProfileMetadata(ctx context.Context, displayName, photoURL string) error {
	cur := p.CurrentUser()
	if cur == nil {
		return fmt.Errorf("%w: no identity user signed in", donorAuth.ErrUnauthenticated)
	}

	values := make([]any, 0, 4)
	if displayName != "" {
		values = append(values, "name", displayName)
		cur.DisplayName = displayName
	}
	if photoURL != "" {
		values = append(values, "photo", photoURL)
		cur.PhotoURL = photoURL
	}
	if len(values) == 0 {
		return nil
	}
	if err := p.rdb.HSet(ctx, p.accountKey(cur.Email), values...).Err(); err != nil {
		return redisFailure(err)
	}

	_, err := p.signIn(ctx, *cur, eventUpdated)
	return err
}

// Disable marks the account disabled and broadcasts the change so every
// instance holding that user signs it out.
func (p *RedisProvider) Disable(ctx context.Context, email string) error {
	key := p.accountKey(normalizeEmail(email))

	uid, err := p.rdb.HGet(ctx, key, "uid").Result()
	if errors.Is(err, redis.Nil) {
		return donorAuth.ErrInvalidCredentials
	}
	if err != nil {
		return redisFailure(err)
	}
	if err := p.rdb.HSet(ctx, key, "disabled", "1").Err(); err != nil {
		return redisFailure(err)
	}

	p.publish(ctx, authEvent{Type: eventDisabled, Instance: p.instance, UID: uid})
	return nil
}

// SubscribeAuthState delivers the current user immediately and then every
// change seen on the auth-state channel that concerns this instance. The
// subscription outlives ctx; call the returned function to stop it. It waits
// for the receive loop to exit.
func (p *RedisProvider) SubscribeAuthState(ctx context.Context, fn func(*session.IdentityUser)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil auth-state callback", donorAuth.ErrIdentityProvider)
	}

	pubsub := p.rdb.Subscribe(ctx, p.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, redisFailure(err)
	}

	fn(p.CurrentUser())

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				p.handleEvent(msg.Payload, fn)
			case <-loopCtx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
			<-done
		})
	}, nil
}

func (p *RedisProvider) handleEvent(payload string, fn func(*session.IdentityUser)) {
	var ev authEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		p.logger.Warn("identity: malformed auth-state event", "error", err)
		return
	}

	switch {
	case ev.Type == eventDisabled:
		p.mu.Lock()
		hit := p.current != nil && p.current.UID == ev.UID
		if hit {
			p.current = nil
		}
		p.mu.Unlock()
		if hit {
			fn(nil)
		}
	case ev.Instance == p.instance:
		fn(p.CurrentUser())
	}
}

func (p *RedisProvider) publish(ctx context.Context, ev authEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.rdb.Publish(context.WithoutCancel(ctx), p.channel(), data).Err(); err != nil {
		p.logger.Warn("identity: publish auth-state event failed", "type", ev.Type, "error", err)
	}
}

// CurrentUser returns a copy of this instance's signed-in user, or nil.
func (p *RedisProvider) CurrentUser() *session.IdentityUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneUser(p.current)
}

// VerifyIDToken checks a token issued by a provider sharing this token
// manager's key.
func (p *RedisProvider) VerifyIDToken(token string) (*jwt.IDClaims, error) {
	return p.tokens.Parse(token)
}

func userFromFields(fields map[string]string) session.IdentityUser {
	return session.IdentityUser{
		UID:         fields["uid"],
		Email:       fields["email"],
		DisplayName: fields["name"],
		PhotoURL:    fields["photo"],
	}
}

func redisFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", donorAuth.ErrIdentityProvider, err)
}

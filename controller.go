package donorAuth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bloodlink/donorauth/internal/flows"
	"github.com/bloodlink/donorauth/session"
	"github.com/jonboulle/clockwork"
)

// Controller is the single in-process authority for the current user. It
// keeps the local session in step with the identity provider and the backend.
//
// Controller methods are safe to call from multiple goroutines after
// [Builder.Build]. Session-mutating operations are not serialized against
// each other: the last write wins.
type Controller struct {
	config   Config
	store    *session.Store
	backend  Backend
	identity IdentityProvider
	logger   *slog.Logger
	clock    clockwork.Clock
	audit    *auditDispatcher
	metrics  *Metrics
	flows    flows.Service

	transitions *Subscription
	lastState   atomic.Uint32
	inFlight    atomic.Int32

	subMu       sync.Mutex
	unsubscribe func()
}

// Close releases the identity subscription and drains pending audit events.
// The session itself is left as is.
func (c *Controller) Close() {
	_ = c.Shutdown(context.Background())
}

// Shutdown is Close with a bound on the audit drain. It returns ctx.Err() when
// queued audit events were still undelivered as ctx ended.
func (c *Controller) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.release()
	if c.transitions != nil {
		c.transitions.Close()
	}
	return c.audit.Shutdown(ctx)
}

// AuditDropped returns how many audit events were dropped because the buffer
// was full or the emitting call gave up waiting for space.
func (c *Controller) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

func (c *Controller) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Controller) ready() bool {
	return c != nil && c.store != nil && c.flows.Initialized()
}

// Current returns a copy of the session.
func (c *Controller) Current() Snapshot {
	if !c.ready() {
		return Snapshot{Loading: true}
	}
	return c.store.Snapshot()
}

// CurrentUser returns the backend profile, or nil when nobody is signed in.
func (c *Controller) CurrentUser() *Profile {
	return c.Current().Profile
}

// IsLoading reports whether the first reconciliation is still pending.
func (c *Controller) IsLoading() bool {
	return c.Current().Loading
}

// Busy reports whether a register, login, logout, profile or reconciliation
// call is in progress. Forms use it to refuse a repeat submission; it is not
// part of [Snapshot] and changes to it are not delivered to subscribers.
func (c *Controller) Busy() bool {
	return c != nil && c.inFlight.Load() > 0
}

// begin marks one operation in flight; the returned func ends it.
func (c *Controller) begin() func() {
	c.inFlight.Add(1)
	return func() { c.inFlight.Add(-1) }
}

// IsAuthenticated reports whether the session holds a profile.
func (c *Controller) IsAuthenticated() bool {
	return c.Current().Authenticated()
}

// Subscribe registers fn for every session change. fn runs synchronously on
// the goroutine that made the change, after the change is visible through
// [Controller.Current]. Close the returned Subscription to stop delivery.
func (c *Controller) Subscribe(fn func(Snapshot)) *Subscription {
	if !c.ready() || fn == nil {
		return &Subscription{}
	}
	return c.store.Subscribe(fn)
}

// Authorize gates a protected view. It returns the current profile when the
// session is authenticated, the account is not blocked and, if roles are
// given, the profile role is one of them.
func (c *Controller) Authorize(roles ...Role) (Profile, error) {
	snap := c.Current()
	if !snap.Authenticated() {
		return Profile{}, ErrUnauthenticated
	}
	profile := *snap.Profile
	if profile.Blocked() {
		return profile, ErrAccountBlocked
	}
	if len(roles) > 0 && !profile.HasRole(roles...) {
		return profile, ErrForbidden
	}
	return profile, nil
}

func (c *Controller) observeTransition(snap Snapshot) {
	if prev := c.lastState.Swap(uint32(snap.State)); prev != uint32(snap.State) {
		c.metricInc(MetricStateTransition)
	}
}

// onIdentityChange applies provider-side auth-state changes. The backend
// stays authoritative: only the secondary handle is touched, and only while a
// profile is present.
func (c *Controller) onIdentityChange(user *IdentityUser) {
	snap := c.store.Snapshot()
	if !snap.Authenticated() {
		return
	}
	if user == nil {
		if snap.Identity == nil {
			return
		}
		c.metricInc(MetricIdentitySignedOut)
		c.logger.Warn("identity provider signed out while backend session active")
	} else if !strings.EqualFold(user.Email, snap.Profile.Email) {
		c.logger.Warn("identity provider user does not match backend session, ignoring",
			"user_id", snap.Profile.ID)
		return
	}
	c.store.SetIdentity(user)
}

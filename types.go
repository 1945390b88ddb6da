package donorAuth

import (
	"context"

	"github.com/bloodlink/donorauth/session"
)

// Profile is the backend-owned user record. It is authoritative for role and
// status.
type Profile = session.Profile

// Role is a platform role.
type Role = session.Role

// ProfileStatus is the account status held by the backend.
type ProfileStatus = session.ProfileStatus

// IdentityUser is the identity-provider handle attached to a session.
type IdentityUser = session.IdentityUser

// State is the coarse session state.
type State = session.State

// Snapshot is a point-in-time copy of the session.
type Snapshot = session.Snapshot

// Subscription is a scoped observer registration returned by
// [Controller.Subscribe].
type Subscription = session.Subscription

const (
	RoleDonor     = session.RoleDonor
	RoleVolunteer = session.RoleVolunteer
	RoleAdmin     = session.RoleAdmin

	StatusActive  = session.StatusActive
	StatusBlocked = session.StatusBlocked

	StateUnknown       = session.StateUnknown
	StateAuthenticated = session.StateAuthenticated
	StateAnonymous     = session.StateAnonymous
)

// RegisterRequest is the sign-up form submitted to [Controller.Register].
type RegisterRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	Avatar          string
	BloodGroup      string
	District        string
	Upazila         string
}

// Registration is the payload a [Backend] receives for POST /auth/register.
// Email is already normalized and Name already stripped of markup.
type Registration struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar,omitempty"`
	BloodGroup string `json:"bloodGroup"`
	District   string `json:"district"`
	Upazila    string `json:"upazila"`
}

// ProfileUpdate carries optional profile changes. Nil fields are left
// unchanged; the JSON form is the PATCH /users/profile body.
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	BloodGroup *string `json:"bloodGroup,omitempty"`
	District   *string `json:"district,omitempty"`
	Upazila    *string `json:"upazila,omitempty"`
}

// Backend is the platform REST API as seen by the controller. Implementations
// return errors matching [ErrBackend], and additionally [ErrUnauthenticated]
// for a 401 and [ErrForbidden] for a 403.
type Backend interface {
	Register(ctx context.Context, reg Registration) (Profile, error)
	Login(ctx context.Context, email, password string) (Profile, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (Profile, error)
	FetchProfile(ctx context.Context) (Profile, error)
	UpdateProfile(ctx context.Context, upd ProfileUpdate) error
}

// IdentityProvider stores and verifies credentials and carries optional
// display metadata. It is secondary to the [Backend].
//
// SubscribeAuthState registers fn for auth-state changes; fn receives nil
// when the provider signs the user out. The returned function releases the
// subscription and must be safe to call more than once.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (IdentityUser, error)
	SignIn(ctx context.Context, email, password string) (IdentityUser, error)
	SignOut(ctx context.Context) error
	UpdateProfileMetadata(ctx context.Context, displayName, photoURL string) error
	SubscribeAuthState(ctx context.Context, fn func(*IdentityUser)) (unsubscribe func(), err error)
}

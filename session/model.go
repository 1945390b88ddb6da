package session

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the backend-assigned authorization role of a platform user.
type Role string

const (
	RoleDonor     Role = "donor"
	RoleVolunteer Role = "volunteer"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the roles the backend issues.
func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleVolunteer, RoleAdmin:
		return true
	}
	return false
}

// ProfileStatus is the backend-owned account status.
type ProfileStatus string

const (
	StatusActive  ProfileStatus = "active"
	StatusBlocked ProfileStatus = "blocked"
)

// BloodGroups lists the blood groups accepted by the backend, in display order.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// ValidBloodGroup reports whether g is one of [BloodGroups]. Matching is exact
// after trimming surrounding whitespace.
func ValidBloodGroup(g string) bool {
	g = strings.TrimSpace(g)
	for _, known := range BloodGroups {
		if g == known {
			return true
		}
	}
	return false
}

// Profile is the backend user record. It is the authoritative identity for
// authorization decisions (role, status).
type Profile struct {
	ID         string        `json:"_id,omitempty"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Role       Role          `json:"role"`
	BloodGroup string        `json:"bloodGroup,omitempty"`
	District   string        `json:"district,omitempty"`
	Upazila    string        `json:"upazila,omitempty"`
	Avatar     string        `json:"avatar,omitempty"`
	Status     ProfileStatus `json:"status"`
}

// UnmarshalJSON accepts both "_id" and "id" for the profile identifier; the
// backend has emitted either across releases.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var aux struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Profile(aux.plain)
	if p.ID == "" {
		p.ID = aux.AltID
	}
	return nil
}

// Blocked reports whether the backend has blocked this account.
func (p Profile) Blocked() bool {
	return p.Status == StatusBlocked
}

// HasRole reports whether the profile role is one of roles.
func (p Profile) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IdentityUser is the identity-provider handle for the signed-in credential.
// It is secondary to [Profile] and only carries display metadata.
type IdentityUser struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	IDToken     string
}

// State is the coarse session state observed by the application.
type State uint8

const (
	// StateUnknown is the initial state, before startup reconciliation resolves.
	StateUnknown State = iota
	// StateAuthenticated means a backend profile is present.
	StateAuthenticated
	// StateAnonymous means no backend profile is present.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "invalid"
	}
}

// Snapshot is a point-in-time copy of the session. Snapshots handed out by
// [Store] never alias the store's internal state.
type Snapshot struct {
	State     State
	Profile   *Profile
	Identity  *IdentityUser
	Loading   bool
	Stale     bool
	UpdatedAt time.Time
	Version   uint64
}

// Authenticated reports whether the snapshot carries a backend profile.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.Profile != nil
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	return out
}

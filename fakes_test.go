package donorAuth

import (
	"context"
	"fmt"
	"sync"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	profile    Profile
	registered []Registration
	loginEmail string
	updates    []ProfileUpdate

	registerErr error
	loginErr    error
	logoutErr   error
	meErr       error
	fetchErr    error
	updateErr   error

	// applyUpdate mirrors PATCH bodies into profile so a later fetch sees them.
	applyUpdate bool
	// loginGate, when set, holds Login until it receives or is closed.
	loginGate chan struct{}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Register(_ context.Context, reg Registration) (Profile, error) {
	f.record("register")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, reg)
	if f.registerErr != nil {
		return Profile{}, f.registerErr
	}
	return f.profile, nil
}

func (f *fakeBackend) Login(_ context.Context, email, _ string) (Profile, error) {
	f.record("login")
	if f.loginGate != nil {
		<-f.loginGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginEmail = email
	if f.loginErr != nil {
		return Profile{}, f.loginErr
	}
	return f.profile, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeBackend) Me(context.Context) (Profile, error) {
	f.record("me")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return Profile{}, f.meErr
	}
	return f.profile, nil
}

func (f *fakeBackend) FetchProfile(context.Context) (Profile, error) {
	f.record("fetch_profile")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return Profile{}, f.fetchErr
	}
	return f.profile, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, upd ProfileUpdate) error {
	f.record("update_profile")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.applyUpdate {
		if upd.Name != nil {
			f.profile.Name = *upd.Name
		}
		if upd.Avatar != nil {
			f.profile.Avatar = *upd.Avatar
		}
		if upd.BloodGroup != nil {
			f.profile.BloodGroup = *upd.BloodGroup
		}
		if upd.District != nil {
			f.profile.District = *upd.District
		}
		if upd.Upazila != nil {
			f.profile.Upazila = *upd.Upazila
		}
	}
	return nil
}

type fakeIdentity struct {
	mu    sync.Mutex
	calls []string

	signInEmail string
	metadata    [][2]string

	createErr    error
	signInErr    error
	signOutErr   error
	metadataErr  error
	subscribeErr error

	subscribes   int
	unsubscribes int
	listener     func(*IdentityUser)
}

func (f *fakeIdentity) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeIdentity) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeIdentity) CreateAccount(_ context.Context, email, _ string) (IdentityUser, error) {
	f.record("create_account")
	if f.createErr != nil {
		return IdentityUser{}, f.createErr
	}
	return IdentityUser{UID: "uid-" + email, Email: email}, nil
}

func (f *fakeIdentity) SignIn(_ context.Context, email, _ string) (IdentityUser, error) {
	f.record("sign_in")
	f.mu.Lock()
	f.signInEmail = email
	f.mu.Unlock()
	if f.signInErr != nil {
		return IdentityUser{}, f.signInErr
	}
	return IdentityUser{UID: "uid-" + email, Email: email}, nil
}

func (f *fakeIdentity) SignOut(context.Context) error {
	f.record("sign_out")
	return f.signOutErr
}

func (f *fakeIdentity) UpdateProfileMetadata(_ context.Context, displayName, photoURL string) error {
	f.record("update_metadata")
	f.mu.Lock()
	f.metadata = append(f.metadata, [2]string{displayName, photoURL})
	f.mu.Unlock()
	return f.metadataErr
}

func (f *fakeIdentity) SubscribeAuthState(_ context.Context, fn func(*IdentityUser)) (func(), error) {
	f.record("subscribe")
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.mu.Lock()
	f.subscribes++
	f.listener = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.unsubscribes++
			f.listener = nil
			f.mu.Unlock()
		})
	}, nil
}

func (f *fakeIdentity) emit(user *IdentityUser) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	if fn != nil {
		fn(user)
	}
}

// statusError mimics backend.APIError without importing it.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend status %d", e.status)
}

func (e *statusError) Unwrap() []error {
	switch e.status {
	case 401:
		return []error{ErrBackend, ErrUnauthenticated}
	case 403:
		return []error{ErrBackend, ErrForbidden}
	default:
		return []error{ErrBackend}
	}
}

func donorProfile() Profile {
	return Profile{
		ID:         "p-1",
		Name:       "Karim",
		Email:      "karim@example.com",
		Role:       RoleDonor,
		BloodGroup: "B+",
		District:   "Chattogram",
		Upazila:    "Patiya",
		Avatar:     "https://img.example.com/karim.png",
		Status:     StatusActive,
	}
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Email:           "Karim@Example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            "Karim",
		Avatar:          "https://img.example.com/karim.png",
		BloodGroup:      "B+",
		District:        "Chattogram",
		Upazila:         "Patiya",
	}
}

package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func testProfile() Profile {
	return Profile{
		ID:         "u-1",
		Name:       "Rahim",
		Email:      "rahim@example.com",
		Role:       RoleDonor,
		BloodGroup: "O+",
		District:   "Dhaka",
		Upazila:    "Savar",
		Status:     StatusActive,
	}
}

func TestNewStoreStartsUnknownAndLoading(t *testing.T) {
	st := NewStore(clockwork.NewFakeClock())
	snap := st.Snapshot()

	if snap.State != StateUnknown {
		t.Fatalf("expected unknown state, got %s", snap.State)
	}
	if !snap.Loading {
		t.Fatal("expected loading=true on a fresh store")
	}
	if snap.Profile != nil || snap.Identity != nil {
		t.Fatal("expected empty session")
	}
}

func TestSetAuthenticatedAndClear(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := NewStore(clock)

	clock.Advance(time.Minute)
	snap := st.SetAuthenticated(testProfile(), &IdentityUser{UID: "id-1"})
	if !snap.Authenticated() {
		t.Fatal("expected authenticated snapshot")
	}
	if snap.Identity == nil || snap.Identity.UID != "id-1" {
		t.Fatalf("expected identity handle, got %+v", snap.Identity)
	}
	if !snap.UpdatedAt.Equal(clock.Now().UTC()) {
		t.Fatalf("expected UpdatedAt from clock, got %v", snap.UpdatedAt)
	}

	cleared := st.Clear()
	if cleared.State != StateAnonymous || cleared.Profile != nil || cleared.Identity != nil {
		t.Fatalf("expected anonymous empty session, got %+v", cleared)
	}
	if cleared.Version <= snap.Version {
		t.Fatalf("expected version to advance, %d -> %d", snap.Version, cleared.Version)
	}
}

func TestSetAuthenticatedNilIdentityKeepsHandle(t *testing.T) {
	st := NewStore(nil)
	st.SetAuthenticated(testProfile(), &IdentityUser{UID: "id-1"})

	p := testProfile()
	p.Name = "Rahim Uddin"
	snap := st.SetAuthenticated(p, nil)
	if snap.Identity == nil || snap.Identity.UID != "id-1" {
		t.Fatal("expected previous identity handle to survive")
	}
	if snap.Profile.Name != "Rahim Uddin" {
		t.Fatalf("expected profile replaced, got %q", snap.Profile.Name)
	}
}

func TestSnapshotDoesNotAliasState(t *testing.T) {
	st := NewStore(nil)
	st.SetAuthenticated(testProfile(), nil)

	snap := st.Snapshot()
	snap.Profile.Role = RoleAdmin

	if got := st.Snapshot().Profile.Role; got != RoleDonor {
		t.Fatalf("store state mutated through snapshot: role=%s", got)
	}
}

func TestMarkStaleKeepsProfile(t *testing.T) {
	st := NewStore(nil)
	st.SetAuthenticated(testProfile(), nil)

	snap := st.MarkStale()
	if !snap.Stale || snap.Profile == nil {
		t.Fatalf("expected stale profile kept, got %+v", snap)
	}

	snap = st.SetAuthenticated(testProfile(), nil)
	if snap.Stale {
		t.Fatal("expected fresh profile to clear stale flag")
	}
}

func TestResolveSetsOutcomeAndClearsLoadingOnce(t *testing.T) {
	st := NewStore(nil)
	var seen []Snapshot
	sub := st.Subscribe(func(s Snapshot) { seen = append(seen, s) })
	defer sub.Close()

	p := testProfile()
	snap := st.Resolve(&p)
	if snap.State != StateAuthenticated || snap.Loading || snap.Profile == nil {
		t.Fatalf("unexpected resolved snapshot: %+v", snap)
	}
	if len(seen) != 1 || seen[0].Loading || seen[0].State != StateAuthenticated {
		t.Fatalf("expected a single loaded notification, got %+v", seen)
	}

	snap = st.Resolve(nil)
	if snap.State != StateAnonymous || snap.Profile != nil || snap.Loading {
		t.Fatalf("expected anonymous snapshot, got %+v", snap)
	}
}

func TestResolveKeepsIdentityOnlyForSameEmail(t *testing.T) {
	st := NewStore(nil)
	p := testProfile()
	st.SetAuthenticated(p, &IdentityUser{UID: "id-1", Email: strings.ToUpper(p.Email)})

	snap := st.Resolve(&p)
	if snap.Identity == nil || snap.Identity.UID != "id-1" {
		t.Fatalf("expected handle kept for same user, got %+v", snap.Identity)
	}

	other := p
	other.ID = "other"
	other.Email = "someone.else@example.com"
	snap = st.Resolve(&other)
	if snap.Identity != nil {
		t.Fatalf("expected handle dropped for a different user, got %+v", snap.Identity)
	}
}

func TestSubscribeNotifiesSynchronouslyInOrder(t *testing.T) {
	st := NewStore(nil)

	var order []string
	a := st.Subscribe(func(s Snapshot) { order = append(order, "a:"+s.State.String()) })
	b := st.Subscribe(func(s Snapshot) { order = append(order, "b:"+s.State.String()) })
	defer a.Close()
	defer b.Close()

	st.Clear()

	if len(order) != 2 || order[0] != "a:anonymous" || order[1] != "b:anonymous" {
		t.Fatalf("unexpected notification order: %v", order)
	}
}

func TestSubscriberCanReadStoreInsideCallback(t *testing.T) {
	st := NewStore(nil)
	var seen State
	sub := st.Subscribe(func(Snapshot) {
		seen = st.Snapshot().State
	})
	defer sub.Close()

	st.SetAuthenticated(testProfile(), nil)
	if seen != StateAuthenticated {
		t.Fatalf("expected callback to observe authenticated state, got %s", seen)
	}
}

func TestSubscriptionCloseStopsDeliveryAndIsIdempotent(t *testing.T) {
	st := NewStore(nil)
	calls := 0
	sub := st.Subscribe(func(Snapshot) { calls++ })

	st.Clear()
	sub.Close()
	sub.Close()
	st.Clear()

	if calls != 1 {
		t.Fatalf("expected 1 call before close, got %d", calls)
	}
	if n := st.Subscribers(); n != 0 {
		t.Fatalf("expected no live subscribers, got %d", n)
	}
}

func TestConcurrentReadersNeverSeeTornState(t *testing.T) {
	st := NewStore(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := st.Snapshot()
				if snap.State == StateAuthenticated && snap.Profile == nil {
					t.Error("authenticated snapshot without profile")
					return
				}
				if snap.State == StateAnonymous && snap.Profile != nil {
					t.Error("anonymous snapshot with profile")
					return
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		st.SetAuthenticated(testProfile(), nil)
		st.Clear()
	}
	close(stop)
	wg.Wait()
}

func TestValidBloodGroup(t *testing.T) {
	for _, g := range BloodGroups {
		if !ValidBloodGroup(g) {
			t.Fatalf("expected %q to be valid", g)
		}
	}
	for _, g := range []string{"", "C+", "o+", "AB"} {
		if ValidBloodGroup(g) {
			t.Fatalf("expected %q to be invalid", g)
		}
	}
}

package donorAuth

import "context"

// UpdateProfile pushes changed fields to the backend and then re-reads the
// canonical profile.
//
// A rejected PATCH leaves the session untouched. When the PATCH succeeded but
// the re-read failed the session keeps its previous profile, is marked Stale,
// and the error matches ErrBackend.
func (c *Controller) UpdateProfile(ctx context.Context, upd ProfileUpdate) (Snapshot, error) {
	if !c.ready() {
		return Snapshot{}, ErrControllerNotReady
	}
	defer c.begin()()
	snap, err := c.flows.UpdateProfile(ctx, profileUpdateToForm(upd))
	return snap, wrapOp("update_profile", err)
}

// RefreshProfile reloads the profile from the backend. On failure the
// session is kept and marked Stale.
func (c *Controller) RefreshProfile(ctx context.Context) (Snapshot, error) {
	if !c.ready() {
		return Snapshot{}, ErrControllerNotReady
	}
	defer c.begin()()
	snap, err := c.flows.RefreshProfile(ctx)
	return snap, wrapOp("refresh_profile", err)
}

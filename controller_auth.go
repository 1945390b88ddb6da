package donorAuth

import "context"

// Register creates the identity account, then the backend record, and signs
// the new user in.
//
// Validation failures return a *ValidationError and make no remote call. When
// the identity account was created but the backend rejected the record the
// error matches both ErrPartialRegistration and ErrBackend and the session is
// left unchanged; the user should finish by logging in.
func (c *Controller) Register(ctx context.Context, req RegisterRequest) (Snapshot, error) {
	if !c.ready() {
		return Snapshot{}, ErrControllerNotReady
	}
	defer c.begin()()
	snap, err := c.flows.Register(ctx, registrationToForm(req))
	return snap, wrapOp("register", err)
}

// Login signs in with the identity provider and then with the backend. The
// backend call is not made unless the provider accepted the credentials.
func (c *Controller) Login(ctx context.Context, email, password string) (Snapshot, error) {
	if !c.ready() {
		return Snapshot{}, ErrControllerNotReady
	}
	defer c.begin()()
	snap, err := c.flows.Login(ctx, email, password)
	return snap, wrapOp("login", err)
}

// Logout ends the backend session and the identity session and clears the
// local session whatever the remotes answer. It never fails.
func (c *Controller) Logout(ctx context.Context) Snapshot {
	if !c.ready() {
		return Snapshot{}
	}
	defer c.begin()()
	return c.flows.Logout(ctx)
}

func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Err: err}
}

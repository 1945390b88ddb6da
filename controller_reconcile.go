package donorAuth

import "context"

// FetchCurrentUser asks the backend who is signed in and sets the session
// accordingly. A 401 ends Anonymous without error. Any other failure also
// ends Anonymous and the ErrBackend-classified error is returned for logging.
// Loading is false once it returns.
func (c *Controller) FetchCurrentUser(ctx context.Context) (Snapshot, error) {
	if !c.ready() {
		return Snapshot{}, ErrControllerNotReady
	}
	defer c.begin()()
	snap, err := c.flows.Reconcile(ctx)
	return snap, wrapOp("fetch_current_user", err)
}

// Start runs the startup reconciliation. Failures are logged, not returned;
// the caller only needs the resulting state.
func (c *Controller) Start(ctx context.Context) Snapshot {
	snap, err := c.FetchCurrentUser(ctx)
	if err != nil && c.ready() {
		c.logger.WarnContext(ctx, "startup reconciliation failed", "error", err)
	}
	return snap
}

// ensureSubscription attaches the identity auth-state listener once.
func (c *Controller) ensureSubscription(ctx context.Context) error {
	if !c.config.Identity.SubscribeOnReconcile {
		return nil
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.unsubscribe != nil {
		return nil
	}

	unsubscribe, err := c.identity.SubscribeAuthState(ctx, c.onIdentityChange)
	if err != nil {
		return err
	}
	if unsubscribe == nil {
		unsubscribe = func() {}
	}
	c.unsubscribe = unsubscribe
	return nil
}

// release drops the identity listener, if any. A later reconciliation may
// attach a new one.
func (c *Controller) release() {
	c.subMu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.subMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

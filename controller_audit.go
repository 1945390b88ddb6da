package donorAuth

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess        = "register_success"
	auditEventRegisterFailure        = "register_failure"
	auditEventRegisterPartial        = "register_partial"
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLogout                 = "logout"
	auditEventProfileUpdateSuccess   = "profile_update_success"
	auditEventProfileUpdateFailure   = "profile_update_failure"
	auditEventProfileRefreshFailure  = "profile_refresh_failure"
	auditEventReconcileAuthenticated = "reconcile_authenticated"
	auditEventReconcileAnonymous     = "reconcile_anonymous"
	auditEventReconcileFailure       = "reconcile_failure"
)

// AuditErrorCode is the stable error class recorded in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrValidation          AuditErrorCode = "validation"
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrIdentityConflict    AuditErrorCode = "identity_conflict"
	auditErrAccountDisabled     AuditErrorCode = "account_disabled"
	auditErrPartialRegistration AuditErrorCode = "partial_registration"
	auditErrUnauthenticated     AuditErrorCode = "unauthenticated"
	auditErrForbidden           AuditErrorCode = "forbidden"
	auditErrAccountBlocked      AuditErrorCode = "account_blocked"
	auditErrBackend             AuditErrorCode = "backend_unavailable"
	auditErrIdentityProvider    AuditErrorCode = "identity_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (c *Controller) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: c.clock.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		RequestID: RequestIDFromContext(ctx),
		State:     c.store.Snapshot().State.String(),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

// auditErrorCode classifies err. Order matters: a partial registration also
// matches ErrBackend.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrPartialRegistration):
		return auditErrPartialRegistration
	case errors.Is(err, ErrIdentityConflict):
		return auditErrIdentityConflict
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountBlocked):
		return auditErrAccountBlocked
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrBackend):
		return auditErrBackend
	case errors.Is(err, ErrIdentityProvider):
		return auditErrIdentityProvider
	default:
		return auditErrInternal
	}
}

package internaldefs

import (
	donorAuth "github.com/bloodlink/donorauth"
)

// CounterDef names one controller counter for exporters.
type CounterDef struct {
	ID   donorAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one controller histogram for exporters.
type HistogramDef struct {
	ID   donorAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName and AuditDroppedHelp describe the audit backpressure counter.
const (
	AuditDroppedName = "donorauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: donorAuth.MetricRegisterSuccess, Name: "donorauth_register_success_total", Help: "Completed registrations."},
	{ID: donorAuth.MetricRegisterFailure, Name: "donorauth_register_failure_total", Help: "Registrations rejected by validation or the identity provider."},
	{ID: donorAuth.MetricRegisterPartial, Name: "donorauth_register_partial_total", Help: "Identity accounts created without a backend record."},
	{ID: donorAuth.MetricLoginSuccess, Name: "donorauth_login_success_total", Help: "Successful logins."},
	{ID: donorAuth.MetricLoginFailure, Name: "donorauth_login_failure_total", Help: "Failed logins."},
	{ID: donorAuth.MetricLogout, Name: "donorauth_logout_total", Help: "Logouts."},
	{ID: donorAuth.MetricLogoutRemoteFailure, Name: "donorauth_logout_remote_failure_total", Help: "Failed best-effort remote calls during logout."},
	{ID: donorAuth.MetricProfileUpdateSuccess, Name: "donorauth_profile_update_success_total", Help: "Successful profile updates."},
	{ID: donorAuth.MetricProfileUpdateFailure, Name: "donorauth_profile_update_failure_total", Help: "Failed profile updates."},
	{ID: donorAuth.MetricProfileRefreshFailure, Name: "donorauth_profile_refresh_failure_total", Help: "Profile re-reads that left the session stale."},
	{ID: donorAuth.MetricReconcileAuthenticated, Name: "donorauth_reconcile_authenticated_total", Help: "Reconciliations that found a signed-in user."},
	{ID: donorAuth.MetricReconcileAnonymous, Name: "donorauth_reconcile_anonymous_total", Help: "Reconciliations answered with 401."},
	{ID: donorAuth.MetricReconcileFailure, Name: "donorauth_reconcile_failure_total", Help: "Reconciliations that failed and fell back to anonymous."},
	{ID: donorAuth.MetricIdentityMetadataFailure, Name: "donorauth_identity_metadata_failure_total", Help: "Failed identity display-metadata updates."},
	{ID: donorAuth.MetricIdentitySubscribeFailure, Name: "donorauth_identity_subscribe_failure_total", Help: "Failed identity auth-state subscriptions."},
	{ID: donorAuth.MetricIdentitySignedOut, Name: "donorauth_identity_signed_out_total", Help: "Identity sign-outs observed while the backend session was active."},
	{ID: donorAuth.MetricStateTransition, Name: "donorauth_state_transition_total", Help: "Session state changes."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: donorAuth.MetricBackendLatency, Name: "donorauth_backend_latency_seconds", Help: "Backend call latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds; the last
// controller bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBounds are the text forms of the bucket bounds, +Inf included.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

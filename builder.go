package donorAuth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bloodlink/donorauth/internal/flows"
	"github.com/bloodlink/donorauth/internal/forms"
	"github.com/bloodlink/donorauth/session"
	"github.com/jonboulle/clockwork"
)

// Builder assembles a [Controller].
//
// Builder instances are intended to be configured during initialization and
// used once. Build fails on a second call.
type Builder struct {
	config   Config
	backend  Backend
	identity IdentityProvider

	logger    *slog.Logger
	clock     clockwork.Clock
	auditSink AuditSink

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the platform REST API client. Required.
func (b *Builder) WithBackend(be Backend) *Builder {
	b.backend = be
	return b
}

// WithIdentityProvider sets the identity provider. Required; deployments
// without one can pass identity.NoopProvider.
func (b *Builder) WithIdentityProvider(ip IdentityProvider) *Builder {
	b.identity = ip
	return b
}

// WithLogger sets the logger used for degraded best-effort steps. Defaults to
// slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects the clock used for session timestamps, audit events and
// backend latency.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithAuditSink sets the audit sink. It only receives events when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the backend latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the flows and returns a ready
// Controller in the Unknown, loading state. Call [Controller.Start] (or
// FetchCurrentUser) once to reconcile.
func (b *Builder) Build() (*Controller, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.backend == nil {
		return nil, errors.New("backend required")
	}
	if b.identity == nil {
		return nil, errors.New("identity provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &Controller{
		config:   cfg,
		store:    session.NewStore(clock),
		backend:  b.backend,
		identity: b.identity,
		logger:   logger,
		clock:    clock,
	}
	c.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	c.metrics = NewMetrics(cfg.Metrics)

	// State transitions are counted from the store so every writer is covered,
	// including identity callbacks.
	c.lastState.Store(uint32(c.store.Snapshot().State))
	c.transitions = c.store.Subscribe(c.observeTransition)

	c.flows = flows.New(c.flowDeps())

	b.built = true

	return c, nil
}

func (c *Controller) flowDeps() flows.Deps {
	hooks := flows.Hooks{
		Now: c.clock.Now,
		MetricInc: func(id int) {
			c.metricInc(MetricID(id))
		},
		ObserveBackend: func(d time.Duration) {
			c.metrics.Observe(MetricBackendLatency, d)
		},
		EmitAudit: c.emitAudit,
		Warn: func(ctx context.Context, msg string, args ...any) {
			c.logger.WarnContext(ctx, msg, args...)
		},
	}

	metrics := flows.Metrics{
		RegisterSuccess:         int(MetricRegisterSuccess),
		RegisterFailure:         int(MetricRegisterFailure),
		RegisterPartial:         int(MetricRegisterPartial),
		LoginSuccess:            int(MetricLoginSuccess),
		LoginFailure:            int(MetricLoginFailure),
		Logout:                  int(MetricLogout),
		LogoutRemoteFailure:     int(MetricLogoutRemoteFailure),
		ProfileUpdateSuccess:    int(MetricProfileUpdateSuccess),
		ProfileUpdateFailure:    int(MetricProfileUpdateFailure),
		ProfileRefreshFailure:   int(MetricProfileRefreshFailure),
		ReconcileAuthenticated:  int(MetricReconcileAuthenticated),
		ReconcileAnonymous:      int(MetricReconcileAnonymous),
		ReconcileFailure:        int(MetricReconcileFailure),
		IdentityMetadataFailure: int(MetricIdentityMetadataFailure),
		IdentitySubscribeFailed: int(MetricIdentitySubscribeFailure),
	}

	events := flows.Events{
		RegisterSuccess:        auditEventRegisterSuccess,
		RegisterFailure:        auditEventRegisterFailure,
		RegisterPartial:        auditEventRegisterPartial,
		LoginSuccess:           auditEventLoginSuccess,
		LoginFailure:           auditEventLoginFailure,
		Logout:                 auditEventLogout,
		ProfileUpdateSuccess:   auditEventProfileUpdateSuccess,
		ProfileUpdateFailure:   auditEventProfileUpdateFailure,
		ProfileRefreshFailure:  auditEventProfileRefreshFailure,
		ReconcileAuthenticated: auditEventReconcileAuthenticated,
		ReconcileAnonymous:     auditEventReconcileAnonymous,
		ReconcileFailure:       auditEventReconcileFailure,
	}

	errs := flows.Errors{
		NotReady:           ErrControllerNotReady,
		Validation:         ErrValidation,
		InvalidCredentials: ErrInvalidCredentials,
		IdentityConflict:   ErrIdentityConflict,
		AccountDisabled:    ErrAccountDisabled,
		IdentityProvider:   ErrIdentityProvider,
		Backend:            ErrBackend,
		Unauthenticated:    ErrUnauthenticated,
		Forbidden:          ErrForbidden,
		Invalid: func(problems map[string]string) error {
			return &ValidationError{Fields: problems}
		},
		PartialRegistration: func(cause error) error {
			return &partialRegistrationError{cause: cause}
		},
	}

	syncMeta := c.config.Identity.SyncMetadata

	return flows.Deps{
		Register: flows.RegisterDeps{
			Hooks:        hooks,
			Store:        c.store,
			Rules:        c.config.Validation.rules(),
			SyncMetadata: syncMeta,

			CreateAccount:          c.identity.CreateAccount,
			UpdateIdentityMetadata: c.identity.UpdateProfileMetadata,
			BackendRegister: func(ctx context.Context, in forms.Registration) (Profile, error) {
				return c.backend.Register(ctx, registrationFromForm(in))
			},

			Metrics: metrics,
			Events:  events,
			Errors:  errs,
		},
		Login: flows.LoginDeps{
			Hooks:                   hooks,
			Store:                   c.store,
			SignOutOnBackendFailure: c.config.Identity.SignOutOnBackendLoginFailure,

			SignIn:       c.identity.SignIn,
			SignOut:      c.identity.SignOut,
			BackendLogin: c.backend.Login,

			Metrics: metrics,
			Events:  events,
			Errors:  errs,
		},
		Logout: flows.LogoutDeps{
			Hooks: hooks,
			Store: c.store,

			BackendLogout: c.backend.Logout,
			SignOut:       c.identity.SignOut,
			Release:       c.release,

			Metrics: metrics,
			Events:  events,
		},
		Profile: flows.ProfileDeps{
			Hooks:        hooks,
			Store:        c.store,
			SyncMetadata: syncMeta,

			UpdateIdentityMetadata: c.identity.UpdateProfileMetadata,
			BackendUpdate: func(ctx context.Context, upd forms.Update) error {
				return c.backend.UpdateProfile(ctx, profileUpdateFromForm(upd))
			},
			BackendFetch: c.backend.FetchProfile,

			Metrics: metrics,
			Events:  events,
			Errors:  errs,
		},
		Reconcile: flows.ReconcileDeps{
			Hooks: hooks,
			Store: c.store,

			BackendMe:          c.backend.Me,
			EnsureSubscription: c.ensureSubscription,

			Metrics: metrics,
			Events:  events,
			Errors:  errs,
		},
	}
}

func (v ValidationConfig) rules() forms.Rules {
	return forms.Rules{
		MinPasswordLength: v.MinPasswordLength,
		RequireAvatar:     v.RequireAvatar,
		RequireLocation:   v.RequireLocation,
	}
}

func registrationToForm(req RegisterRequest) forms.Registration {
	return forms.Registration{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
		Avatar:          req.Avatar,
		BloodGroup:      req.BloodGroup,
		District:        req.District,
		Upazila:         req.Upazila,
	}
}

func registrationFromForm(in forms.Registration) Registration {
	return Registration{
		Email:      in.Email,
		Password:   in.Password,
		Name:       in.Name,
		Avatar:     in.Avatar,
		BloodGroup: in.BloodGroup,
		District:   in.District,
		Upazila:    in.Upazila,
	}
}

func profileUpdateToForm(upd ProfileUpdate) forms.Update {
	return forms.Update{
		Name:       upd.Name,
		Avatar:     upd.Avatar,
		BloodGroup: upd.BloodGroup,
		District:   upd.District,
		Upazila:    upd.Upazila,
	}
}

func profileUpdateFromForm(upd forms.Update) ProfileUpdate {
	return ProfileUpdate{
		Name:       upd.Name,
		Avatar:     upd.Avatar,
		BloodGroup: upd.BloodGroup,
		District:   upd.District,
		Upazila:    upd.Upazila,
	}
}

package donorAuth

import (
	"errors"

	"github.com/bloodlink/donorauth/password"
)

// Config groups controller settings. Obtain defaults from [DefaultConfig] and
// override what you need before passing it to [Builder.WithConfig].
type Config struct {
	Validation ValidationConfig
	Identity   IdentityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig controls local, pre-network checks.
type ValidationConfig struct {
	MinPasswordLength int
	RequireAvatar     bool
	RequireLocation   bool
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig controls how the controller drives the identity provider.
type IdentityConfig struct {
	// SubscribeOnReconcile attaches the auth-state listener after a successful
	// reconciliation.
	SubscribeOnReconcile bool
	// SignOutOnBackendLoginFailure signs the provider out again when the backend
	// rejects a login the provider accepted.
	SignOutOnBackendLoginFailure bool
	// SyncMetadata pushes display name and avatar to the provider on register
	// and profile update.
	SyncMetadata bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the settings the platform front-end uses.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Validation: ValidationConfig{
			MinPasswordLength: password.DefaultMinLength,
			RequireAvatar:     true,
			RequireLocation:   true,
		},
		Identity: IdentityConfig{
			SubscribeOnReconcile:         true,
			SignOutOnBackendLoginFailure: true,
			SyncMetadata:                 true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Validation.MinPasswordLength < 1 {
		return errors.New("Validation MinPasswordLength must be >= 1")
	}
	if c.Validation.MinPasswordLength > 128 {
		return errors.New("Validation MinPasswordLength must be <= 128")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

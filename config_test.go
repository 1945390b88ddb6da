package donorAuth

import "testing"

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "min password zero invalid",
			mutate: func(c *Config) {
				c.Validation.MinPasswordLength = 0
			},
			wantValid: false,
		},
		{
			name: "min password huge invalid",
			mutate: func(c *Config) {
				c.Validation.MinPasswordLength = 1000
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "audit disabled ignores buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = false
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
		{
			name: "latency without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestDefaultConfigMatchesSignupForm(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Validation.MinPasswordLength != 6 {
		t.Fatalf("expected min password 6, got %d", cfg.Validation.MinPasswordLength)
	}
	if !cfg.Identity.SubscribeOnReconcile || !cfg.Identity.SyncMetadata {
		t.Fatalf("expected identity sync on by default, got %+v", cfg.Identity)
	}
}

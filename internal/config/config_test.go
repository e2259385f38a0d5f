package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("EXTEND_STEP", "")
	t.Setenv("APP_ENV", "")

	cfg := Load()

	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s", cfg.PollInterval)
	}
	if cfg.ExtendStep != 10*time.Minute {
		t.Errorf("ExtendStep = %s, want 10m", cfg.ExtendStep)
	}
	if cfg.Production() {
		t.Error("default env must not be production")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")

	cfg := Load()

	if !cfg.Production() {
		t.Error("APP_ENV=prod must be production")
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %s, want 2s", cfg.PollInterval)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Errorf("RateLimitPerMin = %d, want 30", cfg.RateLimitPerMin)
	}
}

func TestDurationEnv_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name string
		val  string
	}{
		{name: "garbage", val: "soon"},
		{name: "negative", val: "-5s"},
		{name: "zero", val: "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.val)
			if got := durationEnv("TEST_DURATION", time.Minute); got != time.Minute {
				t.Errorf("durationEnv(%q) = %s, want fallback 1m", tt.val, got)
			}
		})
	}
}

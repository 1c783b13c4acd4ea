package config

import "testing"

func TestValidateRejectsMissingServerURL(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing server_url")
	}
}

func TestValidateRejectsNonPositiveHeartbeat(t *testing.T) {
	cfg := Default()
	cfg.ServerURL = "https://example.test"
	cfg.HeartbeatIntervalSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero heartbeat interval")
	}
}

func TestValidateClampsConcurrentSessions(t *testing.T) {
	cfg := Default()
	cfg.ServerURL = "https://example.test"
	cfg.MaxConcurrentSessions = -3
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxConcurrentSessions != 1 {
		t.Fatalf("expected clamp to 1, got %d", cfg.MaxConcurrentSessions)
	}
}

func TestValidateRejectsIncompleteMTLS(t *testing.T) {
	cfg := Default()
	cfg.ServerURL = "https://example.test"
	cfg.MTLSEnabled = true
	cfg.MTLSCAFile = "/etc/screencontrol/ca.pem"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for incomplete mtls config")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Default()
	cfg.ServerURL = "https://example.test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

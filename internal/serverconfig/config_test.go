package serverconfig

import "testing"

func TestValidateRejectsMissingPostgresDSN(t *testing.T) {
	cfg := Default()
	cfg.ObjectStoreProvider = "s3"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing postgres_dsn")
	}
}

func TestValidateRejectsMissingObjectStoreProvider(t *testing.T) {
	cfg := Default()
	cfg.PostgresDSN = "postgres://localhost/screencontrol"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing object_store_provider")
	}
}

func TestValidateClampsNonPositiveHeartbeat(t *testing.T) {
	cfg := Default()
	cfg.PostgresDSN = "postgres://localhost/screencontrol"
	cfg.ObjectStoreProvider = "s3"
	cfg.HeartbeatIntervalSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HeartbeatIntervalSeconds != 30 {
		t.Fatalf("expected clamp to 30, got %d", cfg.HeartbeatIntervalSeconds)
	}
}

func TestValidateRejectsIncompleteMTLS(t *testing.T) {
	cfg := Default()
	cfg.PostgresDSN = "postgres://localhost/screencontrol"
	cfg.ObjectStoreProvider = "s3"
	cfg.MTLSEnabled = true
	cfg.MTLSCAFile = "/etc/screencontrol/ca.pem"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for incomplete mtls config")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Default()
	cfg.PostgresDSN = "postgres://localhost/screencontrol"
	cfg.ObjectStoreProvider = "s3"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

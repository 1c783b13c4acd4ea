package updatepolicy

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeManifest(t *testing.T, content string) *Manifest {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func TestEvaluateNoHintWhenAlreadyCurrent(t *testing.T) {
	m := writeManifest(t, `
version: "1.0.0"
downloadUrlTemplate: "https://dl.example.com/%s"
rolloutPercent: 100
`)
	p := New(m)

	_, ok := p.Evaluate("agent-1", "", "1.0.0", "linux/amd64", time.Now())
	if ok {
		t.Fatal("expected no hint when agent already on manifest version")
	}
}

func TestEvaluateHintWhenRolloutIsFull(t *testing.T) {
	m := writeManifest(t, `
version: "2.0.0"
downloadUrlTemplate: "https://dl.example.com/%s"
rolloutPercent: 100
sha256:
  linux/amd64: "deadbeef"
`)
	p := New(m)

	hint, ok := p.Evaluate("agent-1", "", "1.0.0", "linux/amd64", time.Now())
	if !ok {
		t.Fatal("expected hint at 100% rollout")
	}
	if hint.Version != "2.0.0" {
		t.Fatalf("Version = %q, want 2.0.0", hint.Version)
	}
	if hint.SHA256 != "deadbeef" {
		t.Fatalf("SHA256 = %q, want deadbeef", hint.SHA256)
	}
}

func TestEvaluateNoHintWhenRolloutIsZero(t *testing.T) {
	m := writeManifest(t, `
version: "2.0.0"
downloadUrlTemplate: "https://dl.example.com/%s"
rolloutPercent: 0
`)
	p := New(m)

	if _, ok := p.Evaluate("agent-1", "", "1.0.0", "linux/amd64", time.Now()); ok {
		t.Fatal("expected no hint at 0% rollout")
	}
}

func TestEvaluateExcludesGroup(t *testing.T) {
	m := writeManifest(t, `
version: "2.0.0"
downloadUrlTemplate: "https://dl.example.com/%s"
rolloutPercent: 100
excludeGroups: ["canary-hold"]
`)
	p := New(m)

	if _, ok := p.Evaluate("agent-1", "canary-hold", "1.0.0", "linux/amd64", time.Now()); ok {
		t.Fatal("expected excluded group to receive no hint")
	}
}

func TestEvaluateSameAgentStaysInSameBucket(t *testing.T) {
	m := writeManifest(t, `
version: "2.0.0"
downloadUrlTemplate: "https://dl.example.com/%s"
rolloutPercent: 50
`)
	p := New(m)

	_, first := p.Evaluate("agent-stable-id", "", "1.0.0", "linux/amd64", time.Now())
	_, second := p.Evaluate("agent-stable-id", "", "1.0.0", "linux/amd64", time.Now().Add(time.Hour))
	if first != second {
		t.Fatalf("same agent ID landed in different buckets across calls: %v vs %v", first, second)
	}
}

func TestEvaluateRespectsMaintenanceWindow(t *testing.T) {
	m := writeManifest(t, `
version: "2.0.0"
downloadUrlTemplate: "https://dl.example.com/%s"
rolloutPercent: 100
maintenanceWindow:
  start: "02:00"
  end: "04:00"
  timezone: "UTC"
`)
	p := New(m)

	inside := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := p.Evaluate("agent-1", "", "1.0.0", "linux/amd64", inside); !ok {
		t.Fatal("expected hint inside maintenance window")
	}
	if _, ok := p.Evaluate("agent-1", "", "1.0.0", "linux/amd64", outside); ok {
		t.Fatal("expected no hint outside maintenance window")
	}
}

func TestEvaluateMaintenanceWindowSpanningMidnight(t *testing.T) {
	m := writeManifest(t, `
version: "2.0.0"
downloadUrlTemplate: "https://dl.example.com/%s"
rolloutPercent: 100
maintenanceWindow:
  start: "22:00"
  end: "02:00"
  timezone: "UTC"
`)
	p := New(m)

	lateNight := time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := p.Evaluate("agent-1", "", "1.0.0", "linux/amd64", lateNight); !ok {
		t.Fatal("expected hint late at night within spanning window")
	}
	if _, ok := p.Evaluate("agent-1", "", "1.0.0", "linux/amd64", earlyMorning); !ok {
		t.Fatal("expected hint early morning within spanning window")
	}
	if _, ok := p.Evaluate("agent-1", "", "1.0.0", "linux/amd64", midday); ok {
		t.Fatal("expected no hint midday outside spanning window")
	}
}

func TestLoadRejectsMissingVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte("rolloutPercent: 10\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error loading manifest without version")
	}
}

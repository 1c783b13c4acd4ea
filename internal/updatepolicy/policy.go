// Package updatepolicy decides whether a given agent should be told
// about an available update in its HeartbeatAck, gated by a YAML
// rollout manifest: a target version, a rollout percentage, an
// optional maintenance window, and a group exclude-list.
package updatepolicy

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("updatepolicy")

// Manifest is the on-disk rollout document an operator edits to control
// an agent update's blast radius.
type Manifest struct {
	Version             string            `yaml:"version"`
	DownloadURLTemplate string            `yaml:"downloadUrlTemplate"`
	SHA256              map[string]string `yaml:"sha256"`
	RolloutPercent      int               `yaml:"rolloutPercent"`
	ExcludeGroups       []string          `yaml:"excludeGroups"`
	MaintenanceWindow   *Window           `yaml:"maintenanceWindow"`
}

// Window restricts updates to a daily wall-clock range in a fixed
// timezone, e.g. 02:00-04:00 UTC. A nil Window means no restriction.
type Window struct {
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone"`
}

// Load parses a rollout manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("updatepolicy: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("updatepolicy: parse manifest: %w", err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("updatepolicy: manifest missing version")
	}
	return &m, nil
}

// Hint describes what, if anything, an agent should be told to update to.
type Hint struct {
	Version     string
	DownloadURL string
	SHA256      string
}

// Policy evaluates a Manifest against individual agents.
type Policy struct {
	manifest *Manifest
}

// New wraps a parsed Manifest for evaluation.
func New(m *Manifest) *Policy {
	return &Policy{manifest: m}
}

// Evaluate decides whether agentID (currently on currentVersion, in
// groupName) should receive an update hint at now. It returns
// (Hint{}, false) when no update applies — already current, rollout
// gate excludes this agent, or outside the maintenance window.
func (p *Policy) Evaluate(agentID, groupName, currentVersion, platformArch string, now time.Time) (Hint, bool) {
	m := p.manifest
	if m == nil || m.Version == "" || m.Version == currentVersion {
		return Hint{}, false
	}

	for _, g := range m.ExcludeGroups {
		if g == groupName {
			log.Debug("update withheld: excluded group", "agentId", agentID, "group", groupName)
			return Hint{}, false
		}
	}

	if bucket := bucketFor(agentID); bucket >= m.RolloutPercent {
		log.Debug("update withheld: outside rollout bucket", "agentId", agentID, "bucket", bucket, "rolloutPercent", m.RolloutPercent)
		return Hint{}, false
	}

	if m.MaintenanceWindow != nil {
		inWindow, err := m.MaintenanceWindow.contains(now)
		if err != nil {
			log.Warn("update withheld: bad maintenance window", "error", err)
			return Hint{}, false
		}
		if !inWindow {
			return Hint{}, false
		}
	}

	sha := m.SHA256[platformArch]
	return Hint{
		Version:     m.Version,
		DownloadURL: fmt.Sprintf(m.DownloadURLTemplate, platformArch),
		SHA256:      sha,
	}, true
}

// bucketFor maps an agent ID deterministically into [0, 100) so the same
// agent always lands in the same rollout bucket across heartbeats.
func bucketFor(agentID string) int {
	sum := sha256.Sum256([]byte(agentID))
	n := binary.BigEndian.Uint32(sum[:4])
	return int(n % 100)
}

func (w *Window) contains(now time.Time) (bool, error) {
	loc := time.UTC
	if w.Timezone != "" {
		l, err := time.LoadLocation(w.Timezone)
		if err != nil {
			return false, fmt.Errorf("load timezone %q: %w", w.Timezone, err)
		}
		loc = l
	}
	local := now.In(loc)

	start, err := time.ParseInLocation("15:04", w.Start, loc)
	if err != nil {
		return false, fmt.Errorf("parse start %q: %w", w.Start, err)
	}
	end, err := time.ParseInLocation("15:04", w.End, loc)
	if err != nil {
		return false, fmt.Errorf("parse end %q: %w", w.End, err)
	}

	cur := time.Date(0, 1, 1, local.Hour(), local.Minute(), 0, 0, loc)
	startOfDay := time.Date(0, 1, 1, start.Hour(), start.Minute(), 0, 0, loc)
	endOfDay := time.Date(0, 1, 1, end.Hour(), end.Minute(), 0, 0, loc)

	if endOfDay.Before(startOfDay) {
		// Window spans midnight, e.g. 22:00-02:00.
		return !cur.Before(startOfDay) || cur.Before(endOfDay), nil
	}
	return !cur.Before(startOfDay) && cur.Before(endOfDay), nil
}

// Package config loads the agent's on-disk/environment configuration via
// viper, the same library internal/serverconfig uses for the server's config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("config")

// Config is the agent's full runtime configuration.
type Config struct {
	AgentID   string `mapstructure:"agent_id"`
	ServerURL string `mapstructure:"server_url"`
	AuthToken string `mapstructure:"auth_token"`
	TenantID  string `mapstructure:"tenant_id"`
	GroupName string `mapstructure:"group_name"`

	HeartbeatIntervalSeconds int `mapstructure:"heartbeat_interval_seconds"`
	ThumbnailIntervalSeconds int `mapstructure:"thumbnail_interval_seconds"`

	MaxConcurrentSessions int `mapstructure:"max_concurrent_sessions"`
	CommandQueueSize      int `mapstructure:"command_queue_size"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	ConsentTimeoutSeconds int  `mapstructure:"consent_timeout_seconds"`
	ConsentAutoGrant      bool `mapstructure:"consent_auto_grant"`

	UserHelperEnabled bool   `mapstructure:"user_helper_enabled"`
	IPCSocketPath     string `mapstructure:"ipc_socket_path"`

	AuditEnabled    bool `mapstructure:"audit_enabled"`
	AuditMaxSizeMB  int  `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups int  `mapstructure:"audit_max_backups"`

	DefaultVideoQuality string `mapstructure:"default_video_quality"`
	DefaultMaxFPS        int    `mapstructure:"default_max_fps"`

	ObjectStoreProvider string `mapstructure:"object_store_provider"`
	ObjectStoreBucket   string `mapstructure:"object_store_bucket"`
	ObjectStoreRegion   string `mapstructure:"object_store_region"`

	UpdateManifestURL string `mapstructure:"update_manifest_url"`

	MTLSEnabled  bool   `mapstructure:"mtls_enabled"`
	MTLSCAFile   string `mapstructure:"mtls_ca_file"`
	MTLSCertFile string `mapstructure:"mtls_cert_file"`
	MTLSKeyFile  string `mapstructure:"mtls_key_file"`
}

// Default returns the configuration applied before any file or
// environment overrides are read.
func Default() *Config {
	return &Config{
		HeartbeatIntervalSeconds: 30,
		ThumbnailIntervalSeconds: 3600,
		MaxConcurrentSessions:    4,
		CommandQueueSize:         100,
		LogLevel:                 "info",
		LogFormat:                "text",
		ConsentTimeoutSeconds:    30,
		ConsentAutoGrant:         true,
		AuditEnabled:             true,
		AuditMaxSizeMB:           50,
		AuditMaxBackups:          3,
		DefaultVideoQuality:      "auto",
		DefaultMaxFPS:            30,
	}
}

// Load reads configuration from cfgFile if given, otherwise from the
// platform config directory or the working directory, then applies
// BREEZE-style environment overrides under the SCREENCONTROL prefix.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SCREENCONTROL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations that cannot start the agent safely.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		return fmt.Errorf("heartbeat_interval_seconds must be positive")
	}
	if c.MaxConcurrentSessions <= 0 {
		log.Warn("max_concurrent_sessions non-positive, defaulting to 1", "value", c.MaxConcurrentSessions)
		c.MaxConcurrentSessions = 1
	}
	if c.MTLSEnabled && (c.MTLSCAFile == "" || c.MTLSCertFile == "" || c.MTLSKeyFile == "") {
		return fmt.Errorf("mtls_enabled requires mtls_ca_file, mtls_cert_file, and mtls_key_file")
	}
	return nil
}

// Save persists cfg to the platform config directory with owner-only
// permissions, since it carries an auth token.
func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("agent_id", cfg.AgentID)
	viper.Set("server_url", cfg.ServerURL)
	viper.Set("auth_token", cfg.AuthToken)
	viper.Set("tenant_id", cfg.TenantID)
	viper.Set("group_name", cfg.GroupName)
	viper.Set("heartbeat_interval_seconds", cfg.HeartbeatIntervalSeconds)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		if dir := filepath.Dir(cfgPath); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "agent.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}
	return os.Chmod(cfgPath, 0600)
}

// DataDir returns the platform-specific data directory for the agent.
func DataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "ScreenControl", "data")
	case "darwin":
		return "/Library/Application Support/ScreenControl/data"
	default:
		return "/var/lib/screencontrol"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "ScreenControl")
	case "darwin":
		return "/Library/Application Support/ScreenControl"
	default:
		return "/etc/screencontrol"
	}
}

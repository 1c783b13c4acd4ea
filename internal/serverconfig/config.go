// Package serverconfig loads the server's on-disk/environment
// configuration via viper, mirroring internal/config's agent-side
// pattern.
package serverconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("serverconfig")

// Config is the server's full runtime configuration.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	PostgresDSN string `mapstructure:"postgres_dsn"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	ObjectStoreProvider      string `mapstructure:"object_store_provider"`
	ObjectStoreBucket        string `mapstructure:"object_store_bucket"`
	ObjectStoreRegion        string `mapstructure:"object_store_region"`
	ObjectStorePublicBaseURL string `mapstructure:"object_store_public_base_url"`

	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`

	AzureAccountName string `mapstructure:"azure_account_name"`
	AzureAccountKey  string `mapstructure:"azure_account_key"`
	AzureContainer   string `mapstructure:"azure_container"`

	B2AccountID      string `mapstructure:"b2_account_id"`
	B2ApplicationKey string `mapstructure:"b2_application_key"`
	B2BucketID       string `mapstructure:"b2_bucket_id"`

	MTLSEnabled  bool   `mapstructure:"mtls_enabled"`
	MTLSCAFile   string `mapstructure:"mtls_ca_file"`
	MTLSCertFile string `mapstructure:"mtls_cert_file"`
	MTLSKeyFile  string `mapstructure:"mtls_key_file"`

	HeartbeatIntervalSeconds int `mapstructure:"heartbeat_interval_seconds"`
	ThumbnailIntervalSeconds int `mapstructure:"thumbnail_interval_seconds"`

	UpdateManifestPath string `mapstructure:"update_manifest_path"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// Default returns the configuration applied before any file or
// environment overrides are read.
func Default() *Config {
	return &Config{
		ListenAddr:               ":8443",
		RedisDB:                  0,
		HeartbeatIntervalSeconds: 30,
		ThumbnailIntervalSeconds: 3600,
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

// Load reads configuration from cfgFile if given, otherwise from the
// platform config directory or the working directory, then applies
// environment overrides under the SCREENCONTROL prefix.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("server")
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
		return nil, fmt.Errorf("serverconfig: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations that cannot start the server safely.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required")
	}
	if c.ObjectStoreProvider == "" {
		return fmt.Errorf("object_store_provider is required")
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		log.Warn("heartbeat_interval_seconds non-positive, defaulting to 30", "value", c.HeartbeatIntervalSeconds)
		c.HeartbeatIntervalSeconds = 30
	}
	if c.MTLSEnabled && (c.MTLSCAFile == "" || c.MTLSCertFile == "" || c.MTLSKeyFile == "") {
		return fmt.Errorf("mtls_enabled requires mtls_ca_file, mtls_cert_file, and mtls_key_file")
	}
	return nil
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
